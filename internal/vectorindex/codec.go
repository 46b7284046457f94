package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// vectors.bin layout, all integers little endian:
//
//	magic "DQVX" | version u32 | dim u32 | n u32
//	n x ( idLen u32 | id bytes | float32[dim] )
//	crc32 (IEEE) of every preceding byte
const (
	vectorMagic   = "DQVX"
	vectorVersion = 1
	maxIDLen      = 1 << 10
)

var (
	errBadMagic   = errors.New("not a vector file")
	errTruncated  = errors.New("vector file truncated")
	errChecksum   = errors.New("vector file checksum mismatch")
	errBadVersion = errors.New("unsupported vector file version")
)

// encodeVectors writes ids and vectors in the vectors.bin format.
func encodeVectors(w io.Writer, dim int, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}

	crc := crc32.NewIEEE()
	bw := bufio.NewWriter(io.MultiWriter(w, crc))

	buf := make([]byte, 4)
	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(buf, v)
		_, err := bw.Write(buf)
		return err
	}

	if _, err := bw.WriteString(vectorMagic); err != nil {
		return err
	}
	for _, v := range []uint32{vectorVersion, uint32(dim), uint32(len(ids))} {
		if err := putU32(v); err != nil {
			return err
		}
	}

	for i, id := range ids {
		if len(vectors[i]) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), dim)
		}
		if err := putU32(uint32(len(id))); err != nil {
			return err
		}
		if _, err := bw.WriteString(id); err != nil {
			return err
		}
		for _, f := range vectors[i] {
			if err := putU32(math.Float32bits(f)); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(buf, crc.Sum32())
	_, err := w.Write(buf)
	return err
}

// decodeVectors reads a vectors.bin payload and verifies its checksum.
func decodeVectors(data []byte) (dim int, ids []string, vectors [][]float32, err error) {
	if len(data) < len(vectorMagic)+16 {
		return 0, nil, nil, errTruncated
	}
	if string(data[:len(vectorMagic)]) != vectorMagic {
		return 0, nil, nil, errBadMagic
	}

	body := data[:len(data)-4]
	want := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != want {
		return 0, nil, nil, errChecksum
	}

	off := len(vectorMagic)
	getU32 := func() (uint32, bool) {
		if off+4 > len(body) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(body[off : off+4])
		off += 4
		return v, true
	}

	version, _ := getU32()
	if version != vectorVersion {
		return 0, nil, nil, fmt.Errorf("%w: %d", errBadVersion, version)
	}
	d, _ := getU32()
	n, _ := getU32()
	dim = int(d)

	// Each entry needs at least its length prefix and its vector.
	if int64(n)*int64(4+4*dim) > int64(len(body)-off) {
		return 0, nil, nil, errTruncated
	}

	ids = make([]string, n)
	vectors = make([][]float32, n)
	for i := range int(n) {
		idLen, ok := getU32()
		if !ok {
			return 0, nil, nil, errTruncated
		}
		if idLen > maxIDLen || off+int(idLen) > len(body) {
			return 0, nil, nil, errTruncated
		}
		ids[i] = string(body[off : off+int(idLen)])
		off += int(idLen)

		if off+4*dim > len(body) {
			return 0, nil, nil, errTruncated
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off : off+4]))
			off += 4
		}
		vectors[i] = vec
	}

	if off != len(body) {
		return 0, nil, nil, fmt.Errorf("vector file has %d trailing bytes", len(body)-off)
	}
	return dim, ids, vectors, nil
}
