package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBuild is returned when an index could not be built from the document source.
	ErrBuild = errors.New("index build failed")
	// ErrIndexLoad is returned when a persisted index is missing or malformed.
	ErrIndexLoad = errors.New("index load failed")
	// ErrRetrieval is returned when similarity search fails.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration is returned when the language model call fails.
	ErrGeneration = errors.New("generation failed")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// BuildError reports why an index build was aborted. Nothing is persisted when it is returned.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index build failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("index build failed: %s", e.Reason)
}

func (e *BuildError) Is(target error) bool { return target == ErrBuild }
func (e *BuildError) Unwrap() error        { return e.Err }

// IndexLoadError reports a persisted index that cannot be read back.
type IndexLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IndexLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load index %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load index %s: %s", e.Path, e.Reason)
}

func (e *IndexLoadError) Is(target error) bool { return target == ErrIndexLoad }
func (e *IndexLoadError) Unwrap() error        { return e.Err }

// RetrievalError wraps a failed similarity search.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }
func (e *RetrievalError) Unwrap() error        { return e.Err }

// GenerationError wraps a failed language model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
func (e *GenerationError) Unwrap() error        { return e.Err }

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
