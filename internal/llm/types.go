package llm

import (
	"net/http"
	"time"
)

// CompletionParams holds sampling parameters for completion requests.
type CompletionParams struct {
	// MaxTokens limits the generated length. If 0, the server default applies.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}

// DefaultCompletionParams matches the defaults of the OpenAI completions client.
var DefaultCompletionParams = CompletionParams{
	MaxTokens:   256,
	Temperature: 0.7,
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
