package provider

import (
	"context"
	"fmt"
)

// Transcriber converts one unit of audio into text. Implementations make a
// single call to the external service with no internal retry; retry policy
// belongs to the caller.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Summarizer sends a prompt to a language model and returns its raw text
// output. Single-shot, no internal retry.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Error is the failure surface of both provider capabilities.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// NewError wraps an underlying provider failure with a stable code.
func NewError(code string, err error) *Error {
	return &Error{Code: code, Message: err.Error()}
}
