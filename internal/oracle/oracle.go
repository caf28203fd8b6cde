// Package oracle abstracts the external text-generation service that writes
// and repairs SQL.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Oracle turns a prompt into a text completion.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrNoAPIKey is returned when the client is built without credentials.
var ErrNoAPIKey = errors.New("oracle api key is not set (set OPENAI_API_KEY or oracle.api_key)")

// ErrEmptyResponse is returned when the service answers without any choice.
var ErrEmptyResponse = errors.New("oracle returned no completion")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oracle request failed with status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
