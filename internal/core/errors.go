package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("email and password are required")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidDocument    = errors.New("invalid document input")
)

// ProviderError wraps any failure reported by an upstream generation
// provider. Its message is the upstream message unchanged.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if msg, ok := openAIMessage(e.Err); ok {
		return msg
	}
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

func errNotConfigured(provider string) error {
	return fmt.Errorf("%s API key is not configured", provider)
}
