package aiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestRejected marks a non-retryable response from the completion
	// endpoint (any non-2xx status other than 429 and 5xx).
	ErrRequestRejected = errors.New("ai request rejected")

	// ErrRetriesExhausted marks a call whose retryable failures used up every attempt.
	ErrRetriesExhausted = errors.New("ai retries exhausted")
)

// ContentFormatError reports a reply that could not be coerced into the
// fortune object after both parse passes. Raw holds the reply text.
type ContentFormatError struct {
	Raw string
	Err error
}

func (e *ContentFormatError) Error() string {
	return fmt.Sprintf("ai reply is not a fortune object: %v", e.Err)
}

func (e *ContentFormatError) Unwrap() error { return e.Err }
