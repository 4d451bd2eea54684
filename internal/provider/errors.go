package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportErrorKind tags how an outbound call failed.
type TransportErrorKind int

const (
	KindNetwork TransportErrorKind = iota + 1
	KindTimeout
	KindHTTPStatus
)

func (k TransportErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	}
	return "unknown"
}

// TransportError is produced by adapters for every failed outbound call so
// that callers decide on retries from the tag alone.
type TransportError struct {
	Kind       TransportErrorKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusCode returns the response status, or 0 when no response was received.
func (e *TransportError) HTTPStatusCode() int { return e.StatusCode }

// Retryable reports whether the same request may succeed if sent again:
// network failures, timeouts, 429 and 5xx.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

// StatusError tags a non-2xx response.
func StatusError(code int, err error) *TransportError {
	return &TransportError{Kind: KindHTTPStatus, StatusCode: code, Err: err}
}

// ClassifyError tags an error returned before any response status was read.
// Deadline errors and net timeouts become KindTimeout, everything else KindNetwork.
func ClassifyError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	return &TransportError{Kind: KindNetwork, Err: err}
}
