package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrRequestBlocked is returned (inside a TransportError) when the rate limit gate
// refuses to send a request.
var ErrRequestBlocked = errors.New("request blocked: rate limit critical")

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and requests blocked locally.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPayload represents a success status with an unusable body.
	ErrorClassPayload ErrorClass = "payload"
)

// TransportError reports a request that produced no usable HTTP response:
// unreachable endpoint, timeout, cancelled context or a locally blocked request.
type TransportError struct {
	Endpoint string
	Class    ErrorClass
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s) for %s: %v", e.Class, e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ResponseError reports a non-success status or a malformed payload.
type ResponseError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d) for %s: %s: %v",
			e.Class, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d) for %s: %s",
		e.Class, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResponseError) Unwrap() error {
	return e.Err
}

// Class returns the ErrorClass of err, or "" when err is not a client error.
func Class(err error) ErrorClass {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Class
	}
	var responseErr *ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.Class
	}
	return ""
}

// Retryable reports whether re-issuing the same request could succeed.
// The client never retries on its own; callers use this to decide.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch Class(err) {
	case ErrorClassNetwork, ErrorClassServer, ErrorClassRateLimit:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
