package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a generation-backend fault: a transport failure or a
// non-2xx HTTP response. Status is 0 for transport errors.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm upstream: %v", e.Err)
	}
	return fmt.Sprintf("llm upstream: status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the fault is transient: transport errors,
// rate limits and server errors.
func (e *UpstreamError) Retryable() bool {
	if e.Status == 0 {
		return true
	}
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ParseError means structured output was requested but the model response
// was not well-formed after retries.
type ParseError struct {
	Model string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm parse: model %s returned malformed output: %v", e.Model, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is a generation-backend fault.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsParse reports whether err is a malformed-output fault.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsRetryable classifies an error for the retry policy: transient upstream
// faults and malformed structured output both warrant another attempt.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	var pe *ParseError
	return errors.As(err, &pe)
}
