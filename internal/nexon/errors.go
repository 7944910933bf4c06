package nexon

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an API failure so callers can decide whether a retry
// can help. The client itself never retries.
type ErrorKind int

const (
	// KindNotFound means the resource does not exist (unknown name, no data
	// for the requested date). Retrying will not help.
	KindNotFound ErrorKind = iota + 1
	// KindTransient means a timeout, transport error, 429 or 5xx. Worth a
	// retry with backoff.
	KindTransient
	// KindMalformed means the response body did not decode into the expected
	// shape. Treated like NotFound by callers.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// APIError is the diagnostic attached to every failed call.
type APIError struct {
	Kind     ErrorKind
	Status   int    // HTTP status, 0 for transport failures
	Endpoint string // path without query, for logging
	Body     string // truncated response body
	Err      error  // underlying transport/decode error, if any
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s (status %d): %v", e.Kind, e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s (status %d)", e.Kind, e.Endpoint, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTransient reports whether err is an APIError worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindTransient
}

// IsNotFound reports whether err means "no data" (including malformed bodies,
// which callers treat the same way).
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Kind == KindNotFound || apiErr.Kind == KindMalformed)
}
