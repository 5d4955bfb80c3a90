package fetcher

import (
	"fmt"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	// TransportError covers DNS, connection, TLS, timeout and body read failures.
	TransportError ErrorKind = iota + 1
	// RemoteError is a response with a status other than 200.
	RemoteError
	// MalformedResponse is a 200 response whose body is not JSON.
	MalformedResponse
	// InternalError is anything else going wrong inside the fetcher.
	InternalError
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport_error"
	case RemoteError:
		return "remote_error"
	case MalformedResponse:
		return "malformed_response"
	case InternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("unknown_error(%d)", int(k))
	}
}

// Error is the failure variant of a Result.
type Error struct {
	Kind       ErrorKind
	Identifier string
	// StatusCode is set for RemoteError only.
	StatusCode int
	// Timeout reports whether a TransportError was caused by the round-trip bound.
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case RemoteError:
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	case TransportError:
		return fmt.Sprintf("Request error: %v", e.Err)
	case MalformedResponse:
		return fmt.Sprintf("Malformed response: %v", e.Err)
	default:
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
