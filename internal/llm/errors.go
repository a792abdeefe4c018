package llm

import "fmt"

// ErrorKind is the structured classification of a completion failure.
// Transport failures are never signaled through the response text.
type ErrorKind string

const (
	KindTimeout             ErrorKind = "timeout"
	KindHTTPError           ErrorKind = "http_error"
	KindNetworkError        ErrorKind = "network_error"
	KindEmptyResponse       ErrorKind = "empty_response"
	KindCredentialMissing   ErrorKind = "credential_missing"
	KindUnsupportedProvider ErrorKind = "unsupported_provider"
)

// Error is a classified completion failure. Status is set for KindHTTPError.
type Error struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPError && e.Err != nil:
		return fmt.Sprintf("completion failed: http %d: %v", e.Status, e.Err)
	case e.Kind == KindHTTPError:
		return fmt.Sprintf("completion failed: http %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("completion failed: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("completion failed: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }
