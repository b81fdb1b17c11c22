package accepton

import "net/http"

// ErrorKind classifies every failure the SDK can surface.
type ErrorKind string

const (
	ErrKindBadRequest         ErrorKind = "bad_request"          // API rejected the request as malformed.
	ErrKindUnauthorized       ErrorKind = "unauthorized"         // Access key was missing or invalid.
	ErrKindNotFound           ErrorKind = "not_found"            // Endpoint or resource does not exist.
	ErrKindServerError        ErrorKind = "server_error"         // API returned an internal server error.
	ErrKindServiceUnavailable ErrorKind = "service_unavailable"  // Temporary outage or maintenance.
	ErrKindUnknownStatus      ErrorKind = "unknown_status"       // API returned a status the SDK does not recognize.
	ErrKindNetworkFailure     ErrorKind = "network_failure"      // Request never produced an HTTP response.
	ErrKindMalformedResponse  ErrorKind = "malformed_response"   // Response body was missing, not JSON, or schema-invalid.
	ErrKindDeveloperError     ErrorKind = "developer_error"      // The SDK was used incorrectly; fix the integration.
	ErrKindTransactionFailure ErrorKind = "transaction_failure"  // A payment driver could not complete the charge.
)

// Error is the structured error type returned by the client and relayed
// through [UIMachineDelegate.DidFailBegin].
type Error struct {
	Kind    ErrorKind
	Message string

	status int
	cause  error
}

// Error satisfies the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying transport or decoding error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus returns the status code the API answered with, or zero when
// the failure happened before a response arrived.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.status
}

// IsRecoverable reports whether the user can retry without constructing a
// new [UIMachine]. Transport failures during the begin sequence are not
// recoverable; driver-level transaction failures are.
func (e *Error) IsRecoverable() bool {
	if e == nil {
		return false
	}
	return e.Kind == ErrKindTransactionFailure
}

type errorOption func(*Error)

// withHTTPStatus records the status code the API answered with.
func withHTTPStatus(status int) errorOption {
	return func(er *Error) {
		er.status = status
	}
}

// withCause chains the lower-level error for errors.Is/As inspection.
func withCause(cause error) errorOption {
	return func(er *Error) {
		er.cause = cause
	}
}

// NewDeveloperError flags incorrect SDK usage, e.g. calling BeginForItem twice.
func NewDeveloperError(message string) *Error {
	return newError(ErrKindDeveloperError, message)
}

// NewNetworkError wraps a transport-level failure that produced no HTTP response.
func NewNetworkError(message string, cause error) *Error {
	return newError(ErrKindNetworkFailure, message, withCause(cause))
}

// NewMalformedResponseError flags a 2xx response whose body could not be used.
func NewMalformedResponseError(message string) *Error {
	return newError(ErrKindMalformedResponse, message)
}

// errorForStatus maps a non-2xx API status code onto the error taxonomy.
func errorForStatus(status int) *Error {
	switch status {
	case http.StatusBadRequest:
		return newError(ErrKindBadRequest, "AcceptOn's API returned Bad Request 400", withHTTPStatus(status))
	case http.StatusUnauthorized:
		return newError(ErrKindUnauthorized, "AcceptOn's API returned Unauthorized 401", withHTTPStatus(status))
	case http.StatusNotFound:
		return newError(ErrKindNotFound, "AcceptOn's API returned Not Found 404", withHTTPStatus(status))
	case http.StatusInternalServerError:
		return newError(ErrKindServerError, "AcceptOn's API returned Internal Server Error 500", withHTTPStatus(status))
	case http.StatusServiceUnavailable:
		return newError(ErrKindServiceUnavailable, "AcceptOn's API returned Service Unavailable 503", withHTTPStatus(status))
	default:
		return newError(ErrKindUnknownStatus, "AcceptOn's API returned an unexpected status", withHTTPStatus(status))
	}
}

// newError builds a typed error payload.
func newError(kind ErrorKind, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Kind:    kind,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}
