package proxy

import (
	"errors"

	"github.com/modelgate/modelgate/internal/proxy/types"
)

// RequestError represents a request parsing or validation error raised by
// the gateway itself, before any backend call is attempted.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

func (e *RequestError) Error() string { return e.Message }

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}

// TransportError represents a failure to complete the backend HTTP call
// itself: connection refused, DNS failure, or context deadline exceeded.
// It is distinct from a backend response with a non-2xx status, which is
// passed through to the client unchanged rather than converted.
type TransportError struct {
	// Timeout is true when the failure was a context deadline, as opposed
	// to a connection-level failure.
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// HandleError converts an error raised while preparing or forwarding a
// proxied request into an OpenAI-compatible error response. It does not
// handle backend responses that were successfully received with a non-2xx
// status; those are passed through verbatim by the caller instead.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout {
			return types.NewGatewayTimeoutError(
				"the request took too long to complete: " + transportErr.Error(),
			)
		}
		return types.NewServiceUnavailableError(
			"could not reach the backend: " + transportErr.Error(),
		)
	}

	return types.NewServerError("an internal error occurred")
}
