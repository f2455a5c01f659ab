package resource

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/konnektr-io/rest-resource/pkg/rest"
)

// Transport error classifications.
const (
	ErrorTypeNetwork  = "network"
	ErrorTypeTimeout  = "timeout"
	ErrorTypeCanceled = "canceled"
	ErrorTypeRequest  = "request"
	ErrorTypeDecode   = "decode"
)

// ErrHTTPStatus matches every *HTTPError with errors.Is.
var ErrHTTPStatus = errors.New("resource: HTTP error status")

// TransportError describes a call that produced no usable HTTP response. The
// same value is carried by the rejected record and returned by the Deferred.
type TransportError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Cause   error  `json:"-"`
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// HTTPError is returned when a response was received with a status of 400 or more.
type HTTPError struct {
	StatusCode int
	// Body is the decoded response body.
	Body any
}

func (e *HTTPError) Error() string {
	if e.Body == nil {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Body)
}

// Is reports whether target is ErrHTTPStatus.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// newTransportError classifies err into a TransportError.
func newTransportError(err error, errType string) *TransportError {
	if errType == "" {
		errType = classify(err)
	}
	names := map[string]string{
		ErrorTypeNetwork:  "NetworkError",
		ErrorTypeTimeout:  "TimeoutError",
		ErrorTypeCanceled: "AbortError",
		ErrorTypeRequest:  "RequestError",
		ErrorTypeDecode:   "DecodeError",
	}
	return &TransportError{
		Name:    names[errType],
		Message: err.Error(),
		Type:    errType,
		Cause:   err,
	}
}

func classify(err error) string {
	var reqErr *rest.RequestError
	var netErr net.Error
	switch {
	case errors.As(err, &reqErr):
		return ErrorTypeRequest
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorTypeTimeout
	default:
		return ErrorTypeNetwork
	}
}
