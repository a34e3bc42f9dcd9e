package vault

import (
	"errors"
	"fmt"

	"github.com/getgrowly/vault-lifecycle/pkg/options"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	// KindTransport means no response was received (connection refused,
	// timeout, DNS or TLS failure).
	KindTransport ErrorKind = iota
	// KindClient is a 4xx response.
	KindClient
	// KindServer is a 5xx response.
	KindServer
)

// String makes ErrorKind satisfy the fmt.Stringer interface.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// ErrInvalidArgument is wrapped by errors caused by a bad caller argument that
// is detected locally, such as an unknown service name.
var ErrInvalidArgument = errors.New("invalid argument")

// Error is returned by every failed Vault call.
type Error struct {
	Kind ErrorKind

	// Message includes the status code and reason phrase and, for HTTP
	// errors, the raw response body.
	Message string

	// StatusCode is zero for transport errors.
	StatusCode int

	// Response is the full response for client and server errors.
	Response *Response

	// Err is the underlying cause of a transport error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func newTransportError(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("something went wrong when calling vault (%v)", err),
		Err:     err,
	}
}

func newStatusError(resp *Response) *Error {
	kind := KindClient
	if resp.StatusCode >= 500 {
		kind = KindServer
	}

	msg := fmt.Sprintf("something went wrong when calling vault (%d - %s)", resp.StatusCode, resp.reason())
	if len(resp.Body) > 0 {
		msg += "\n" + string(resp.Body)
	}

	return &Error{
		Kind:       kind,
		Message:    msg,
		StatusCode: resp.StatusCode,
		Response:   resp,
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind, true
	}
	return 0, false
}

// IsTransportError reports whether err means no response was received.
func IsTransportError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindTransport
}

// IsClientError reports whether err is a 4xx response or a local parameter
// validation failure.
func IsClientError(err error) bool {
	var verr *options.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	kind, ok := kindOf(err)
	return ok && kind == KindClient
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindServer
}

// StatusCode returns the HTTP status attached to err, or zero.
func StatusCode(err error) int {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.StatusCode
	}
	var valErr *options.ValidationError
	if errors.As(err, &valErr) {
		return valErr.StatusCode()
	}
	return 0
}
