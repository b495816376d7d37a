package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// Failure reasons carried by Error
const (
	ReasonTimeout           = "timeout"
	ReasonDNS               = "dns"
	ReasonConnectionRefused = "connection_refused"
	ReasonHTTPStatus        = "http_status"
	ReasonInvalidJSON       = "invalid_json"
	ReasonRendererError     = "renderer_error"
	ReasonBrowser           = "browser"
	ReasonUnknown           = "unknown"
)

// Error is a classified PDF rendering failure. It matches model.ErrPDF with errors.Is.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", model.ErrPDF.Error(), e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == model.ErrPDF }

func newError(reason string, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// classify maps transport errors to a failure reason
func classify(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &dnsErr):
		return ReasonDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	}
	return ReasonUnknown
}
