package controlplane

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/containerd/errdefs"
)

// RemoteError is a non-success response from the control plane. Body is the
// raw response body, unmodified.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: control plane returned status %d %s: %s",
		e.Op, e.Status, http.StatusText(e.Status), strings.TrimSpace(e.Body))
}

// Unwrap maps the status onto an errdefs class so callers can use
// errdefs.IsNotFound and friends.
func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return statusClass(e.Status)
}

func statusClass(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return errdefs.ErrUnauthenticated
	case status == http.StatusForbidden:
		return errdefs.ErrPermissionDenied
	case status == http.StatusNotFound:
		return errdefs.ErrNotFound
	case status == http.StatusConflict:
		return errdefs.ErrConflict
	case status == http.StatusTooManyRequests:
		return errdefs.ErrResourceExhausted
	case status >= 500:
		return errdefs.ErrUnavailable
	case status >= 400:
		return errdefs.ErrInvalidArgument
	default:
		return errdefs.ErrUnknown
	}
}

// MalformedResponseError is a success response whose body could not be
// decoded into the expected shape. The remote operation may have taken
// effect.
type MalformedResponseError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: malformed response (status %d): %v: %s", e.Op, e.Status, e.Err, strings.TrimSpace(e.Body))
}

func (e *MalformedResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
