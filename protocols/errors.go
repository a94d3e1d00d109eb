package protocols

import (
	"errors"
	"fmt"
	"net/http"

	"go.urlrecord.dev/core/address"
)

var (
	// ErrUnsupportedScheme is returned when no Handler is registered for
	// the scheme of an Address.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrUnsupportedOperation is returned by a Handler which has no
	// equivalent of the requested operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrNotFound is matched by errors of a Handler which found no resource
	// at the Address.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is matched by errors of a Handler which was not
	// authorized to access the Address, or its bucket or container.
	ErrAccessDenied = errors.New("access denied")
)

// OpError is a failure of an operation against an Address. All errors of
// Registry operations, other than scheme lookup, are an *OpError.
type OpError struct {
	Op      string
	Address address.Address
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Address, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// StatusError is a non-2xx status of an HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("unexpected HTTP status %d %s", e.Code, http.StatusText(e.Code))
	}
	return "unexpected HTTP status " + e.Status
}

// Is matches ErrNotFound if the status is 404, and ErrAccessDenied if 403.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrAccessDenied:
		return e.Code == http.StatusForbidden
	}
	return false
}
