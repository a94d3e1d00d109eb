package address

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResolution is matched (via errors.Is) by every error produced while
// parsing, building, or converting an Address.
var ErrResolution = errors.New("address resolution failed")

// Validator is a type able to validate itself. Validate inspects the type for
// syntactic or semantic issues, and returns a descriptive error if any
// violations are encountered. It is recommended that Validate return instances
// of ValidationError where possible, which enables tracking nested contexts.
type Validator interface {
	Validate() error
}

// ValidationError is an error implementation which captures its validation context.
type ValidationError struct {
	Context []string
	Err     error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Context) != 0 {
		return strings.Join(ve.Context, ".") + ": " + ve.Err.Error()
	}
	return ve.Err.Error()
}

// Unwrap returns the underlying error.
func (ve *ValidationError) Unwrap() error { return ve.Err }

// Is matches ErrResolution, so that callers may classify any ValidationError
// as an address resolution failure.
func (ve *ValidationError) Is(target error) bool { return target == ErrResolution }

// ExtendContext type-checks |err| to a *ValidationError, and if matched extends
// it with |context|. In all cases the value of |err| is returned.
func ExtendContext(err error, format string, args ...interface{}) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Context = append([]string{fmt.Sprintf(format, args...)}, ve.Context...)
	}
	return err
}

// NewValidationError parallels fmt.Errorf to returns a new ValidationError instance.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}
