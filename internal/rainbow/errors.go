package rainbow

import "github.com/pkg/errors"

var (
	ErrValidation    = errors.New("validation error")
	ErrResource      = errors.New("resource error")
	ErrTimeout       = errors.New("timeout exceeded")
	ErrWorkerFailure = errors.New("worker failure")
	ErrNotFound      = errors.New("password not found")
)

func validationErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}
