package domain

import (
	"errors"
	"fmt"
)

var (
	ErrArchive           = errors.New("archive failure")
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network failure")
	ErrServer            = errors.New("server error")
	ErrUnparseableServer = errors.New("unparseable server error")
	ErrStorage           = errors.New("storage failure")

	ErrInvalidInput      = errors.New("invalid input")
	ErrJobAlreadyRunning = errors.New("job already running")
	ErrBusy              = errors.New("archive is being built")
	ErrNoArchive         = errors.New("no archive selected")
	ErrSelectionCleared  = errors.New("selection cleared")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf maps a wrapped error onto the outcome taxonomy. Unknown errors are
// reported as network failures since they originate below the HTTP layer.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrArchive):
		return ErrorKindArchive
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrUnparseableServer):
		return ErrorKindUnparseableServer
	case errors.Is(err, ErrServer):
		return ErrorKindServer
	case errors.Is(err, ErrStorage):
		return ErrorKindStorage
	default:
		return ErrorKindNetwork
	}
}
