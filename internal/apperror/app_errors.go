package apperror

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrWriteFailed       = errors.New("write failed")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidBoard      = errors.New("invalid board")
	ErrInvalidName       = errors.New("invalid name")
	ErrStaleRound        = errors.New("stale round")
	ErrNotLoaded         = errors.New("session is not loaded")
	ErrAlreadyLoaded     = errors.New("session is already loaded")
)

// WriteFailed marks err as a failed store write, keeping the cause visible to errors.Is.
func WriteFailed(err error) error {
	if err == nil {
		return nil
	}

	return errors.Join(ErrWriteFailed, err)
}
