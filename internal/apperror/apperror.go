package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidInput     = Error("invalid input")
	ErrNotFound         = Error("not found")
	ErrCapacityExceeded = Error("category capacity exceeded")
	ErrStore            = Error("store error")
	ErrConflictRetry    = Error("write conflict") // unique violation on insert, retry as update
	ErrUnauthorized     = Error("not logged in")
)

// StoreError wraps a driver error with the name of the failing operation.
type StoreError struct {
	Op  string // eg. repository method
	Err error
}

func (se *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", se.Op, se.Err)
}

func (se *StoreError) Unwrap() error { return se.Err }

// Is makes every StoreError match ErrStore.
func (se *StoreError) Is(target error) bool {
	return target == ErrStore
}

// WrapStore adds the operation name to a store error. Taxonomy errors pass through untouched.
func WrapStore(err error, op string) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrConflictRetry, ErrInvalidInput, ErrStore} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}

// HTTPStatus maps an error onto the status code returned to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrStore):
		// a StoreError can wrap a taxonomy error, eg. an exhausted conflict retry
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrConflictRetry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to clients. Internal errors get a generic message.
func Message(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal error, please try again later"
	}
	return err.Error()
}
