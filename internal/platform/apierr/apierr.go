package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidArgument    = "invalid_argument"
	CodeNotFound           = "not_found"
	CodeModelCallFailure   = "model_call_failure"
	CodePersistenceFailure = "persistence_failure"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidArgument(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidArgument, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func ModelCallFailure(err error) *Error {
	return New(http.StatusBadGateway, CodeModelCallFailure, err)
}

func PersistenceFailure(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistenceFailure, err)
}

// AsError returns the *Error inside err, or wraps err as a 500.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
