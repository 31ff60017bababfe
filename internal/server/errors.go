package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/resume-tailor/internal/db"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// HTTPStatus maps auth errors to response codes.
func HTTPStatus(err error) int {
	var invalidCreds *ErrInvalidCredentials
	switch {
	case errors.Is(err, db.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.As(err, &invalidCreds):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
