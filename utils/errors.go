package utils

import "net/http"

// AppError is the uniform error kind every pipeline operation reduces its
// failures to. Raw store, hashing or token errors never cross the HTTP
// boundary; they are wrapped into one of the constructors below.
type AppError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

// ErrValidation reports rejected user input.
func ErrValidation(message string) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Message: message}
}

// ErrAuthentication reports a missing, malformed or unverifiable token.
func ErrAuthentication() *AppError {
	return &AppError{Status: http.StatusForbidden, Message: "Authentication failed!"}
}

// ErrAuthorization reports an authenticated caller acting on a resource it
// does not own.
func ErrAuthorization(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Message: message}
}

// ErrNotFound reports a missing entity.
func ErrNotFound(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Message: message}
}

// ErrConflict reports a uniqueness violation such as a duplicate email.
func ErrConflict(message string) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Message: message}
}

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password so the response never reveals which field was wrong.
func ErrInvalidCredentials() *AppError {
	return &AppError{Status: http.StatusForbidden, Message: "Could not find a user with those credentials"}
}

// ErrStore reports an infrastructure fault (database, hashing, token
// signing). Terminal for the request; no retries.
func ErrStore(message string) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Message: message}
}
