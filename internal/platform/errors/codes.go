// Package errors provides structured, coded domain errors.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Command errors
	CodeCommandEmpty   Code = "COMMAND_EMPTY"
	CodeCommandTooLong Code = "COMMAND_TOO_LONG"

	// Account errors
	CodeUsernameInvalid    Code = "USERNAME_INVALID"
	CodeUsernameTaken      Code = "USERNAME_TAKEN"
	CodePasswordInvalid    Code = "PASSWORD_INVALID"
	CodeRoleInvalid        Code = "ROLE_INVALID"
	CodeCredentialsInvalid Code = "CREDENTIALS_INVALID"
	CodeTokenInvalid       Code = "TOKEN_INVALID"

	// Request errors
	CodeRequestMalformed Code = "REQUEST_MALFORMED"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodePersistence   Code = "PERSISTENCE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeCommandEmpty,
		CodeCommandTooLong,
		CodeUsernameInvalid,
		CodePasswordInvalid,
		CodeRoleInvalid,
		CodeRequestMalformed:
		return http.StatusBadRequest

	// Unauthorized - identity could not be established
	case CodeCredentialsInvalid,
		CodeTokenInvalid:
		return http.StatusUnauthorized

	// Conflict - unique resource constraint
	case CodeUsernameTaken:
		return http.StatusConflict

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Internal - storage did not commit
	default:
		return http.StatusInternalServerError
	}
}
