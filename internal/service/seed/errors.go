package seed

import (
	"fmt"
	"net/http"
)

// Messages returned to HTTP callers.
const (
	MessagePermissionDenied = "Permission denied."
	MessageUsersInserted    = "Users inserted successfully."
)

// Storage operations named by StorageError.
const (
	OpDelete      = "delete"
	OpInsert      = "insert"
	OpTransaction = "transaction"
)

// AuthorizationError is returned when the runtime environment forbids a
// reseed. No store call has been made when it is returned.
type AuthorizationError struct {
	Environment string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("seed: reseed not permitted in %q environment", e.Environment)
}

// StatusCode is the HTTP status matching the error.
func (e *AuthorizationError) StatusCode() int {
	return http.StatusForbidden
}

// Message is the caller-facing text.
func (e *AuthorizationError) Message() string {
	return MessagePermissionDenied
}

// StorageError wraps a failure of the user store during a reseed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("seed: %s users: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
