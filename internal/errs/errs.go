package errs

import (
	"errors"
	"strings"
)

// Sentinel errors shared by the chat and social packages. The API layer
// maps these onto HTTP status codes.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
)

// IsTransient reports whether err looks like a transient network failure
// eligible for a retry. Detection is by substring match on the error text,
// matching the behavior of the send-retry path.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "network") || strings.Contains(msg, "connection")
}
