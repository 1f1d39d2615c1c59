package services

import (
	"errors"

	"github.com/anonto42/classifieds/backend/internal/repositories"
)

// Sentinel errors returned by the services. Handlers map them to HTTP status codes.
var (
	ErrNotFound             = repositories.ErrNotFound
	ErrForbidden            = errors.New("not allowed to access this resource")
	ErrSelfConversation     = errors.New("you cannot start a conversation about your own listing")
	ErrConfirmationRequired = errors.New("deletion must be confirmed")
	ErrEmailTaken           = errors.New("user with this email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrFirebaseDisabled     = errors.New("firebase login is not configured")
)

// ValidationError reports input rejected before any remote call was made
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
