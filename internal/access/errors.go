package access

import (
	"errors"
	"fmt"
)

// Credential rejections. All four are reported to callers as a single
// "unauthenticated" outcome; the kind is only logged.
var (
	ErrMissingCredential = errors.New("access: missing credential")
	ErrInvalidCredential = errors.New("access: invalid credential")
	ErrExpiredCredential = errors.New("access: expired credential")
	ErrUnknownSubject    = errors.New("access: credential subject unknown")
)

var (
	ErrAuthenticationRequired = errors.New("access: authentication required")
	ErrForbidden              = errors.New("access: forbidden")
	ErrUnknownGrantee         = errors.New("access: unknown grantee")
	ErrTokenNotFound          = errors.New("access: share token not found")
	ErrTokenExpired           = errors.New("access: share token expired")
	ErrFileNotFound           = errors.New("access: file not found")
	ErrUserNotFound           = errors.New("access: user not found")
	ErrDuplicateEmail         = errors.New("access: email already registered")
	ErrInvalidLogin           = errors.New("access: invalid email or password")
	ErrInvalidInput           = errors.New("access: invalid input")
	ErrStorage                = errors.New("access: storage failure")
)

// IsUnauthenticated reports whether err means the caller has no usable
// identity.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrUnknownSubject) ||
		errors.Is(err, ErrAuthenticationRequired)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
