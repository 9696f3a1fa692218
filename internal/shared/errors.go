package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers every token failure: missing, malformed,
	// expired or forged tokens are not distinguished.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates an attempt to touch another office's data.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates a unique key collision.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrTooManyAttempts indicates the identity is temporarily locked.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrStore indicates the backing store failed.
	ErrStore = errors.New("store unavailable")
)

// IsDomainError reports whether err already carries one of the outcomes above
// other than ErrStore.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrInvalidCredentials, ErrUnauthenticated, ErrValidation, ErrForbidden, ErrDuplicate, ErrTooManyAttempts} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// WrapStore tags an unexpected persistence failure with ErrStore so the
// transport layer reports it apart from the domain outcomes.
func WrapStore(op string, err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
