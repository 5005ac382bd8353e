package forum

import (
	"errors"
	"fmt"

	"github.com/medforum/medforum/internal/platform/db"
)

// Error kinds returned by Session operations. Callers branch with errors.Is.
// A missing record is never an error: reads return nil and deletes false.
var (
	ErrFormat        = errors.New("malformed identifier")
	ErrConflict      = errors.New("conflict")
	ErrAuthorization = errors.New("not authorized")
	ErrIntegrity     = errors.New("integrity violation")
	ErrStorage       = errors.New("storage error")
	ErrSessionClosed = errors.New("session closed")
)

// storageErr wraps an engine failure so both ErrStorage and the driver error
// stay reachable through errors.Is / errors.As.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// classify maps constraint failures reported by the engine onto the error
// kinds above. Anything it does not recognise is a storage error.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isKind(err):
		return err
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrIntegrity, err)
	default:
		return storageErr(op, err)
	}
}

func isKind(err error) bool {
	for _, k := range []error{ErrFormat, ErrConflict, ErrAuthorization, ErrIntegrity, ErrStorage, ErrSessionClosed} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
