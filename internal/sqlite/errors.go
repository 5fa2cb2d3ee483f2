package sqlite

import (
	"strings"

	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// constraintError maps SQLite constraint failures to the shared repository
// sentinels. The driver exposes no structured error codes, so classification
// goes by message.
func constraintError(err error) error {
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return repository.ErrDuplicate
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return repository.ErrForeignKeyViolation
	}
	return nil
}
