// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/utils"
)

// Error kinds returned by every service. Callers tell them apart with
// errors.Is; the wrapped message carries the detail.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidTransition   = errors.New("invalid transition")
)

func notFound(entity string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

func violation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}

func invalidTransition(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// translateError maps database and validation failures onto the service
// error kinds. Errors that already carry a kind pass through unchanged.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConstraintViolation), errors.Is(err, ErrInvalidTransition):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: duplicate %s", ErrConstraintViolation, entity)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s references a missing or still referenced row", ErrConstraintViolation, entity)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %s failed a check constraint", ErrConstraintViolation, entity)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s: %s", ErrConstraintViolation, entity, pgErr.Message)
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %s: %s", ErrConstraintViolation, entity, utils.DescribeValidationErrors(validationErrs))
	}

	return fmt.Errorf("%s: %w", entity, err)
}

func validateEntity(v interface{}, entity string) error {
	if err := utils.ValidateStruct(v); err != nil {
		return translateError(err, entity)
	}
	return nil
}
