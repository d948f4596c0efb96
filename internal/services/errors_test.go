package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/javajoker/supplymatch-backend/internal/models"
)

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), ErrNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, ErrConstraintViolation},
		{"foreign key", gorm.ErrForeignKeyViolated, ErrConstraintViolation},
		{"check constraint", gorm.ErrCheckConstraintViolated, ErrConstraintViolation},
		{"not null", &pgconn.PgError{Code: "23502", Message: "null value in column"}, ErrConstraintViolation},
		{"kind passes through", invalidTransition("closed"), ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tc.err, "listing"), tc.kind)
		})
	}
}

func TestTranslateErrorKeepsUnknownErrors(t *testing.T) {
	boom := errors.New("connection reset")
	err := translateError(boom, "listing")

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrConstraintViolation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Nil(t, translateError(nil, "listing"))

	syntax := &pgconn.PgError{Code: "42601"}
	assert.NotErrorIs(t, translateError(syntax, "listing"), ErrConstraintViolation)
}

func TestValidateEntity(t *testing.T) {
	err := validateEntity(&models.Review{Mark: 9}, "review")
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Contains(t, err.Error(), "Mark must be at most 5")

	assert.NoError(t, validateEntity(&models.Review{Mark: 3}, "review"))
}
