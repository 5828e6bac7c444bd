package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"gorm not found", gorm.ErrRecordNotFound, IsNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, IsConflict},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, IsReferential},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, IsConflict},
		{"postgres foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), IsReferential},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, IsConflict},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, IsReferential},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: carts.user_id, carts.product_id (2067)"), IsConflict},
		{"sqlite foreign key", errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), IsReferential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(Classify(tt.err, "cart")))
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	assert.NoError(t, Classify(nil, "x"))

	plain := errors.New("connection reset")
	assert.Same(t, plain, Classify(plain, "x"))

	ve := Validation("rating", "must be at most 5")
	assert.Same(t, ve, Classify(ve, "product"))
}

func TestConflictKeepsCause(t *testing.T) {
	err := Classify(gorm.ErrDuplicatedKey, "user")
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.Equal(t, "conflict: user already exists", err.Error())
}

func TestValidationMessage(t *testing.T) {
	err := Validation("quantity", "must be at least %d", 1)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, "validation error on field quantity: must be at least 1", err.Error())
}
