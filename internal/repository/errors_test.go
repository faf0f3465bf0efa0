package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"connection failure class", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, true},
		{"disk full", &pgconn.PgError{Code: pgerrcode.DiskFull}, true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"undefined table", &pgconn.PgError{Code: pgerrcode.UndefinedTable}, false},
		{"wrapped pg error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.LockNotAvailable}), true},
		{"context cancelled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransient(tc.err))
		})
	}
}

func TestClassifyWriteError(t *testing.T) {
	cause := &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	err := classifyWriteError(cause)

	assert.True(t, domain.IsRetryable(err))
	assert.ErrorIs(t, err, cause)
}
