package repository

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

func classifyWriteError(err error) error {
	return &domain.WriteError{Retryable: isTransient(err), Err: err}
}

// isTransient reports whether a failed write may succeed if resubmitted
// unchanged.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.LockNotAvailable,
			pgerrcode.TooManyConnections,
			pgerrcode.QueryCanceled,
			pgerrcode.CannotConnectNow,
			pgerrcode.AdminShutdown:
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
