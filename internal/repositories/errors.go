package repositories

import (
	"context"
	"errors"
	"fmt"

	"toko-orders/internal/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Postgres SQLSTATEs that are worth retrying.
var retryablePgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement timeout)
}

// classifyTxError maps a failed transaction to the error taxonomy.
// ctx is the transaction's own context.
func classifyTxError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsNotFound(err) || apperrors.IsConflict(err) || apperrors.IsValidation(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Transient(op, context.DeadlineExceeded)
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, context.Canceled)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryablePgCodes[pgErr.Code] {
		return apperrors.Transient(op, err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && (liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked) {
		return apperrors.Transient(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
