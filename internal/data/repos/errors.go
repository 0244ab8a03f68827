package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/platform/apierr"
)

// ErrRetryable tags transient database failures.
var ErrRetryable = errors.New("retryable database error")

// MapError translates driver failures into apierr sentinels so handlers can
// pick a status. op names the failing operation.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apierr.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, apierr.ErrConflict, pgErr.Detail) // unique_violation
		case "23503":
			return fmt.Errorf("%s: %w: %s", op, apierr.ErrInvalidArgument, pgErr.Detail) // foreign_key_violation
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w: %v", op, ErrRetryable, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return fmt.Errorf("%s: %w", op, apierr.ErrConflict)
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%s: %w: %v", op, ErrRetryable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
