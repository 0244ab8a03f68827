package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/platform/apierr"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"not found", gorm.ErrRecordNotFound, apierr.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apierr.ErrConflict},
		{"fk", &pgconn.PgError{Code: "23503"}, apierr.ErrInvalidArgument},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrRetryable},
		{"sqlite unique", errors.New("UNIQUE constraint failed: submission.student_id"), apierr.ErrConflict},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tc := range cases {
		if got := MapError("op", tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: MapError = %v, want wrapping %v", tc.name, got, tc.want)
		}
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
	ae := apierr.Conflict("taken", "username taken")
	if got := MapError("op", ae); got != error(ae) {
		t.Fatalf("api errors should pass through: %v", got)
	}
	if !IsRetryable(MapError("op", errors.New("database is locked"))) {
		t.Fatalf("expected retryable")
	}
}
