package observability

import (
	"context"
	"testing"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc , broken, =x, team=lectern")
	if len(got) != 2 || got["api-key"] != "abc" || got["team"] != "lectern" {
		t.Fatalf("unexpected headers %v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestInitOTelDisabled(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.Nop(), OtelConfig{})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("disabled shutdown: %v", err)
	}
}
