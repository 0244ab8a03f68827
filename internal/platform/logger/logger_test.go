package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"password", "hunter2",
		"OPENAI_API_KEY", "sk-live",
		"student_id", "3f0c",
		"lecture_id", "abc",
		"dangling",
	})
	if len(out) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("api key not redacted: %v", out[3])
	}
	if s, _ := out[5].(string); !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("student_id not hashed: %v", out[5])
	}
	if out[7] != "abc" {
		t.Fatalf("lecture_id should pass through, got %v", out[7])
	}
	if out[8] != "dangling" {
		t.Fatalf("dangling key lost: %v", out[8])
	}
}

func TestSanitizeNestedAndJWT(t *testing.T) {
	jwtish := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	out := sanitizeKVs([]interface{}{
		"meta", map[string]interface{}{"access_token": "x", "count": 3},
		"header", jwtish,
	})
	meta := out[1].(map[string]interface{})
	if meta["access_token"] != "[REDACTED]" || meta["count"] != 3 {
		t.Fatalf("unexpected nested sanitize: %#v", meta)
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("jwt-looking value not redacted: %v", out[3])
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop().With("service", "test")
	l.Info("hello", "k", "v")
	l.Sync()
}
