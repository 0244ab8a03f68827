package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
)

func newAuth(t *testing.T, cfg AuthConfig) (AuthService, repos.UserRepo) {
	t.Helper()
	db := testutil.DB(t)
	users := repos.NewUserRepo(db, testutil.Logger(t))
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	svc, err := NewAuthService(testutil.Logger(t), users, cfg)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, users
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	db := testutil.DB(t)
	if _, err := NewAuthService(testutil.Logger(t), repos.NewUserRepo(db, testutil.Logger(t)), AuthConfig{}); err == nil {
		t.Fatalf("expected error without a secret")
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newAuth(t, AuthConfig{TeacherCode: "lecture-code"})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: " amy ", Email: "Amy@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "amy" || u.Role != types.RoleStudent || u.Email != "amy@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct-horse" {
		t.Fatalf("password must be hashed")
	}

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate", RegisterInput{Username: "amy", Password: "correct-horse"}, apierr.ErrConflict},
		{"missing username", RegisterInput{Password: "correct-horse"}, apierr.ErrInvalidArgument},
		{"weak password", RegisterInput{Username: "bob", Password: "short"}, apierr.ErrInvalidArgument},
		{"bad role", RegisterInput{Username: "bob", Password: "correct-horse", Role: "admin"}, apierr.ErrInvalidArgument},
		{"teacher without code", RegisterInput{Username: "bob", Password: "correct-horse", Role: "teacher"}, apierr.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	teacher, err := svc.Register(ctx, RegisterInput{Username: "prof", Password: "correct-horse", Role: "Teacher", TeacherCode: "lecture-code"})
	if err != nil {
		t.Fatalf("teacher Register: %v", err)
	}
	if !teacher.IsTeacher() {
		t.Fatalf("expected teacher role, got %q", teacher.Role)
	}
}

func TestLoginAndToken(t *testing.T) {
	svc, _ := newAuth(t, AuthConfig{})
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Username: "amy", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "amy", "wrong-password"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "correct-horse"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}

	tok, got, err := svc.Login(ctx, "amy", "correct-horse")
	if err != nil || tok == "" || got.ID != u.ID {
		t.Fatalf("Login = %q, %+v, %v", tok, got, err)
	}
	authed, err := svc.SetContextFromToken(ctx, tok)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(authed)
	if rd == nil || rd.UserID != u.ID || rd.Role != types.RoleStudent || rd.TokenString != tok {
		t.Fatalf("unexpected request data %+v", rd)
	}
	me, err := svc.Me(authed)
	if err != nil || me.Username != "amy" {
		t.Fatalf("Me = %+v, %v", me, err)
	}
	if _, err := svc.Me(ctx); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("Me without a user should be unauthorized, got %v", err)
	}
}

func TestSetContextFromTokenRejects(t *testing.T) {
	ctx := context.Background()
	expiring, _ := newAuth(t, AuthConfig{AccessTTL: time.Nanosecond})
	if _, err := expiring.Register(ctx, RegisterInput{Username: "amy", Password: "correct-horse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok, _, err := expiring.Login(ctx, "amy", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	_, err = expiring.SetContextFromToken(ctx, tok)
	status, code := apierr.Describe(err)
	if status != 401 || code != "token_expired" {
		t.Fatalf("expected token_expired, got %d %s (%v)", status, code, err)
	}

	other, _ := newAuth(t, AuthConfig{JWTSecret: "other-secret"})
	if _, err := other.SetContextFromToken(ctx, tok); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("token signed with another secret must be rejected, got %v", err)
	}
	if _, err := other.SetContextFromToken(ctx, "not-a-jwt"); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("garbage token must be rejected, got %v", err)
	}
}
