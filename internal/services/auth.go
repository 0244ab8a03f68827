package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

const minPasswordLen = 8

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Role        string
	TeacherCode string
}

type AuthConfig struct {
	JWTSecret string
	AccessTTL time.Duration

	// TeacherCode gates teacher sign-up when set.
	TeacherCode string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, error)
	Login(ctx context.Context, username, password string) (string, *types.User, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	Me(ctx context.Context) (*types.User, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	cfg      AuthConfig
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(log *logger.Logger, userRepo repos.UserRepo, cfg AuthConfig) (AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("missing JWT secret")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	return &authService{
		log:      log.With("service", "AuthService"),
		userRepo: userRepo,
		cfg:      cfg,
	}, nil
}

func (as *authService) GetAccessTTL() time.Duration { return as.cfg.AccessTTL }

func (as *authService) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = types.RoleStudent
	}
	switch {
	case username == "":
		return nil, apierr.BadRequest("missing_username", "username is required")
	case len(in.Password) < minPasswordLen:
		return nil, apierr.BadRequest("weak_password", fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	case !types.ValidRole(role):
		return nil, apierr.BadRequest("invalid_role", "role must be teacher or student")
	}
	if role == types.RoleTeacher && as.cfg.TeacherCode != "" && in.TeacherCode != as.cfg.TeacherCode {
		return nil, apierr.Forbidden("invalid_teacher_code", "teacher code does not match")
	}

	dbc := dbctx.Of(ctx)
	exists, err := as.userRepo.UsernameExists(dbc, username)
	if err != nil {
		return nil, repos.MapError("check username", err)
	}
	if exists {
		return nil, apierr.Conflict("username_taken", "username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &types.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := as.userRepo.Create(dbc, user); err != nil {
		mapped := repos.MapError("create user", err)
		if errors.Is(mapped, apierr.ErrConflict) {
			return nil, apierr.Conflict("username_taken", "username already registered")
		}
		return nil, mapped
	}
	as.log.Info("User registered", "user_id", user.ID.String(), "role", role)
	return user, nil
}

func (as *authService) Login(ctx context.Context, username, password string) (string, *types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, apierr.BadRequest("missing_credentials", "username and password are required")
	}
	user, err := as.userRepo.GetByUsername(dbctx.Of(ctx), username)
	if err != nil {
		return "", nil, repos.MapError("load user", err)
	}
	if user == nil {
		return "", nil, apierr.Unauthorized("invalid_credentials", "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apierr.Unauthorized("invalid_credentials", "invalid username or password")
	}
	tok, err := as.generateAccessToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	return tok, user, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.cfg.JWTSecret))
}

// SetContextFromToken validates tokenString and returns ctx carrying the
// caller's request data.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, apierr.Unauthorized("token_expired", "access token expired")
		}
		return ctx, apierr.Unauthorized("invalid_token", "invalid access token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "token subject is not a user id")
	}
	if !types.ValidRole(claims.Role) {
		return ctx, apierr.Unauthorized("invalid_token", "token role is invalid")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}), nil
}

func (as *authService) Me(ctx context.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthenticated", "no authenticated user")
	}
	user, err := as.userRepo.GetByID(dbctx.Of(ctx), rd.UserID)
	if err != nil {
		return nil, repos.MapError("load user", err)
	}
	if user == nil {
		return nil, apierr.NotFound("user_not_found", "user")
	}
	return user, nil
}
