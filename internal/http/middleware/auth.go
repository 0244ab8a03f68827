package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/http/response"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// TokenAuthenticator resolves a bearer token into a context carrying the
// caller's request data.
type TokenAuthenticator interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type AuthMiddleware struct {
	log  *logger.Logger
	auth TokenAuthenticator
}

func NewAuthMiddleware(log *logger.Logger, auth TokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), auth: auth}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			c.Abort()
			return
		}
		ctx, err := am.auth.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			_, code := apierr.Describe(err)
			response.RespondError(c, http.StatusUnauthorized, code, err)
			c.Abort()
			return
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusForbidden, "forbidden", apierr.ErrForbidden)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd != nil {
			for _, r := range roles {
				if rd.Role == r {
					c.Next()
					return
				}
			}
		}
		am.log.Debug("Role check failed", "path", c.FullPath(), "want", strings.Join(roles, ","))
		response.RespondError(c, http.StatusForbidden, "forbidden", errRole)
		c.Abort()
	}
}

var (
	errMissingToken = apierr.Unauthorized("unauthorized", "missing or invalid token")
	errRole         = apierr.Forbidden("forbidden", "insufficient role")
)

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return c.Query("token")
}
