package middleware

import (
	"net/http"

	"github.com/fatflowers/membership/internal/platform/auth"
	"github.com/fatflowers/membership/pkg/logctx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinKeyIdentity holds the verified *auth.Identity.
const GinKeyIdentity = "identity"

// TokenVerifier is implemented by auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// BearerAuthMiddleware rejects requests without a valid bearer token with 401
// and the {error} body of the user-facing billing endpoints.
func BearerAuthMiddleware(v TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		lg := logctx.FromGin(c, base).With("user_id", id.UserID)
		c.Set(GinKeyIdentity, id)
		c.Set(logctx.GinKeyUserID, id.UserID)
		c.Set(logctx.GinKeyLogger, lg)
		ctx := logctx.WithUserID(c.Request.Context(), id.UserID)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, lg))
		c.Next()
	}
}

// IdentityFrom returns the identity set by BearerAuthMiddleware.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(GinKeyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok && id != nil
}

// RequireUserMiddleware answers 403 unless the authenticated user is in userIDs.
func RequireUserMiddleware(userIDs []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[c.GetString(logctx.GinKeyUserID)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
