package middleware

import (
	"errors"
	"net/http"
	"strings"

	"cv-rag-platform/internal/auth"
	"cv-rag-platform/utils"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *auth.TokenManager
}

// NewAuthMiddleware returns a middleware set that lets everything through
// when tokens is nil, i.e. when no JWT secret is configured.
func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.tokens == nil {
			c.Next()
			return
		}

		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := a.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, auth.ErrRevoked) {
				code = "token_revoked"
			}
			utils.RespondWithError(c, http.StatusUnauthorized, code, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// RequireScope must run after RequireAuth. Tokens without a scope claim are
// treated as full-access service tokens.
func (a *AuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.tokens == nil {
			c.Next()
			return
		}
		claims := GetClaims(c)
		if claims == nil {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}
		if claims.Scope != "" && !hasScope(claims.Scope, scope) {
			utils.RespondWithForbidden(c, "Token does not grant "+scope)
			c.Abort()
			return
		}
		c.Next()
	}
}

func hasScope(granted, want string) bool {
	for _, s := range strings.Fields(granted) {
		if s == want {
			return true
		}
	}
	return false
}

func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get("claims"); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func GetSubject(c *gin.Context) string {
	return c.GetString("subject")
}
