package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/secondchance/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, bearerPrefix)
		token = strings.TrimSpace(token)

		if !found || token == "" {
			abortUnauthorized(c, "unauthorized", "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.Verify(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			abortUnauthorized(c, "token_expired", "Access token has expired")
			return
		case err != nil, claims == nil || claims.User.ID == "":
			abortUnauthorized(c, "unauthorized", "Invalid access token")
			return
		}

		c.Set(CtxUserID, claims.User.ID)

		c.Next()
	}
}

// handlers.RespondUnauthorized writes the same envelope; middlewares cannot
// import handlers.
func abortUnauthorized(c *gin.Context, code, message string) {
	body := gin.H{"code": code, "message": message}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": body})
}

// UserIDFromContext returns the identity RequireAuth verified for this request.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
