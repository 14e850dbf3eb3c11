package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func RequireJSON() gin.HandlerFunc {
	return RequireContentType("application/json")
}

// RequireContentType rejects bodies on POST/PUT/PATCH whose media type is not
// one of allowed. Parameters such as "; charset=utf-8" are ignored.
func RequireContentType(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := strings.ToLower(c.ContentType())

			for _, a := range allowed {
				if ct == a {
					c.Next()
					return
				}
			}

			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": gin.H{
					"code":    "unsupported_media_type",
					"message": "Content-Type must be one of " + strings.Join(allowed, ", "),
				},
			})
			return
		}
		c.Next()
	}
}
