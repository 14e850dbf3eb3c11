package middlewares

import (
	"github.com/gin-gonic/gin"
)

// API responses never render as documents.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"X-XSS-Protection":        "0",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

// Item images are embedded cross-origin by the storefront.
var imageHeaders = map[string]string{
	"X-Content-Type-Options":       "nosniff",
	"Referrer-Policy":              "no-referrer",
	"Content-Security-Policy":      "default-src 'none'; sandbox",
	"Cross-Origin-Resource-Policy": "cross-origin",
}

func SecurityHeaders() gin.HandlerFunc {
	return setHeaders(apiHeaders)
}

// ImageSecurityHeaders replaces the API set on routes that serve uploads.
func ImageSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k := range apiHeaders {
			c.Writer.Header().Del(k)
		}
		setHeaders(imageHeaders)(c)
	}
}

func setHeaders(h map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range h {
			c.Header(k, v)
		}
		c.Next()
	}
}
