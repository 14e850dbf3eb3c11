package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const jsonContentType = "application/json; charset=utf-8"

// RespondJSONWithETag answers 304 when the client already holds this exact
// representation.
func RespondJSONWithETag(ctx *gin.Context, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	respondBytesWithETag(ctx, status, body)
}

// respondBytesWithETag serves an already encoded JSON body, e.g. a cached list.
func respondBytesWithETag(ctx *gin.Context, status int, body []byte) {
	tag := etagOf(body)
	ctx.Header("ETag", tag)

	if clientHasETag(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, jsonContentType, body)
}

func etagOf(b []byte) string {
	sum := sha256.Sum256(b)

	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// clientHasETag matches If-None-Match using weak comparison.
func clientHasETag(ifNoneMatch, tag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || tag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	want := opaqueTag(tag)
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if opaqueTag(candidate) == want {
			return true
		}
	}

	return false
}

func opaqueTag(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "W/"))
}
