package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/storage"
	"github.com/gin-gonic/gin"
)

type ImagesHandler struct {
	images storage.ImageStore
	log    *slog.Logger
}

func NewImagesHandler(images storage.ImageStore, log *slog.Logger) *ImagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ImagesHandler{images: images, log: log}
}

// GetImage streams a stored upload. Keys are generated, so the content
// behind a key never changes.
func (h *ImagesHandler) GetImage(ctx *gin.Context) {
	key := ctx.Param("key")

	if !storage.ValidKey(key) {
		RespondNotFound(ctx, "Image not found")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	rc, err := h.images.Open(cctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			RespondNotFound(ctx, "Image not found")
			return
		}

		h.log.ErrorContext(cctx, "image_open_failed", "err", err, "key", key)
		RespondInternal(ctx, "Could not read image")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}
