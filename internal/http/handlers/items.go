package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/secondchance/internal/cache"
	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/domain/item"
	"github.com/geocoder89/secondchance/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	itemsListCacheKey = "items:list"
	// itemsListGenKey names the current list generation; writes delete it.
	itemsListGenKey = "items:list:gen"
	uploadFormField = "file"
)

type ItemStore interface {
	List(ctx context.Context) ([]item.Item, error)
	Create(ctx context.Context, it item.Item) (item.Item, error)
	GetByID(ctx context.Context, id string) (item.Item, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) (item.Item, error)
}

// UploadObserver records upload outcomes: stored, failed or compensated.
type UploadObserver interface {
	ObserveUpload(result string, size int64)
}

type noopUploads struct{}

func (noopUploads) ObserveUpload(string, int64) {}

type ItemsHandler struct {
	items   ItemStore
	images  storage.ImageStore
	cache   cache.Store
	uploads UploadObserver
	log     *slog.Logger
}

type ItemsOption func(*ItemsHandler)

// WithListCache serves GET /items through c; writes invalidate it.
func WithListCache(c cache.Store) ItemsOption {
	return func(h *ItemsHandler) {
		if c != nil {
			h.cache = c
		}
	}
}

func WithUploadObserver(o UploadObserver) ItemsOption {
	return func(h *ItemsHandler) {
		if o != nil {
			h.uploads = o
		}
	}
}

func NewItemsHandler(items ItemStore, images storage.ImageStore, log *slog.Logger, opts ...ItemsOption) *ItemsHandler {
	if log == nil {
		log = slog.Default()
	}

	h := &ItemsHandler{
		items:   items,
		images:  images,
		uploads: noopUploads{},
		log:     log,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *ItemsHandler) ListItems(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	key, fresh := h.listKey(cctx)
	if key != "" && !fresh {
		b, ok, err := h.cache.Get(cctx, key)
		if err != nil {
			h.log.WarnContext(cctx, "items_cache_get_failed", "err", err)
		}
		if ok {
			respondBytesWithETag(ctx, http.StatusOK, b)
			return
		}
	}

	list, err := h.items.List(cctx)
	if err != nil {
		h.log.ErrorContext(cctx, "items_list_failed", "err", err)
		RespondInternal(ctx, "Could not list items")
		return
	}

	b, err := json.Marshal(list)
	if err != nil {
		h.log.ErrorContext(cctx, "items_list_encode_failed", "err", err)
		RespondInternal(ctx, "Could not list items")
		return
	}

	if key != "" {
		if err := h.cache.Set(cctx, key, b); err != nil {
			h.log.WarnContext(cctx, "items_cache_set_failed", "err", err)
		}
	}

	respondBytesWithETag(ctx, http.StatusOK, b)
}

// CreateItem accepts either a multipart form, optionally carrying one image
// in the "file" field, or a JSON object.
func (h *ItemsHandler) CreateItem(ctx *gin.Context) {
	var (
		fields map[string]any
		file   *multipart.FileHeader
		ok     bool
	)

	if ctx.ContentType() == gin.MIMEMultipartPOSTForm {
		fields, file, ok = h.bindForm(ctx)
	} else {
		fields, ok = BindObject(ctx)
	}
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	it, err := item.New(fields)
	if err != nil {
		RespondBadRequest(ctx, "Invalid item id", gin.H{"field": item.FieldID, "reason": err.Error()})
		return
	}

	var stored *storage.Object
	if file != nil {
		obj, err := h.saveImage(cctx, file)
		if err != nil {
			h.uploads.ObserveUpload("failed", 0)
			h.log.ErrorContext(cctx, "image_save_failed", "err", err, "item_id", it.ID())
			RespondInternal(ctx, "Could not store image")
			return
		}

		stored = &obj
		it = it.WithImage(storage.DisplayName(file.Filename), obj.Key)
	}

	created, err := h.items.Create(cctx, it)
	if err != nil {
		h.log.ErrorContext(cctx, "item_create_failed", "err", err, "item_id", it.ID())

		if stored != nil {
			// the document never landed, so the file has no owner
			if derr := h.images.Delete(cctx, stored.Key); derr != nil {
				h.log.ErrorContext(cctx, "image_compensation_failed", "err", derr, "key", stored.Key)
			}
			h.uploads.ObserveUpload("compensated", stored.Size)
		}

		RespondInternal(ctx, "Could not create item")
		return
	}

	if stored != nil {
		h.uploads.ObserveUpload("stored", stored.Size)
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusCreated, created)
}

func (h *ItemsHandler) GetItem(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	it, err := h.items.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			RespondNotFound(ctx, "Item not found")
			return
		}

		h.log.ErrorContext(cctx, "item_get_failed", "err", err, "item_id", id)
		RespondInternal(ctx, "Could not fetch item")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, it)
}

func (h *ItemsHandler) UpdateItem(ctx *gin.Context) {
	id := ctx.Param("id")

	raw, ok := BindObject(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.items.Update(cctx, id, item.UpdateFields(raw)); err != nil {
		if errors.Is(err, item.ErrNotFound) {
			RespondNotFound(ctx, "Item not found")
			return
		}

		h.log.ErrorContext(cctx, "item_update_failed", "err", err, "item_id", id)
		RespondInternal(ctx, "Could not update item")
		return
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusOK, gin.H{
		"id":      id,
		"message": "Item has been updated successfully",
	})
}

func (h *ItemsHandler) DeleteItem(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	deleted, err := h.items.Delete(cctx, id)
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			RespondNotFound(ctx, "Item not found")
			return
		}

		h.log.ErrorContext(cctx, "item_delete_failed", "err", err, "item_id", id)
		RespondInternal(ctx, "Could not delete item")
		return
	}

	if key := deleted.ImageKey(); key != "" && h.images != nil {
		if err := h.images.Delete(cctx, key); err != nil {
			h.log.WarnContext(cctx, "image_delete_failed", "err", err, "key", key, "item_id", id)
		}
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusOK, gin.H{
		"id":      id,
		"message": "Item has been deleted successfully",
	})
}

// bindForm flattens the form values (one value stays a string, repeated
// keys become a list) and returns the single allowed upload, if any.
func (h *ItemsHandler) bindForm(ctx *gin.Context) (map[string]any, *multipart.FileHeader, bool) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			RespondTooLarge(ctx, "Request body too large")
			return nil, nil, false
		}

		RespondBadRequest(ctx, "Invalid multipart form", gin.H{"reason": err.Error()})
		return nil, nil, false
	}

	fields := make(map[string]any, len(form.Value))
	for k, vs := range form.Value {
		if len(vs) == 1 {
			fields[k] = vs[0]
			continue
		}
		fields[k] = vs
	}

	var file *multipart.FileHeader
	count := 0
	for name, fhs := range form.File {
		if name != uploadFormField {
			RespondBadRequest(ctx, "Unexpected file field", gin.H{"field": name})
			return nil, nil, false
		}
		count += len(fhs)
		if len(fhs) > 0 {
			file = fhs[0]
		}
	}

	if count > 1 {
		RespondBadRequest(ctx, "At most one file may be uploaded", gin.H{"field": uploadFormField})
		return nil, nil, false
	}

	if h.images == nil && file != nil {
		RespondBadRequest(ctx, "Image uploads are disabled", gin.H{"field": uploadFormField})
		return nil, nil, false
	}

	return fields, file, true
}

func (h *ItemsHandler) saveImage(ctx context.Context, fh *multipart.FileHeader) (storage.Object, error) {
	f, err := fh.Open()
	if err != nil {
		return storage.Object{}, err
	}
	defer f.Close()

	return h.images.Save(ctx, fh.Filename, f, fh.Size)
}

// listKey returns the list entry key for the current generation, starting a
// generation when none is set (fresh). Writes drop the generation, so a fill
// that raced with a write lands under a key nobody reads. An empty key means
// the cache is unavailable.
func (h *ItemsHandler) listKey(ctx context.Context) (key string, fresh bool) {
	if h.cache == nil {
		return "", false
	}

	gen, ok, err := h.cache.Get(ctx, itemsListGenKey)
	if err != nil {
		h.log.WarnContext(ctx, "items_cache_get_failed", "err", err)
		return "", false
	}

	if !ok {
		gen = []byte(uuid.NewString())
		if err := h.cache.Set(ctx, itemsListGenKey, gen); err != nil {
			h.log.WarnContext(ctx, "items_cache_set_failed", "err", err)
			return "", false
		}
		fresh = true
	}

	return itemsListCacheKey + ":" + string(gen), fresh
}

func (h *ItemsHandler) invalidateList(ctx context.Context) {
	if h.cache == nil {
		return
	}

	if gen, ok, _ := h.cache.Get(ctx, itemsListGenKey); ok {
		_ = h.cache.Delete(ctx, itemsListCacheKey+":"+string(gen))
	}

	if err := h.cache.Delete(ctx, itemsListGenKey); err != nil {
		h.log.WarnContext(ctx, "items_cache_invalidate_failed", "err", err)
	}
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}

	// older multipart paths flatten the error to text
	return strings.Contains(err.Error(), "request body too large")
}
