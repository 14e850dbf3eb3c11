package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("image not found")

// Object describes a stored upload.
type Object struct {
	Key  string
	Size int64
}

// ImageStore persists item images under generated keys. The client's file
// name is never used as a storage path.
type ImageStore interface {
	Save(ctx context.Context, originalName string, r io.Reader, size int64) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var (
	keyPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,10})?$`)
	extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// NewKey returns a random key that keeps the original file's extension when
// it is a plain alphanumeric one.
func NewKey(originalName string) string {
	ext := strings.ToLower(path.Ext(DisplayName(originalName)))

	if !extPattern.MatchString(ext) {
		ext = ""
	}

	return uuid.NewString() + ext
}

func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// DisplayName reduces a client supplied file name to its base name, for use
// as metadata only.
func DisplayName(originalName string) string {
	name := strings.ReplaceAll(originalName, `\`, "/")
	name = strings.TrimSpace(path.Base(name))

	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}

	return name
}
