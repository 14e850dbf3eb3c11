package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type Disk struct {
	dir string
}

// NewDisk makes sure dir exists and stores images directly inside it.
func NewDisk(dir string) (*Disk, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return &Disk{dir: abs}, nil
}

func (d *Disk) Save(ctx context.Context, originalName string, r io.Reader, _ int64) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	key := NewKey(originalName)
	full := filepath.Join(d.dir, key)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Object{}, fmt.Errorf("create %s: %w", key, err)
	}

	n, err := io.Copy(f, r)
	closeErr := f.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(full)
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}

	return Object{Key: key, Size: n}, nil
}

func (d *Disk) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !ValidKey(key) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(d.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Delete removes the image; deleting a missing key is not an error.
func (d *Disk) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return ErrNotFound
	}

	err := os.Remove(filepath.Join(d.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}
