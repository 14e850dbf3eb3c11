package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
	}{
		{name: "lamp.jpg", wantExt: ".jpg"},
		{name: "Lamp.PNG", wantExt: ".png"},
		{name: "../../etc/passwd", wantExt: ""},
		{name: `C:\Users\me\chair.webp`, wantExt: ".webp"},
		{name: "weird.ph p", wantExt: ""},
		{name: "", wantExt: ""},
	}

	for _, tt := range tests {
		key := NewKey(tt.name)
		assert.True(t, ValidKey(key), "key %q for %q should be valid", key, tt.name)
		assert.Equal(t, tt.wantExt, filepath.Ext(key), tt.name)
		assert.NotContains(t, key, "/")
	}

	assert.NotEqual(t, NewKey("a.jpg"), NewKey("a.jpg"), "keys must not collide for equal names")
}

func TestValidKey_RejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "../x", "lamp.jpg", "/etc/passwd", "00000000-0000-0000-0000-000000000000/../x"} {
		assert.False(t, ValidKey(key), key)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "passwd", DisplayName("../../etc/passwd"))
	assert.Equal(t, "chair.webp", DisplayName(`C:\Users\me\chair.webp`))
	assert.Equal(t, "lamp.jpg", DisplayName("lamp.jpg"))
	assert.Equal(t, "upload", DisplayName(""))
	assert.Equal(t, "upload", DisplayName(".."))
}

func TestDisk_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	d, err := NewDisk(filepath.Join(dir, "images"))
	require.NoError(t, err)

	obj, err := d.Save(ctx, "../lamp.jpg", strings.NewReader("jpeg-bytes"), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, obj.Size)
	assert.True(t, ValidKey(obj.Key))

	// stored inside the directory under the generated key only
	_, err = os.Stat(filepath.Join(dir, "images", obj.Key))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "lamp.jpg"))
	assert.True(t, os.IsNotExist(err))

	rc, err := d.Open(ctx, obj.Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	require.NoError(t, d.Delete(ctx, obj.Key))
	_, err = d.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	// second delete is a no-op
	assert.NoError(t, d.Delete(ctx, obj.Key))
}

func TestDisk_OpenInvalidKey(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = d.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestDisk_SaveFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir)
	require.NoError(t, err)

	_, err = d.Save(context.Background(), "x.png", failingReader{}, 0)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.lastPut = in
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &S3{client: fake, bucket: "items"}

	obj, err := s.Save(ctx, "sofa.png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	require.NotNil(t, fake.lastPut)
	assert.Equal(t, "items", *fake.lastPut.Bucket)
	assert.EqualValues(t, 3, *fake.lastPut.ContentLength)
	require.NotNil(t, fake.lastPut.ContentType)
	assert.Equal(t, "image/png", *fake.lastPut.ContentType)

	rc, err := s.Open(ctx, obj.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png", string(body))

	require.NoError(t, s.Delete(ctx, obj.Key))
	_, err = s.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3_SaveError(t *testing.T) {
	s := &S3{client: &fakeS3{objects: map[string][]byte{}, putErr: errors.New("denied")}, bucket: "items"}

	_, err := s.Save(context.Background(), "a.jpg", strings.NewReader("x"), 1)
	assert.Error(t, err)
}
