package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
}

func (f *fakeObjects) Read(_ context.Context, bucket string, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestParseObjectPath(t *testing.T) {
	tests := []struct {
		path   string
		bucket string
		key    string
		ok     bool
	}{
		{path: "s3://images/shirts/1.jpg", bucket: "images", key: "shirts/1.jpg", ok: true},
		{path: "s3://images", ok: false},
		{path: "s3:///1.jpg", ok: false},
		{path: "/data/1.jpg", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			bucket, key, ok := ParseObjectPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestLoader_LoadAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 0, 6)
	for i := range 5 {
		p := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("image-%d", i)), 0o600))
		paths = append(paths, p)
	}
	paths = append(paths, "s3://dataset/shoes/7.jpg")

	l := NewLoader(&fakeObjects{objects: map[string][]byte{"dataset/shoes/7.jpg": []byte("remote")}}, 2)

	imgs, err := l.LoadAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, imgs, 6)
	for i := range 5 {
		assert.Equal(t, paths[i], imgs[i].Path)
		assert.Equal(t, fmt.Sprintf("image-%d", i), string(imgs[i].Data))
		assert.Equal(t, "image/png", imgs[i].MimeType)
	}
	assert.Equal(t, "remote", string(imgs[5].Data))
	assert.Equal(t, "image/jpeg", imgs[5].MimeType)
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(nil, 4)

	_, err := l.Load(context.Background(), "s3://dataset/1.jpg")
	assert.ErrorIs(t, err, e.ErrUnsupportedImageSource)

	_, err = l.LoadAll(context.Background(), []string{filepath.Join(t.TempDir(), "missing.jpg")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
