package images

import (
	"context"
	"os"
	"strings"

	"github.com/DRSN-tech/style-recommender/internal/infrastructure"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"golang.org/x/sync/errgroup"
)

const objectScheme = "s3://"

// ObjectReader читает объекты из объектного хранилища.
type ObjectReader interface {
	Read(ctx context.Context, bucket string, key string) ([]byte, error)
}

// Image — прочитанное изображение.
type Image struct {
	Path     string
	Data     []byte
	MimeType string
}

// Loader читает изображения с локального диска или из MinIO (пути вида s3://bucket/key).
type Loader struct {
	objects       ObjectReader
	maxConcurrent int
}

// NewLoader создаёт загрузчик. objects может быть nil, тогда пути s3:// не поддерживаются.
func NewLoader(objects ObjectReader, maxConcurrent int) *Loader {
	return &Loader{
		objects:       objects,
		maxConcurrent: max(maxConcurrent, 1),
	}
}

// Load читает одно изображение.
func (l *Loader) Load(ctx context.Context, path string) (*Image, error) {
	var (
		data []byte
		err  error
	)

	if strings.HasPrefix(path, objectScheme) {
		bucket, key, ok := ParseObjectPath(path)
		if !ok || l.objects == nil {
			return nil, e.Wrap(path, e.ErrUnsupportedImageSource)
		}
		data, err = l.objects.Read(ctx, bucket, key)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Image{
		Path:     path,
		Data:     data,
		MimeType: infrastructure.GetMIMEFromPath(path),
	}, nil
}

// LoadAll читает изображения параллельно, сохраняя порядок путей. Первая ошибка отменяет остальные чтения.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*Image, error) {
	res := make([]*Image, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrent)
	for i, path := range paths {
		g.Go(func() error {
			img, err := l.Load(gctx, path)
			if err != nil {
				return err
			}
			res[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

// ParseObjectPath разбирает путь вида s3://bucket/key.
func ParseObjectPath(path string) (bucket string, key string, ok bool) {
	rest, found := strings.CutPrefix(path, objectScheme)
	if !found {
		return "", "", false
	}

	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
