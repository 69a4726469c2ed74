package minio

import (
	"context"
	"io"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo читает изображения датасета из MinIO.
type ImageRepo struct {
	mc *minio.Client
}

func NewImageRepo(mc *minio.Client) *ImageRepo {
	return &ImageRepo{
		mc: mc,
	}
}

// Read возвращает содержимое объекта bucket/key целиком.
func (i *ImageRepo) Read(ctx context.Context, bucket string, key string) ([]byte, error) {
	obj, err := i.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}
