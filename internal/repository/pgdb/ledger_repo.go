package pgdb

import (
	"context"

	"github.com/DRSN-tech/style-recommender/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// LedgerRepo — журнал изображений, подтверждённых векторным хранилищем.
type LedgerRepo struct {
	pool       *pgxpool.Pool
	conv       converter.IngestedImageConverter
	collection string
}

func NewLedgerRepo(pool *pgxpool.Pool, conv converter.IngestedImageConverter, collection string) *LedgerRepo {
	return &LedgerRepo{
		pool:       pool,
		conv:       conv,
		collection: collection,
	}
}

// RecordChunk записывает подтверждённый чанк. Работает только внутри транзакции.
func (l *LedgerRepo) RecordChunk(ctx context.Context, req *usecase.RecordChunkReq) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	models := l.conv.ToArrModel(req)
	ids := make([]string, 0, len(models))
	paths := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
		paths = append(paths, m.ImagePath)
	}

	query := `
		INSERT INTO ingested_images (id, collection, image_path, dataset)
		SELECT id, $2::text, image_path, $4::text
		FROM unnest($1::uuid[], $3::text[]) AS t(id, image_path)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, ids, req.Collection, paths, req.Dataset); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// FindIngested возвращает последний id точки для каждого уже загруженного пути коллекции.
func (l *LedgerRepo) FindIngested(ctx context.Context, paths []string) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (image_path) image_path, id::text
		FROM ingested_images
		WHERE collection = $1 AND image_path = ANY($2)
		ORDER BY image_path, created_at DESC
	`

	rows, err := l.pool.Query(ctx, query, l.collection, paths)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	found := make(map[string]string, len(paths))
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		found[path] = id
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return found, nil
}
