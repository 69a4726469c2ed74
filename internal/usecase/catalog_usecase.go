package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/domain"
	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/DRSN-tech/style-recommender/pkg/metrics"
)

// refreshTimeout ограничивает пересчёт снимка, который не зависит от отмены контекста вызывающего.
var refreshTimeout = 30 * time.Second

// CatalogUseCase держит последний снимок коллекции. Ошибки чтения хранилища не пробрасываются:
// снимок становится пустым с Status=degraded, причина пишется в лог.
type CatalogUseCase struct {
	points   PointRepository
	locker   CollectionLocker
	pageSize uint32
	logger   logger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	lastCount CountResult
	snapshot  domain.CatalogSnapshot
}

func NewCatalogUC(
	points PointRepository,
	locker CollectionLocker,
	pageSize uint32,
	logger logger.Logger,
) *CatalogUseCase {
	if pageSize == 0 {
		pageSize = 256
	}

	return &CatalogUseCase{
		points:    points,
		locker:    locker,
		pageSize:  pageSize,
		logger:    logger,
		now:       time.Now,
		lastCount: CountResult{Status: domain.SnapshotFresh},
		snapshot:  domain.EmptySnapshot(),
	}
}

// Snapshot возвращает последний снимок. Points не копируется: снимок заменяется целиком и не мутирует.
func (c *CatalogUseCase) Snapshot() domain.CatalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshot
}

// Refresh перечитывает count и points под блокировкой коллекции.
func (c *CatalogUseCase) Refresh(ctx context.Context) domain.CatalogSnapshot {
	const op = "CatalogUseCase.Refresh"

	unlock, err := c.locker.Lock(ctx, c.points.Collection())
	if err != nil {
		c.logger.Warnf("catalog refresh skipped, collection %s is busy: %v", c.points.Collection(), e.Wrap(op, err))

		snap := c.Snapshot()
		snap.Status = domain.SnapshotDegraded
		snap.Cause = e.Wrap(op, err)
		return snap
	}
	defer unlock()

	return c.refresh(ctx)
}

// RefreshCount запрашивает точное число точек. При ошибке возвращает 0 со статусом degraded.
func (c *CatalogUseCase) RefreshCount(ctx context.Context) CountResult {
	const op = "CatalogUseCase.RefreshCount"

	n, err := c.points.Count(ctx)
	res := CountResult{Count: n, Status: domain.SnapshotFresh}
	if err != nil {
		res = CountResult{Status: domain.SnapshotDegraded, Cause: e.Wrap(op, err)}
		c.logger.Warnf("failed to count points in %s, treating catalog as empty: %v", c.points.Collection(), res.Cause)
	}

	c.mu.Lock()
	c.lastCount = res
	c.mu.Unlock()

	return res
}

// RefreshPoints обходит коллекцию по курсору scroll до конца. Если последний count равен 0,
// хранилище не запрашивается. Точки без image_path пропускаются.
func (c *CatalogUseCase) RefreshPoints(ctx context.Context) PointsResult {
	const op = "CatalogUseCase.RefreshPoints"

	c.mu.RLock()
	count := c.lastCount
	c.mu.RUnlock()

	if count.Count == 0 {
		return PointsResult{Points: []domain.ImageRecord{}, Status: count.Status, Cause: count.Cause}
	}

	var (
		points  = make([]domain.ImageRecord, 0, min(count.Count, uint64(c.pageSize)*16))
		seen    = make(map[string]struct{}, len(points))
		skipped int
		offset  string
	)

	for {
		page, err := c.points.Scroll(ctx, offset, c.pageSize)
		if err != nil {
			cause := e.Wrap(op, err)
			c.logger.Warnf("failed to scroll %s after %d points, treating catalog as empty: %v", c.points.Collection(), len(points), cause)
			return PointsResult{Points: []domain.ImageRecord{}, Status: domain.SnapshotDegraded, Cause: cause}
		}

		for _, p := range page.Points {
			path, ok := p.Payload.ImagePath()
			if !ok {
				skipped++
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			points = append(points, domain.NewImageRecord(p.ID, path))
		}

		if page.NextOffset == "" || page.NextOffset == offset {
			break
		}
		offset = page.NextOffset
	}

	if skipped > 0 {
		c.logger.Warnf("skipped %d points without %s payload in %s", skipped, domain.PayloadImagePath, c.points.Collection())
	}

	return PointsResult{Points: points, Status: domain.SnapshotFresh}
}

// refresh собирает новый снимок. Вызывающий должен держать блокировку коллекции.
// Отмена ctx не прерывает пересчёт: уже сохранённые точки должны попасть в снимок.
func (c *CatalogUseCase) refresh(ctx context.Context) domain.CatalogSnapshot {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	count := c.RefreshCount(ctx)
	points := c.RefreshPoints(ctx)

	snap := domain.CatalogSnapshot{
		Count:       count.Count,
		Points:      points.Points,
		Status:      domain.SnapshotFresh,
		RefreshedAt: c.now(),
	}

	switch {
	case count.Status == domain.SnapshotDegraded:
		snap.Status, snap.Cause = domain.SnapshotDegraded, count.Cause
	case points.Status == domain.SnapshotDegraded:
		snap.Count, snap.Status, snap.Cause = 0, domain.SnapshotDegraded, points.Cause
	case uint64(len(points.Points)) != count.Count:
		c.logger.Warnf(
			"catalog count mismatch in %s: counted %d, scrolled %d",
			c.points.Collection(), count.Count, len(points.Points),
		)
		snap.Count = uint64(len(points.Points))
	}

	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()

	metrics.CatalogRefreshTotal.WithLabelValues(c.points.Collection(), string(snap.Status)).Inc()
	metrics.CatalogSize.WithLabelValues(c.points.Collection()).Set(float64(snap.Count))

	c.logger.Debugf("catalog %s refreshed: %d points, status %s", c.points.Collection(), snap.Count, snap.Status)

	return snap
}
