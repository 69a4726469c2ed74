// Package metrics содержит Prometheus-метрики конвейера загрузки, каталога и рекомендаций.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "style_recommender"

var (
	// IngestedPointsTotal — точки, подтверждённые хранилищем, по коллекциям.
	IngestedPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_points_total",
			Help:      "Points acknowledged by the vector store",
		},
		[]string{"collection"},
	)

	// IngestChunkFailuresTotal — прерванные чанки по стадии (embed, upload).
	IngestChunkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunk_failures_total",
			Help:      "Ingestion chunks aborted, by failing stage",
		},
		[]string{"collection", "stage"},
	)

	// UploadRetriesTotal — повторные попытки загрузки батчей точек.
	UploadRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_retries_total",
			Help:      "Upload batch retries against the vector store",
		},
		[]string{"collection"},
	)

	EmbedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Latency of one embedding call",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	// CatalogRefreshTotal — обновления снимка каталога по исходу (fresh, degraded).
	CatalogRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Catalog snapshot refreshes by outcome",
		},
		[]string{"collection", "outcome"},
	)

	CatalogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_points",
			Help:      "Points in the last catalog snapshot",
		},
		[]string{"collection"},
	)

	// QueryDuration — задержка запросов recommend и search по исходу.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of recommend and search queries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)
)

// ObserveQuery записывает задержку запроса kind (recommend, search) с учётом ошибки.
func ObserveQuery(kind string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	QueryDuration.WithLabelValues(kind, status).Observe(time.Since(started).Seconds())
}
