package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("QDRANT_COLLECTION_NAME", "fashion")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "styles")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_PARALLELISM", "4")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "fashion", c.Qdrant.QdrantCollectionName)
	assert.Equal(t, "localhost", c.Qdrant.Host)
	assert.Equal(t, 6334, c.Qdrant.Port)
	assert.Equal(t, uint64(512), c.Qdrant.VectorSize)
	assert.Equal(t, 64, c.Ingest.EmbedBatch)
	assert.Equal(t, 32, c.Ingest.UploadBatch)
	assert.Equal(t, 3, c.Ingest.ParallelUploads)
	assert.Equal(t, 3, c.Ingest.MaxRetries)
	assert.Equal(t, "Qdrant/resnet50-onnx", c.Ml.Model)
	assert.Equal(t, EmptyPolicyCatalog, c.Recommend.EmptyPolicy)
	assert.Equal(t, "local", c.Lock.Backend)
	assert.Equal(t, 2*time.Minute, c.Lock.TTL)
	assert.False(t, c.Minio.Enabled)
	assert.False(t, c.Kafka.Enabled)
	assert.Contains(t, c.Dataset.Includes, "**/*.jpg")
}

func TestLoad_MissingCollection(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QDRANT_COLLECTION_NAME", "")

	_, err := Load(logger.NewNopLogger())
	assert.ErrorIs(t, err, e.ErrMissingEnvVariable)
}

func TestLoad_QdrantURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QDRANT_URL", "https://cluster.cloud.qdrant.io:6443")
	t.Setenv("QDRANT_API_KEY", "key")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, "cluster.cloud.qdrant.io", c.Qdrant.Host)
	assert.Equal(t, 6443, c.Qdrant.Port)
	assert.True(t, c.Qdrant.UseTLS)
	assert.Equal(t, "key", c.Qdrant.ApiKey)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"EMBED_BATCH":            "0",
		"VECTOR_SIZE":            "abc",
		"RECOMMEND_EMPTY_POLICY": "popular",
		"LOCK_BACKEND":           "etcd",
		"QDRANT_URL":             "ftp://qdrant:6334",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, value)

			_, err := Load(logger.NewNopLogger())
			assert.Error(t, err)
		})
	}
}

func TestParallelUploads(t *testing.T) {
	assert.Equal(t, 1, ParallelUploads(0))
	assert.Equal(t, 1, ParallelUploads(1))
	assert.Equal(t, 1, ParallelUploads(2))
	assert.Equal(t, 7, ParallelUploads(8))
}

func TestLoad_OptionalBackends(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.True(t, c.Minio.Enabled)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "images.ingested", c.Kafka.Topic)
}
