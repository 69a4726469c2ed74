package closer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/style-recommender/pkg/closer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloser_LIFOOrder(t *testing.T) {
	c := closer.NewCloser(0)

	var order []string
	c.AddFunc("qdrant", func() { order = append(order, "qdrant") })
	c.AddFunc("redis", func() { order = append(order, "redis") })
	c.AddFunc("http", func() { order = append(order, "http") })

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"http", "redis", "qdrant"}, order)
}

func TestCloser_CollectsErrorsAndRunsOnce(t *testing.T) {
	c := closer.NewCloser(0)

	calls := 0
	c.Add("kafka", func(context.Context) error {
		calls++
		return errors.New("broker gone")
	})

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: broker gone")

	assert.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestCloser_ForcedAfterTimeout(t *testing.T) {
	c := closer.NewCloser(50 * time.Millisecond)

	c.Add("slow", func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown interrupted")
}
