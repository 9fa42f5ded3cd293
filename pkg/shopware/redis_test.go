package shopware

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := NewRedisTokenStore(client)
	shopID := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = s.Delete(ctx, shopID) })

	_, ok, err := s.Get(ctx, shopID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, shopID, "tok", time.Minute))
	tok, ok, err := s.Get(ctx, shopID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	require.NoError(t, s.Delete(ctx, shopID))
	_, ok, err = s.Get(ctx, shopID)
	require.NoError(t, err)
	assert.False(t, ok)
}
