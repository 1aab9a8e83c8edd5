package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dino-runner/internal/domain"
)

func TestDecodePage(t *testing.T) {
	entries, err := decodePage([]byte(`[{"_id":"a","player_name":"Rex","score":120,"session_id":"s","rank":1}]`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Rex", entries[0].PlayerName)
	assert.Equal(t, int64(1), entries[0].Rank)

	empty, err := decodePage([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, empty)

	_, err = decodePage([]byte(`{`))
	assert.Error(t, err)
}

func TestFieldPerLimit(t *testing.T) {
	assert.Equal(t, "10", field(10))
	assert.NotEqual(t, field(10), field(100))
}

func TestUnreachableRedisIsAnErrorNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewLeaderboardCacheWithClient(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := cache.Get(context.Background(), 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
	assert.Error(t, cache.Set(context.Background(), 10, nil))
}
