package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/cache"
	"github.com/maryammo2000/fast-flow-web/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleView() models.SessionView {
	return models.SessionView{
		SessionID:    "sess-1",
		Phase:        "FaceAcquired",
		FaceDetected: true,
		Current: &models.RawReading{
			HeartRate: 80, RespiratoryRate: 15, Temperature: 36.8, SpO2: 97, Systolic: 125, Diastolic: 83,
		},
		Submittable: true,
	}
}

func TestRealtimeCache_PublishGetDelete(t *testing.T) {
	kv := newFakeKVStore()
	c := cache.NewRealtimeCache(kv, "fastflow:session:", 10*time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Publish(ctx, sampleView()))

	raw, err := kv.Get(ctx, "fastflow:session:sess-1:realtime")
	require.NoError(t, err)
	assert.Contains(t, raw, `"heart_rate":80`)

	view, err := c.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, view.Submittable)
	assert.Equal(t, 125, view.Current.Systolic)

	require.NoError(t, c.Delete(ctx, "sess-1"))
	_, err = c.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRealtimeCache_RedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := cache.NewRealtimeCache(cache.NewRedisKVStore(client), "fastflow:session:", 10*time.Second, zap.NewNop())
	ctx := context.Background()

	c.Observer()(ctx, sampleView())
	assert.True(t, mr.Exists("fastflow:session:sess-1:realtime"))
	assert.Equal(t, 10*time.Second, mr.TTL("fastflow:session:sess-1:realtime"))

	mr.FastForward(11 * time.Second)
	_, err := c.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
