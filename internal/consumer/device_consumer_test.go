package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	rediscommon "alfred/common/redis"
	"alfred/internal/models"
	"alfred/internal/observable"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	values *observable.Observable[int]
	conn   *observable.Observable[bool]
}

func newFakeSource() *fakeSource {
	return &fakeSource{values: observable.New[int](), conn: observable.New[bool]()}
}

func (f *fakeSource) DeviceID() string { return "alfred-01" }
func (f *fakeSource) SubscribeToNewValue(fn func(int)) observable.Handle {
	return f.values.Subscribe(fn)
}
func (f *fakeSource) UnsubscribeFromNewValue(h observable.Handle) { f.values.Unsubscribe(h) }
func (f *fakeSource) SubscribeToConnectionStatus(fn func(bool)) observable.Handle {
	return f.conn.Subscribe(fn)
}
func (f *fakeSource) UnsubscribeFromConnectionStatus(h observable.Handle) { f.conn.Unsubscribe(h) }

type fakeSink struct {
	mu    sync.Mutex
	codes []models.ActivityCode
}

func (f *fakeSink) OnDeviceValue(ctx context.Context, code models.ActivityCode) {
	f.mu.Lock()
	f.codes = append(f.codes, code)
	f.mu.Unlock()
}

func setupDeviceConsumer(t *testing.T) (*DeviceConsumer, *fakeSource, *fakeSink, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := newFakeSource()
	sink := &fakeSink{}
	c := NewDeviceConsumer(source, sink, client, "alfred:device:stream", 1000, zap.NewNop())
	return c, source, sink, client
}

func TestDeviceConsumer_ForwardsAndMirrors(t *testing.T) {
	c, source, sink, client := setupDeviceConsumer(t)
	ctx := context.Background()
	c.Start(ctx)

	source.values.Notify(1)
	source.values.Notify(4)
	source.values.Notify(9)

	assert.Equal(t, []models.ActivityCode{1, 4, 9}, sink.codes)

	msgs, err := rediscommon.ReadRange(ctx, client, "alfred:device:stream", "-", "+")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	var rec DeviceValueRecord
	require.NoError(t, json.Unmarshal([]byte(msgs[1].Values["data"].(string)), &rec))
	assert.Equal(t, "alfred-01", rec.DeviceID)
	assert.Equal(t, 4, rec.Value)
	assert.Equal(t, "fall", rec.Kind)

	m := c.GetMetrics()
	assert.Equal(t, int64(3), m.ValuesReceived)
	assert.Equal(t, int64(1), m.FallsDetected)
	assert.Equal(t, int64(1), m.ValuesRejected)
	assert.Zero(t, m.StreamFailures)
}

func TestDeviceConsumer_StopUnsubscribes(t *testing.T) {
	c, source, sink, _ := setupDeviceConsumer(t)
	c.Start(context.Background())
	c.Stop()
	c.Stop()

	source.values.Notify(2)
	assert.Empty(t, sink.codes)
	assert.Equal(t, 0, source.values.Len())
	assert.Equal(t, 0, source.conn.Len())
}

func TestDeviceConsumer_StreamFailureDoesNotBlockSegmenter(t *testing.T) {
	c, source, sink, client := setupDeviceConsumer(t)
	require.NoError(t, client.Close())
	c.Start(context.Background())

	source.values.Notify(3)
	assert.Equal(t, []models.ActivityCode{3}, sink.codes)
	assert.Equal(t, int64(1), c.GetMetrics().StreamFailures)
}
