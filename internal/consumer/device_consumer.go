package consumer

import (
	"context"
	"sync"
	"time"

	rediscommon "alfred/common/redis"
	"alfred/internal/models"
	"alfred/internal/observable"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DeviceSource 设备值来源（device.Client）
type DeviceSource interface {
	DeviceID() string
	SubscribeToNewValue(fn func(value int)) observable.Handle
	UnsubscribeFromNewValue(h observable.Handle)
	SubscribeToConnectionStatus(fn func(connected bool)) observable.Handle
	UnsubscribeFromConnectionStatus(h observable.Handle)
}

// ValueSink 设备值处理（segmenter.Segmenter）
type ValueSink interface {
	OnDeviceValue(ctx context.Context, code models.ActivityCode)
}

// DeviceValueRecord 写入 Redis Stream 的原始值
type DeviceValueRecord struct {
	DeviceID   string `json:"device_id"`
	Value      int    `json:"value"`
	Kind       string `json:"kind"`
	ReceivedAt int64  `json:"received_at"` // Unix 毫秒
}

// DeviceConsumer 设备值消费者
// 将设备值交给 Segmenter，并镜像到 Redis Stream
type DeviceConsumer struct {
	source      DeviceSource
	sink        ValueSink
	redisClient *redis.Client // nil 时不镜像
	stream      string
	maxLen      int64
	logger      *zap.Logger
	metrics     *Metrics
	now         func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	valueHandle observable.Handle
	connHandle  observable.Handle
}

// NewDeviceConsumer 创建设备值消费者
func NewDeviceConsumer(
	source DeviceSource,
	sink ValueSink,
	redisClient *redis.Client,
	stream string,
	maxLen int64,
	logger *zap.Logger,
) *DeviceConsumer {
	return &DeviceConsumer{
		source:      source,
		sink:        sink,
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
		logger:      logger,
		metrics:     &Metrics{StartTime: time.Now()},
		now:         time.Now,
	}
}

// Start 订阅设备通道
func (c *DeviceConsumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valueHandle != 0 {
		return
	}
	c.ctx = ctx
	c.valueHandle = c.source.SubscribeToNewValue(c.handleValue)
	c.connHandle = c.source.SubscribeToConnectionStatus(c.handleConnection)

	c.logger.Info("Device consumer started",
		zap.String("device_id", c.source.DeviceID()),
		zap.String("stream", c.stream),
	)
}

// Stop 取消订阅
func (c *DeviceConsumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valueHandle == 0 {
		return
	}
	c.source.UnsubscribeFromNewValue(c.valueHandle)
	c.source.UnsubscribeFromConnectionStatus(c.connHandle)
	c.valueHandle, c.connHandle = 0, 0
	c.logger.Info("Device consumer stopped")
}

func (c *DeviceConsumer) baseContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *DeviceConsumer) handleValue(value int) {
	ctx := c.baseContext()
	now := c.now()
	c.metrics.valueReceived(now)

	code := models.ActivityCode(value)
	if !code.IsPosture() && !code.IsFall() {
		c.metrics.incr(&c.metrics.ValuesRejected)
	}
	if code.IsFall() {
		c.metrics.incr(&c.metrics.FallsDetected)
	}

	c.mirror(ctx, DeviceValueRecord{
		DeviceID:   c.source.DeviceID(),
		Value:      value,
		Kind:       code.String(),
		ReceivedAt: now.UnixMilli(),
	})

	c.sink.OnDeviceValue(ctx, code)
}

// mirror 写入 Redis Stream，失败只记录
func (c *DeviceConsumer) mirror(ctx context.Context, record DeviceValueRecord) {
	if c.redisClient == nil || c.stream == "" {
		return
	}
	if _, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.stream, c.maxLen, record); err != nil {
		c.metrics.incr(&c.metrics.StreamFailures)
		c.logger.Warn("Failed to mirror device value to stream",
			zap.String("stream", c.stream),
			zap.Int("value", record.Value),
			zap.Error(err),
		)
	}
}

func (c *DeviceConsumer) handleConnection(connected bool) {
	if connected {
		c.logger.Info("Device connection established", zap.String("device_id", c.source.DeviceID()))
		return
	}
	c.logger.Warn("Device connection lost", zap.String("device_id", c.source.DeviceID()))
}

// GetMetrics 获取监控指标
func (c *DeviceConsumer) GetMetrics() Metrics {
	return c.metrics.GetSnapshot()
}
