package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"alfred/common/mqtt"
	"alfred/internal/observable"

	"go.uber.org/zap"
)

// Transport 设备消息通道（common/mqtt.Client 实现）
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
	Disconnect()
	IsConnected() bool
}

// Config 设备配置
type Config struct {
	DeviceID    string
	TopicPrefix string
	QoS         byte
}

// ActivityTopic 活动码上报主题
func (c Config) ActivityTopic() string {
	return fmt.Sprintf("%s/%s/activity", c.TopicPrefix, c.DeviceID)
}

// CommandTopic 设备命令主题
func (c Config) CommandTopic() string {
	return fmt.Sprintf("%s/%s/command", c.TopicPrefix, c.DeviceID)
}

// Client 可穿戴设备客户端
// 提供连接状态与原始值两个通知通道
type Client struct {
	transport Transport
	cfg       Config
	logger    *zap.Logger

	mu          sync.Mutex
	connected   bool
	subscribed  bool // 已订阅活动主题（断线重连后需要重新订阅）
	resubscribe bool

	connection *observable.Observable[bool]
	values     *observable.Observable[int]
}

// NewClient 创建设备客户端
func NewClient(transport Transport, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		transport:  transport,
		cfg:        cfg,
		logger:     logger,
		connection: observable.New[bool](),
		values:     observable.New[int](),
	}
}

// Connect 连接设备；失败只返回 false，原因记录在日志中
func (c *Client) Connect(ctx context.Context) bool {
	if err := c.transport.Connect(ctx); err != nil {
		switch {
		case errors.Is(err, mqtt.ErrConnectTimeout):
			c.logger.Warn("Device connect timed out", zap.String("device_id", c.cfg.DeviceID), zap.Error(err))
		case errors.Is(err, mqtt.ErrConnectRejected):
			c.logger.Error("Device connect rejected", zap.String("device_id", c.cfg.DeviceID), zap.Error(err))
		default:
			c.logger.Error("Device connect failed", zap.String("device_id", c.cfg.DeviceID), zap.Error(err))
		}
		return false
	}

	if err := c.subscribe(); err != nil {
		c.logger.Error("Failed to subscribe to device topic",
			zap.String("topic", c.cfg.ActivityTopic()),
			zap.Error(err),
		)
		c.transport.Disconnect()
		c.setConnected(false)
		return false
	}

	c.logger.Info("Device connected",
		zap.String("device_id", c.cfg.DeviceID),
		zap.String("topic", c.cfg.ActivityTopic()),
	)
	c.setConnected(true)
	return true
}

func (c *Client) subscribe() error {
	if err := c.transport.Subscribe(c.cfg.ActivityTopic(), c.cfg.QoS, c.handleMessage); err != nil {
		return err
	}
	c.mu.Lock()
	c.subscribed = true
	c.resubscribe = false
	c.mu.Unlock()
	return nil
}

// Disconnect 断开设备
func (c *Client) Disconnect() {
	c.mu.Lock()
	subscribed := c.subscribed
	c.subscribed = false
	c.resubscribe = false
	c.mu.Unlock()

	if subscribed {
		if err := c.transport.Unsubscribe(c.cfg.ActivityTopic()); err != nil {
			c.logger.Warn("Failed to unsubscribe device topic", zap.Error(err))
		}
	}
	c.transport.Disconnect()
	c.setConnected(false)
	c.logger.Info("Device disconnected", zap.String("device_id", c.cfg.DeviceID))
}

// HandleConnection 传输层连接状态回调（含自动重连）
func (c *Client) HandleConnection(connected bool) {
	c.mu.Lock()
	if !connected && c.subscribed {
		c.resubscribe = true
	}
	resubscribe := connected && c.resubscribe
	c.mu.Unlock()

	if resubscribe {
		if err := c.subscribe(); err != nil {
			c.logger.Error("Failed to resubscribe after reconnect", zap.Error(err))
		}
	}
	c.setConnected(connected)
}

// setConnected 状态变化时通知
func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	c.mu.Unlock()

	if changed {
		c.connection.Notify(connected)
	}
}

func (c *Client) handleMessage(topic string, payload []byte) error {
	v, err := DecodeValue(payload)
	if err != nil {
		return fmt.Errorf("failed to decode value on %s: %w", topic, err)
	}
	c.values.Notify(v)
	return nil
}

// IsConnected 当前连接状态
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// DeviceID 设备标识
func (c *Client) DeviceID() string {
	return c.cfg.DeviceID
}

// SubscribeToConnectionStatus 订阅连接状态
func (c *Client) SubscribeToConnectionStatus(fn func(connected bool)) observable.Handle {
	return c.connection.Subscribe(fn)
}

// UnsubscribeFromConnectionStatus 取消连接状态订阅
func (c *Client) UnsubscribeFromConnectionStatus(h observable.Handle) {
	c.connection.Unsubscribe(h)
}

// SubscribeToNewValue 订阅原始值
func (c *Client) SubscribeToNewValue(fn func(value int)) observable.Handle {
	return c.values.Subscribe(fn)
}

// UnsubscribeFromNewValue 取消原始值订阅
func (c *Client) UnsubscribeFromNewValue(h observable.Handle) {
	c.values.Unsubscribe(h)
}
