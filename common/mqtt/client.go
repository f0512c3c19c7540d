package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alfred/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	// DefaultConnectTimeout 默认连接超时
	DefaultConnectTimeout = 10 * time.Second
	// DefaultWriteTimeout 默认发布/订阅确认超时
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrConnectTimeout 连接在超时时间内未完成
	ErrConnectTimeout = errors.New("mqtt connect timed out")
	// ErrConnectRejected broker 拒绝连接（认证失败、地址不可达等）
	ErrConnectRejected = errors.New("mqtt connect rejected")
	// ErrWriteTimeout 发布/订阅在超时时间内未得到确认（连接中断时 token 不会完成）
	ErrWriteTimeout = errors.New("mqtt operation timed out")
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// ConnectionHandler 连接状态变化回调（true = 已连接）
type ConnectionHandler func(connected bool)

// Client MQTT客户端封装
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger
}

// NewClient 创建MQTT客户端（不立即连接，调用 Connect 建立连接）
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger, onConnection ConnectionHandler) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(connectTimeout(cfg))
	opts.SetWriteTimeout(writeTimeout(cfg))

	if onConnection != nil {
		opts.SetOnConnectHandler(func(mqtt.Client) {
			onConnection(true)
		})
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
			onConnection(false)
		})
	}

	return &Client{
		client: mqtt.NewClient(opts),
		config: cfg,
		logger: logger,
	}
}

// Connect 连接 broker，超时返回 ErrConnectTimeout，被拒绝返回 ErrConnectRejected
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	timer := time.NewTimer(connectTimeout(c.config))
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrConnectTimeout, connectTimeout(c.config))
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectRejected, err)
	}
	return nil
}

// Subscribe 订阅主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 记录错误，但不中断处理
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if err := c.wait(token); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	return nil
}

// Publish 发布消息，超时返回 ErrWriteTimeout
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if err := c.wait(token); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	if err := c.wait(token); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	return nil
}

// wait 等待 token 完成，最长 WriteTimeout
func (c *Client) wait(token mqtt.Token) error {
	timeout := writeTimeout(c.config)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %s", ErrWriteTimeout, timeout)
	}
	return token.Error()
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

func connectTimeout(cfg *config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func writeTimeout(cfg *config.MQTTConfig) time.Duration {
	if cfg.WriteTimeout > 0 {
		return cfg.WriteTimeout
	}
	return DefaultWriteTimeout
}
