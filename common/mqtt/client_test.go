package mqtt

import (
	"errors"
	"testing"
	"time"

	"alfred/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubToken 可控完成状态的 token
type stubToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *stubToken {
	t := &stubToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// pendingToken 永不完成，模拟连接中断时 QoS1 发布等不到 PUBACK
func pendingToken() *stubToken {
	return &stubToken{done: make(chan struct{})}
}

func (t *stubToken) Wait() bool {
	<-t.done
	return true
}

func (t *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stubToken) Done() <-chan struct{} { return t.done }

func (t *stubToken) Error() error { return t.err }

// stubPaho 只实现用到的方法
type stubPaho struct {
	mqtt.Client
	token mqtt.Token
}

func (p *stubPaho) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return p.token
}

func (p *stubPaho) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return p.token
}

func (p *stubPaho) Unsubscribe(topics ...string) mqtt.Token {
	return p.token
}

func newStubClient(token mqtt.Token, timeout time.Duration) *Client {
	return &Client{
		client: &stubPaho{token: token},
		config: &config.MQTTConfig{WriteTimeout: timeout},
		logger: zap.NewNop(),
	}
}

func TestClient_PublishTimesOut(t *testing.T) {
	c := newStubClient(pendingToken(), 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- c.Publish("alfred/devices/a/command", 1, false, []byte("{}")) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWriteTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked past its write timeout")
	}
}

func TestClient_SubscribeAndUnsubscribeTimeOut(t *testing.T) {
	c := newStubClient(pendingToken(), 10*time.Millisecond)

	err := c.Subscribe("alfred/devices/a/activity", 1, func(string, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrWriteTimeout)
	assert.ErrorIs(t, c.Unsubscribe("alfred/devices/a/activity"), ErrWriteTimeout)
}

func TestClient_PublishResult(t *testing.T) {
	c := newStubClient(completedToken(nil), time.Second)
	assert.NoError(t, c.Publish("t", 0, false, []byte("x")))

	brokerErr := errors.New("not connected")
	c = newStubClient(completedToken(brokerErr), time.Second)
	err := c.Publish("t", 0, false, []byte("x"))
	assert.ErrorIs(t, err, brokerErr)
	assert.NotErrorIs(t, err, ErrWriteTimeout)
}

func TestWriteTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultWriteTimeout, writeTimeout(&config.MQTTConfig{}))
	assert.Equal(t, time.Second, writeTimeout(&config.MQTTConfig{WriteTimeout: time.Second}))
}
