package device

import (
	"context"
	"sync"

	"alfred/common/mqtt"
)

// fakeTransport 内存传输层
type fakeTransport struct {
	mu           sync.Mutex
	connectErr   error
	subscribeErr error
	connected    bool
	handlers     map[string]mqtt.MessageHandler
	published    []publishedMessage
	unsubscribed []string
	subscribes   int
}

type publishedMessage struct {
	topic   string
	payload string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakeTransport) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
		f.unsubscribed = append(f.unsubscribed, t)
	}
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// deliver 模拟 broker 推送
func (f *fakeTransport) deliver(topic string, payload []byte) error {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(topic, payload)
}
