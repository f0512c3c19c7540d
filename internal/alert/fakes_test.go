package alert

import (
	"context"
	"sync"
	"time"

	"alfred/internal/messaging"
)

// fakeAlerter 记录本地报警资源状态
type fakeAlerter struct {
	mu          sync.Mutex
	playing     bool
	position    int // 0 表示在开头
	vibrating   bool
	pulses      int
	pauses      int
	stopCalls   int
	lastPattern []time.Duration
}

func (f *fakeAlerter) PlayTone() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.position = 1
	return nil
}

func (f *fakeAlerter) PauseTone() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.pauses++
	return nil
}

func (f *fakeAlerter) ResetTone() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = 0
	return nil
}

func (f *fakeAlerter) Vibrate(pattern []time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrating = true
	f.pulses++
	f.lastPattern = pattern
	return nil
}

func (f *fakeAlerter) StopVibration() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vibrating = false
	f.stopCalls++
	return nil
}

// stopped 提示音已暂停并回到开头、振动已停止
func (f *fakeAlerter) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.playing && f.position == 0 && !f.vibrating
}

func (f *fakeAlerter) teardowns() (pauses, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses, f.stopCalls
}

// fakeSender 按号码决定成功与否
type fakeSender struct {
	mu     sync.Mutex
	fail   map[string]bool
	calls  []string
	onSend func()
}

func (f *fakeSender) Send(ctx context.Context, message, phoneNumber string) messaging.SendResult {
	f.mu.Lock()
	f.calls = append(f.calls, phoneNumber)
	fail := f.fail[phoneNumber]
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return messaging.SendResult{Success: false, Error: "invalid number"}
	}
	return messaging.SendResult{Success: true}
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
