package alert

import "time"

// DefaultHapticPattern 振动 500ms，停 500ms
var DefaultHapticPattern = []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}

// LocalAlerter 本地报警（提示音 + 振动）
// 提示音与振动可独立停止
type LocalAlerter interface {
	// PlayTone 循环播放提示音
	PlayTone() error
	// PauseTone 暂停提示音
	PauseTone() error
	// ResetTone 将提示音回到开头
	ResetTone() error
	// Vibrate 执行一次振动模式
	Vibrate(pattern []time.Duration) error
	// StopVibration 立即停止振动
	StopVibration() error
}

// NopAlerter 无本地报警能力时使用
type NopAlerter struct{}

func (NopAlerter) PlayTone() error { return nil }
func (NopAlerter) PauseTone() error { return nil }
func (NopAlerter) ResetTone() error { return nil }
func (NopAlerter) Vibrate([]time.Duration) error { return nil }
func (NopAlerter) StopVibration() error { return nil }
