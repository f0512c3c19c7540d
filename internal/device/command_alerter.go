package device

import (
	"fmt"
	"strings"
	"time"
)

// 设备命令
const (
	CommandTonePlay   = "tone:play"
	CommandTonePause  = "tone:pause"
	CommandToneReset  = "tone:reset"
	CommandHapticStop = "haptic:stop"
)

// CommandAlerter 通过设备命令主题实现本地报警（提示音、振动）
type CommandAlerter struct {
	transport Transport
	cfg       Config
}

// NewCommandAlerter 创建命令报警器
func NewCommandAlerter(transport Transport, cfg Config) *CommandAlerter {
	return &CommandAlerter{transport: transport, cfg: cfg}
}

func (a *CommandAlerter) send(cmd string) error {
	if err := a.transport.Publish(a.cfg.CommandTopic(), a.cfg.QoS, false, []byte(cmd)); err != nil {
		return fmt.Errorf("failed to send device command %q: %w", cmd, err)
	}
	return nil
}

func (a *CommandAlerter) PlayTone() error  { return a.send(CommandTonePlay) }
func (a *CommandAlerter) PauseTone() error { return a.send(CommandTonePause) }
func (a *CommandAlerter) ResetTone() error { return a.send(CommandToneReset) }

// Vibrate 发送振动模式，如 "haptic:500,500"
func (a *CommandAlerter) Vibrate(pattern []time.Duration) error {
	return a.send(HapticCommand(pattern))
}

func (a *CommandAlerter) StopVibration() error { return a.send(CommandHapticStop) }

// HapticCommand 将振动模式编码为毫秒列表
func HapticCommand(pattern []time.Duration) string {
	parts := make([]string, 0, len(pattern))
	for _, d := range pattern {
		parts = append(parts, fmt.Sprintf("%d", d.Milliseconds()))
	}
	return "haptic:" + strings.Join(parts, ",")
}
