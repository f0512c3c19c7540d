package consumer

import (
	"sync"
	"time"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	ValuesReceived  int64 // 收到的设备值总数
	ValuesRejected  int64 // 无效的设备值
	FallsDetected   int64 // 跌倒事件数
	StreamFailures  int64 // 写入 Redis Stream 失败次数
	AlertsTriggered int64 // 启动的报警会话数
	AlertsRejected  int64 // 因已有会话而被拒绝的触发

	LastValueTime time.Time
	StartTime     time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		ValuesReceived:  m.ValuesReceived,
		ValuesRejected:  m.ValuesRejected,
		FallsDetected:   m.FallsDetected,
		StreamFailures:  m.StreamFailures,
		AlertsTriggered: m.AlertsTriggered,
		AlertsRejected:  m.AlertsRejected,
		LastValueTime:   m.LastValueTime,
		StartTime:       m.StartTime,
	}
}

func (m *Metrics) incr(field *int64) {
	m.mu.Lock()
	*field++
	m.mu.Unlock()
}

func (m *Metrics) valueReceived(at time.Time) {
	m.mu.Lock()
	m.ValuesReceived++
	m.LastValueTime = at
	m.mu.Unlock()
}
