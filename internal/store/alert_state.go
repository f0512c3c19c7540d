package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alfred/internal/models"

	"go.uber.org/zap"
)

// AlertStateMirror 将报警状态写入 Redis，供其他进程查询
type AlertStateMirror struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewAlertStateMirror 创建报警状态镜像
func NewAlertStateMirror(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *AlertStateMirror {
	return &AlertStateMirror{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (m *AlertStateMirror) key(userID string) string {
	return fmt.Sprintf("%s%s:state", m.prefix, userID)
}

// Save 写入状态
func (m *AlertStateMirror) Save(ctx context.Context, userID string, status models.AlertStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal alert status: %w", err)
	}
	if err := m.kv.Set(ctx, m.key(userID), string(data), m.ttl); err != nil {
		return fmt.Errorf("failed to set alert status: %w", err)
	}
	return nil
}

// Load 读取状态，不存在时返回 ErrCacheMiss
func (m *AlertStateMirror) Load(ctx context.Context, userID string) (*models.AlertStatus, error) {
	raw, err := m.kv.Get(ctx, m.key(userID))
	if err != nil {
		return nil, err
	}
	var status models.AlertStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert status: %w", err)
	}
	return &status, nil
}

// Observer 返回用于订阅 Sequencer 状态的回调
func (m *AlertStateMirror) Observer(userID func() string) func(models.AlertStatus) {
	return func(status models.AlertStatus) {
		id := userID()
		if id == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.Save(ctx, id, status); err != nil {
			m.logger.Warn("Failed to mirror alert state",
				zap.String("user_id", id),
				zap.String("state", string(status.State)),
				zap.Error(err),
			)
		}
	}
}
