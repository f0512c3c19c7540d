package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alfred/internal/models"

	"go.uber.org/zap"
)

// ContactLoader 联系人数据源（ContactRepository）
type ContactLoader interface {
	List(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}

// ContactCache 紧急联系人快照缓存
// 读穿透：未命中时从数据库加载并写回；变更通知到达时失效
type ContactCache struct {
	kv     KVStore
	loader ContactLoader
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewContactCache 创建联系人缓存
func NewContactCache(kv KVStore, loader ContactLoader, prefix string, ttl time.Duration, logger *zap.Logger) *ContactCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ContactCache{
		kv:     kv,
		loader: loader,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *ContactCache) key(userID string) string {
	return c.prefix + userID
}

// Snapshot 获取用户联系人快照
func (c *ContactCache) Snapshot(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	key := c.key(userID)

	raw, err := c.kv.Get(ctx, key)
	if err == nil {
		var contacts []models.EmergencyContact
		if err := json.Unmarshal([]byte(raw), &contacts); err == nil {
			return contacts, nil
		}
		c.logger.Warn("Corrupted contacts cache entry, reloading", zap.String("key", key))
	} else if !errors.Is(err, ErrCacheMiss) {
		// Redis 不可用时直接回源
		c.logger.Warn("Failed to read contacts cache", zap.String("key", key), zap.Error(err))
	}

	contacts, err := c.loader.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}

	data, err := json.Marshal(contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contacts: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("Failed to write contacts cache", zap.String("key", key), zap.Error(err))
	}

	c.logger.Debug("Loaded contacts snapshot",
		zap.String("user_id", userID),
		zap.Int("count", len(contacts)),
	)
	return contacts, nil
}

// Invalidate 失效用户的联系人缓存
func (c *ContactCache) Invalidate(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := c.kv.Del(ctx, c.key(userID)); err != nil {
		c.logger.Warn("Failed to invalidate contacts cache", zap.String("user_id", userID), zap.Error(err))
	}
}
