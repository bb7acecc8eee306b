// Package cache 会话展示快照的实时缓存
//
// 只缓存展示用的只读快照，带短 TTL；会话状态本身不持久化。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maryammo2000/fast-flow-web/internal/models"

	"go.uber.org/zap"
)

// RealtimeCache 会话实时快照缓存
type RealtimeCache struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRealtimeCache 创建实时缓存；键格式 {prefix}{session_id}:realtime
func NewRealtimeCache(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *RealtimeCache {
	return &RealtimeCache{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Key 构建缓存键
func (c *RealtimeCache) Key(sessionID string) string {
	return fmt.Sprintf("%s%s:realtime", c.prefix, sessionID)
}

// Publish 写入快照
func (c *RealtimeCache) Publish(ctx context.Context, view models.SessionView) error {
	jsonData, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal session view: %w", err)
	}

	key := c.Key(view.SessionID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated realtime cache",
		zap.String("session_id", view.SessionID),
		zap.String("key", key),
	)
	return nil
}

// Get 读取快照
func (c *RealtimeCache) Get(ctx context.Context, sessionID string) (*models.SessionView, error) {
	val, err := c.kv.Get(ctx, c.Key(sessionID))
	if err != nil {
		return nil, err
	}

	var view models.SessionView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session view: %w", err)
	}
	return &view, nil
}

// Delete 删除快照（会话关闭时）
func (c *RealtimeCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.kv.Del(ctx, c.Key(sessionID)); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Observer 作为会话观察者使用，写入失败只记录日志
func (c *RealtimeCache) Observer() func(ctx context.Context, view models.SessionView) {
	return func(ctx context.Context, view models.SessionView) {
		if err := c.Publish(ctx, view); err != nil {
			c.logger.Warn("Failed to publish realtime view",
				zap.String("session_id", view.SessionID),
				zap.Error(err),
			)
		}
	}
}
