package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scout-gateway/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 表示缓存不存在
var ErrCacheMiss = errors.New("cache miss")

// KVStore 抽象的 KV 存储（用于在单元测试中替换 Redis）
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore 基于 go-redis 的 KV 实现
type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MirrorDocument 写入 KV 的快照文档
type MirrorDocument struct {
	Source   string                   `json:"source"`
	LoadedAt time.Time                `json:"loaded_at"`
	Records  []models.TelemetryRecord `json:"records"`
}

// KVMirror 把整份快照以 JSON 写入单个 key，一次 SET 完成替换
type KVMirror struct {
	kv  KVStore
	key string
	ttl time.Duration
}

// NewKVMirror 创建快照镜像，ttl 为 0 表示不过期
func NewKVMirror(kv KVStore, key string, ttl time.Duration) *KVMirror {
	return &KVMirror{kv: kv, key: key, ttl: ttl}
}

// Publish 实现 SnapshotMirror
func (m *KVMirror) Publish(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(MirrorDocument{
		Source:   snap.Source(),
		LoadedAt: snap.LoadedAt(),
		Records:  snap.All(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.kv.Set(ctx, m.key, string(raw), m.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}
	return nil
}

// Fetch 读取镜像中的快照文档
func (m *KVMirror) Fetch(ctx context.Context) (*MirrorDocument, error) {
	raw, err := m.kv.Get(ctx, m.key)
	if err != nil {
		return nil, err
	}
	var doc MirrorDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &doc, nil
}
