package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamWriter 向单个 Redis Stream 追加消息，MaxLen > 0 时近似裁剪
type StreamWriter struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamWriter 创建 Stream 写入器
func NewStreamWriter(client *redis.Client, stream string, maxLen int64) *StreamWriter {
	return &StreamWriter{client: client, stream: stream, maxLen: maxLen}
}

// Stream 返回 stream 名称
func (w *StreamWriter) Stream() string { return w.stream }

// Append 发布消息到 Redis Streams，值统一转换为字符串
func (w *StreamWriter) Append(ctx context.Context, values map[string]interface{}) (string, error) {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, err := stringify(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		fields[k] = s
	}

	args := &redis.XAddArgs{
		Stream: w.stream,
		Values: fields,
	}
	if w.maxLen > 0 {
		args.MaxLen = w.maxLen
		args.Approx = true
	}
	return w.client.XAdd(ctx, args).Result()
}

// AppendJSON 发布 JSON 消息到 Redis Streams（data + timestamp 两个字段）
func (w *StreamWriter) AppendJSON(ctx context.Context, data interface{}) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return w.Append(ctx, map[string]interface{}{
		"data":      string(raw),
		"timestamp": time.Now().Unix(),
	})
}

func stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
