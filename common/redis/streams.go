package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// PublishToStream 发布消息到 Redis Streams（maxLen > 0 时近似裁剪）
func PublishToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, err := toStreamValue(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode stream field %s: %w", k, err)
		}
		streamValues[k] = s
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}

// PublishJSONToStream 发布 JSON 消息到 Redis Streams
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return PublishToStream(ctx, client, stream, maxLen, map[string]interface{}{
		"data":      string(jsonBytes),
		"timestamp": time.Now().Unix(),
	})
}

// ReadRange 按 ID 范围读取消息（"-" 到 "+" 为全部）
func ReadRange(ctx context.Context, client *redis.Client, stream, start, stop string) ([]StreamMessage, error) {
	msgs, err := client.XRange(ctx, stream, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]StreamMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, StreamMessage{Stream: stream, ID: m.ID, Values: m.Values})
	}
	return out, nil
}

func toStreamValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		// 其他类型尝试 JSON 序列化
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
