package device

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptyPayload 空消息
var ErrEmptyPayload = errors.New("empty device payload")

// valueMessage JSON 格式上报：{"value": 3}
type valueMessage struct {
	Value *int `json:"value"`
}

// DecodeValue 解析设备上报的活动码
// 支持 JSON {"value":N}、ASCII 十进制、1 字节或 2 字节小端整数（与 BLE 特征值一致）
func DecodeValue(payload []byte) (int, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		if len(payload) == 0 {
			return 0, ErrEmptyPayload
		}
		trimmed = payload
	}

	if trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		var msg valueMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return 0, fmt.Errorf("failed to unmarshal device payload: %w", err)
		}
		if msg.Value == nil {
			return 0, fmt.Errorf("device payload missing value field")
		}
		return *msg.Value, nil
	}

	if isDecimal(trimmed) {
		v, err := strconv.Atoi(string(trimmed))
		if err != nil {
			return 0, fmt.Errorf("failed to parse device value: %w", err)
		}
		return v, nil
	}

	switch len(payload) {
	case 1:
		return int(payload[0]), nil
	case 2:
		return int(binary.LittleEndian.Uint16(payload)), nil
	}
	return 0, fmt.Errorf("unsupported device payload (%d bytes)", len(payload))
}

func isDecimal(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}
