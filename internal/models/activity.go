package models

import (
	"time"
)

// ActivityCode 设备上报的活动分类码
type ActivityCode int

const (
	ActivityLying   ActivityCode = 1 // 躺
	ActivitySitting ActivityCode = 2 // 坐
	ActivityActive  ActivityCode = 3 // 活动
	ActivityFall    ActivityCode = 4 // 跌倒（瞬时事件，不产生 segment）
)

// IsPosture 是否为稳态姿态码（1-3）
func (c ActivityCode) IsPosture() bool {
	return c >= ActivityLying && c <= ActivityActive
}

// IsFall 是否为跌倒哨兵值
func (c ActivityCode) IsFall() bool {
	return c == ActivityFall
}

// String returns the lowercase posture name.
func (c ActivityCode) String() string {
	switch c {
	case ActivityLying:
		return "lying"
	case ActivitySitting:
		return "sitting"
	case ActivityActive:
		return "active"
	case ActivityFall:
		return "fall"
	default:
		return "unknown"
	}
}

// ActivitySegment 活动片段（对应 movement_data 表）
type ActivitySegment struct {
	SegmentID string       `json:"segment_id" db:"segment_id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Kind      ActivityCode `json:"kind" db:"kind"`
	StartedAt time.Time    `json:"started_at" db:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty" db:"ended_at"` // nil 表示片段仍处于打开状态
}

// IsOpen 片段是否仍未结束
func (s *ActivitySegment) IsOpen() bool {
	return s.EndedAt == nil
}

// Duration 片段时长；打开的片段以 now 作为结束时间
func (s *ActivitySegment) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
