package activity

import (
	"time"

	"alfred/internal/models"
)

// Label 活动类型显示名称；未知类型按 active 处理
func Label(kind models.ActivityCode) string {
	switch kind {
	case models.ActivityLying:
		return "lying"
	case models.ActivitySitting:
		return "sitting"
	default:
		return "active"
	}
}

// DurationHours 两个时间点之间的小时数
func DurationHours(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// DailySummary 某一天各活动类型的累计小时数
type DailySummary struct {
	Date    string  `json:"date"`
	Lying   float64 `json:"lying"`
	Sitting float64 `json:"sitting"`
	Active  float64 `json:"active"`
}

// Total 合计小时数
func (s DailySummary) Total() float64 {
	return s.Lying + s.Sitting + s.Active
}

// DayBounds 给定时区下某天的 [开始, 结束)
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Summarize 统计某天的活动时长；片段按当天边界截断，打开的片段截止到 now
func Summarize(segments []models.ActivitySegment, day, now time.Time, loc *time.Location) DailySummary {
	dayStart, dayEnd := DayBounds(day, loc)
	summary := DailySummary{Date: dayStart.Format("2006-01-02")}

	for _, seg := range segments {
		start := seg.StartedAt
		end := now
		if seg.EndedAt != nil {
			end = *seg.EndedAt
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if !end.After(start) {
			continue
		}

		hours := DurationHours(start, end)
		switch seg.Kind {
		case models.ActivityLying:
			summary.Lying += hours
		case models.ActivitySitting:
			summary.Sitting += hours
		case models.ActivityActive:
			summary.Active += hours
		}
	}
	return summary
}

// CurrentActivity 返回 at 时刻所处的片段类型
func CurrentActivity(segments []models.ActivitySegment, at time.Time) (models.ActivityCode, bool) {
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg.StartedAt.After(at) {
			continue
		}
		if seg.EndedAt == nil || seg.EndedAt.After(at) {
			return seg.Kind, true
		}
	}
	return 0, false
}

// View 时间视图
type View string

const (
	ViewHourly  View = "hourly"
	ViewWeekly  View = "weekly"
	ViewMonthly View = "monthly"
)

// ViewBounds 返回 date 在视图下所在区间 [from, to)
// hourly 按天，weekly 按周（周一开始），monthly 按月；未知视图 ok 为 false
func ViewBounds(date time.Time, view View, loc *time.Location) (from, to time.Time, ok bool) {
	dayStart, dayEnd := DayBounds(date, loc)
	switch view {
	case ViewHourly:
		return dayStart, dayEnd, true
	case ViewWeekly:
		offset := (int(dayStart.Weekday()) + 6) % 7
		from = dayStart.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7), true
	case ViewMonthly:
		from = time.Date(dayStart.Year(), dayStart.Month(), 1, 0, 0, 0, 0, dayStart.Location())
		return from, from.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// HasDataFor 判断在指定视图下 date 所在的区间内是否有片段开始
func HasDataFor(segments []models.ActivitySegment, date time.Time, view View, loc *time.Location) bool {
	from, to, ok := ViewBounds(date, view, loc)
	if !ok {
		return false
	}
	for _, seg := range segments {
		if !seg.StartedAt.Before(from) && seg.StartedAt.Before(to) {
			return true
		}
	}
	return false
}
