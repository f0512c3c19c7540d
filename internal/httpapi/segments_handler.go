package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"alfred/internal/activity"
	"alfred/internal/models"

	"go.uber.org/zap"
)

// UserResolver 当前登录用户
type UserResolver interface {
	CurrentUser() (string, bool)
}

// SegmentQuerier 片段查询（repository.SegmentRepository）
type SegmentQuerier interface {
	QueryRange(ctx context.Context, userID string, start, end time.Time, kind models.ActivityCode) ([]models.ActivitySegment, error)
}

// OpenSegmentReader 当前打开片段（segmenter.Segmenter）
type OpenSegmentReader interface {
	OpenSegment() (models.ActivitySegment, bool)
}

// SegmentsHandler 活动片段接口
type SegmentsHandler struct {
	segments SegmentQuerier
	open     OpenSegmentReader
	users    UserResolver
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewSegmentsHandler(segments SegmentQuerier, open OpenSegmentReader, users UserResolver, loc *time.Location, logger *zap.Logger) *SegmentsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &SegmentsHandler{
		segments: segments,
		open:     open,
		users:    users,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// segmentView 片段响应
type segmentView struct {
	models.ActivitySegment
	Label         string  `json:"label"`
	DurationHours float64 `json:"duration_hours"`
}

func (h *SegmentsHandler) toView(seg models.ActivitySegment, now time.Time) segmentView {
	return segmentView{
		ActivitySegment: seg,
		Label:           activity.Label(seg.Kind),
		DurationHours:   seg.Duration(now).Hours(),
	}
}

func (h *SegmentsHandler) requireUser(w http.ResponseWriter) (string, bool) {
	userID, ok := h.users.CurrentUser()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Fail("not authenticated"))
	}
	return userID, ok
}

// parseRange 解析 start/end，默认最近 24 小时
func (h *SegmentsHandler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := h.now()
	q := r.URL.Query()
	start, err := parseTimeParam(q.Get("start"), now.Add(-24*time.Hour), h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTimeParam(q.Get("end"), now, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
	}
	return start, end, nil
}

// List GET /api/v1/segments?start=&end=&kind=
func (h *SegmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	start, end, err := h.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	kind := models.ActivityCode(parseInt(r.URL.Query().Get("kind"), 0))
	if kind != 0 && !kind.IsPosture() {
		writeJSON(w, http.StatusBadRequest, Fail("kind must be 1, 2 or 3"))
		return
	}

	segments, err := h.segments.QueryRange(r.Context(), userID, start, end, kind)
	if err != nil {
		h.logger.Error("Failed to query segments", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query segments"))
		return
	}

	now := h.now()
	views := make([]segmentView, 0, len(segments))
	for _, seg := range segments {
		views = append(views, h.toView(seg, now))
	}
	writeJSON(w, http.StatusOK, Ok(views))
}

// Current GET /api/v1/segments/current
func (h *SegmentsHandler) Current(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w); !ok {
		return
	}
	seg, ok := h.open.OpenSegment()
	if !ok {
		writeJSON(w, http.StatusOK, Ok[*segmentView](nil))
		return
	}
	view := h.toView(seg, h.now())
	writeJSON(w, http.StatusOK, Ok(&view))
}

// summaryView 汇总响应
type summaryView struct {
	activity.DailySummary
	Total           float64 `json:"total"`
	CurrentActivity string  `json:"current_activity,omitempty"`
}

// Summary GET /api/v1/activity/summary?date=YYYY-MM-DD
func (h *SegmentsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	now := h.now()
	day, err := parseTimeParam(r.URL.Query().Get("date"), now, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	dayStart, dayEnd := activity.DayBounds(day, h.loc)
	segments, err := h.segments.QueryRange(r.Context(), userID, dayStart, dayEnd, 0)
	if err != nil {
		h.logger.Error("Failed to query segments for summary", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query segments"))
		return
	}

	summary := activity.Summarize(segments, day, now, h.loc)
	view := summaryView{DailySummary: summary, Total: summary.Total()}
	if kind, ok := activity.CurrentActivity(segments, now); ok {
		view.CurrentActivity = activity.Label(kind)
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// availabilityView 日期选择器可用性响应
type availabilityView struct {
	Date    string        `json:"date"`
	View    activity.View `json:"view"`
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	HasData bool          `json:"has_data"`
}

// Availability GET /api/v1/activity/availability?date=YYYY-MM-DD&view=hourly|weekly|monthly
func (h *SegmentsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	day, err := parseTimeParam(q.Get("date"), h.now(), h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	view := activity.View(q.Get("view"))
	if view == "" {
		view = activity.ViewHourly
	}
	from, to, ok := activity.ViewBounds(day, view, h.loc)
	if !ok {
		writeJSON(w, http.StatusBadRequest, Fail("view must be hourly, weekly or monthly"))
		return
	}

	segments, err := h.segments.QueryRange(r.Context(), userID, from, to, 0)
	if err != nil {
		h.logger.Error("Failed to query segments for availability", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query segments"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(availabilityView{
		Date:    day.In(h.loc).Format("2006-01-02"),
		View:    view,
		From:    from,
		To:      to,
		HasData: activity.HasDataFor(segments, day, view, h.loc),
	}))
}

// Export GET /api/v1/segments/export?start=&end=
func (h *SegmentsHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}
	start, end, err := h.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	segments, err := h.segments.QueryRange(r.Context(), userID, start, end, 0)
	if err != nil {
		h.logger.Error("Failed to query segments for export", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query segments"))
		return
	}

	data, err := GenerateSegmentsExport(segments, h.now(), h.loc)
	if err != nil {
		h.logger.Error("Failed to generate segments export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("activity_%s_%s.xlsx", start.In(h.loc).Format("20060102"), end.In(h.loc).Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
