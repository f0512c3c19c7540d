package segmenter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"alfred/internal/models"
)

// errOpenExists 与 idx_movement_data_one_open 唯一索引冲突时的错误
var errOpenExists = errors.New(`duplicate key value violates unique constraint "idx_movement_data_one_open"`)

// fakeStore 内存片段存储，与数据库一样限制每个用户最多一个打开片段
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	segments  map[string]*models.ActivitySegment
	insertErr error
	endErr    error
	findErr   error
	inserts   int
	ends      int
	finds     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{segments: make(map[string]*models.ActivitySegment)}
}

func (f *fakeStore) Insert(ctx context.Context, userID string, kind models.ActivityCode, startedAt time.Time) (*models.ActivitySegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, seg := range f.segments {
		if seg.UserID == userID && seg.EndedAt == nil {
			return nil, errOpenExists
		}
	}
	f.seq++
	seg := &models.ActivitySegment{
		SegmentID: fmt.Sprintf("seg-%d", f.seq),
		UserID:    userID,
		Kind:      kind,
		StartedAt: startedAt,
	}
	f.segments[seg.SegmentID] = seg
	cp := *seg
	return &cp, nil
}

func (f *fakeStore) SetEndTime(ctx context.Context, segmentID string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	if f.endErr != nil {
		return f.endErr
	}
	seg, ok := f.segments[segmentID]
	if !ok || seg.EndedAt != nil {
		return errors.New("segment not open")
	}
	t := endedAt
	seg.EndedAt = &t
	return nil
}

func (f *fakeStore) FindOpen(ctx context.Context, userID string) (*models.ActivitySegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, seg := range f.segments {
		if seg.UserID == userID && seg.EndedAt == nil {
			cp := *seg
			return &cp, nil
		}
	}
	return nil, nil
}

// openFor 该用户的打开片段
func (f *fakeStore) openFor(userID string) []models.ActivitySegment {
	var out []models.ActivitySegment
	for _, seg := range f.sorted() {
		if seg.UserID == userID && seg.IsOpen() {
			out = append(out, seg)
		}
	}
	return out
}

// sorted 按开始时间排序的片段
func (f *fakeStore) sorted() []models.ActivitySegment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ActivitySegment, 0, len(f.segments))
	for _, s := range f.segments {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SegmentID < out[j].SegmentID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

type fakeUsers struct {
	userID string
}

func (u *fakeUsers) CurrentUser() (string, bool) {
	return u.userID, u.userID != ""
}

// stepClock 手动推进的时钟
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
