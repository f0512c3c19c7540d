package segmenter

import (
	"context"
	"sync"
	"time"

	"alfred/internal/models"
	"alfred/internal/observable"

	"go.uber.org/zap"
)

// SegmentStore 片段持久化接口
type SegmentStore interface {
	Insert(ctx context.Context, userID string, kind models.ActivityCode, startedAt time.Time) (*models.ActivitySegment, error)
	SetEndTime(ctx context.Context, segmentID string, endedAt time.Time) error
	FindOpen(ctx context.Context, userID string) (*models.ActivitySegment, error)
}

// UserResolver 当前登录用户解析
type UserResolver interface {
	CurrentUser() (string, bool)
}

// Option Segmenter 选项
type Option func(*Segmenter)

// WithNow 替换时钟（测试用）
func WithNow(now func() time.Time) Option {
	return func(s *Segmenter) {
		s.now = now
	}
}

// Segmenter 活动片段归约器
// 将设备上报的活动码流归约为互不重叠的活动片段，并单独分发跌倒事件
type Segmenter struct {
	store  SegmentStore
	users  UserResolver
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	open *models.ActivitySegment // 当前打开的片段，仅由本实例修改

	fall *observable.Observable[struct{}]
}

// New 创建 Segmenter
func New(store SegmentStore, users UserResolver, logger *zap.Logger, opts ...Option) *Segmenter {
	s := &Segmenter{
		store:  store,
		users:  users,
		logger: logger,
		now:    time.Now,
		fall:   observable.New[struct{}](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnDeviceValue 处理一次设备上报
// 持久化失败只记录日志，不向调用方返回
func (s *Segmenter) OnDeviceValue(ctx context.Context, code models.ActivityCode) {
	if code.IsFall() {
		s.logger.Info("Fall detected")
		s.fall.Notify(struct{}{})
		return
	}
	if !code.IsPosture() {
		s.logger.Warn("Dropping unknown activity code", zap.Int("code", int(code)))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.users.CurrentUser()
	if !ok {
		s.logger.Warn("No authenticated user, skipping device value", zap.Int("code", int(code)))
		return
	}

	now := s.now()

	// 打开片段属于其他用户时视为一次切换
	if s.open != nil && s.open.UserID != userID {
		s.release(ctx, now)
	}
	if s.open == nil {
		if err := s.adopt(ctx, userID); err != nil {
			s.logger.Error("Failed to look up open activity segment, skipping device value",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
	}

	if s.open != nil && s.open.Kind == code {
		return
	}

	// 1. 先关闭上一个片段
	if s.open != nil {
		if err := s.store.SetEndTime(ctx, s.open.SegmentID, now); err != nil {
			s.logger.Error("Failed to close activity segment, aborting transition",
				zap.String("segment_id", s.open.SegmentID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("Closed activity segment",
			zap.String("segment_id", s.open.SegmentID),
			zap.Time("ended_at", now),
		)
	}

	// 2. 再创建新片段
	seg, err := s.store.Insert(ctx, userID, code, now)
	if err != nil {
		s.open = nil
		s.logger.Error("Failed to create activity segment",
			zap.String("user_id", userID),
			zap.Int("kind", int(code)),
			zap.Error(err),
		)
		return
	}
	s.open = seg

	s.logger.Info("Started activity segment",
		zap.String("segment_id", seg.SegmentID),
		zap.String("user_id", userID),
		zap.String("kind", code.String()),
	)
}

// OnUserChanged 登录用户变化时调用
// 上一用户的打开片段在切换时刻关闭，新用户的片段在下一次上报时恢复或创建
func (s *Segmenter) OnUserChanged(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open == nil || s.open.UserID == userID {
		return
	}
	s.release(ctx, s.now())
}

// release 关闭并释放打开片段，调用方持有 mu
// 关闭失败时同样释放，该行留给所属用户下次登录时恢复
func (s *Segmenter) release(ctx context.Context, at time.Time) {
	seg := s.open
	s.open = nil
	if err := s.store.SetEndTime(ctx, seg.SegmentID, at); err != nil {
		s.logger.Error("Failed to close previous user's activity segment",
			zap.String("segment_id", seg.SegmentID),
			zap.String("user_id", seg.UserID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Closed activity segment on user change",
		zap.String("segment_id", seg.SegmentID),
		zap.String("user_id", seg.UserID),
		zap.Time("ended_at", at),
	)
}

// adopt 从持久化层接管该用户仍处于打开状态的片段，调用方持有 mu
func (s *Segmenter) adopt(ctx context.Context, userID string) error {
	seg, err := s.store.FindOpen(ctx, userID)
	if err != nil {
		return err
	}
	if seg == nil || !seg.IsOpen() {
		return nil
	}
	cp := *seg
	s.open = &cp
	s.logger.Info("Resumed open activity segment",
		zap.String("segment_id", seg.SegmentID),
		zap.String("user_id", userID),
		zap.String("kind", seg.Kind.String()),
	)
	return nil
}

// OpenSegment 返回当前打开片段的副本
func (s *Segmenter) OpenSegment() (models.ActivitySegment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return models.ActivitySegment{}, false
	}
	return *s.open, true
}

// SubscribeToFall 订阅跌倒事件
func (s *Segmenter) SubscribeToFall(fn func()) observable.Handle {
	if fn == nil {
		return 0
	}
	return s.fall.Subscribe(func(struct{}) { fn() })
}

// UnsubscribeFromFall 取消跌倒事件订阅
func (s *Segmenter) UnsubscribeFromFall(h observable.Handle) {
	s.fall.Unsubscribe(h)
}
