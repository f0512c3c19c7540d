package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"alfred/internal/messaging"
	"alfred/internal/models"
	"alfred/internal/observable"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlertInProgress 已有报警会话处于倒计时或发送阶段
var ErrAlertInProgress = errors.New("emergency alert already in progress")

// Config 报警会话配置
type Config struct {
	CountdownSeconds int             // 取消窗口，默认 10
	TickInterval     time.Duration   // 倒计时步长，默认 1s
	HapticInterval   time.Duration   // 振动重复间隔，默认 1s
	HapticPattern    []time.Duration // 默认 [500ms, 500ms]
}

func (c *Config) applyDefaults() {
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.HapticInterval <= 0 {
		c.HapticInterval = time.Second
	}
	if len(c.HapticPattern) == 0 {
		c.HapticPattern = DefaultHapticPattern
	}
}

// alertSession 单次报警会话，仅由 Sequencer 持有
type alertSession struct {
	id        string
	trigger   models.AlertTrigger
	contacts  []models.EmergencyContact
	cancelled bool
	cancelCh  chan struct{}

	stopOnce   sync.Once
	hapticStop chan struct{}
	hapticDone chan struct{}
}

// Sequencer 紧急报警状态机
// Idle -> Alerting -> (Cancelled | Sending -> Completed) -> Idle
type Sequencer struct {
	cfg     Config
	alerter LocalAlerter
	sender  messaging.Sender
	logger  *zap.Logger

	mu        sync.Mutex
	state     models.AlertState
	countdown int
	current   *alertSession
	last      *models.AlertOutcome

	countdownObs *observable.Observable[int]
	stateObs     *observable.Observable[models.AlertStatus]
}

// NewSequencer 创建报警状态机
func NewSequencer(cfg Config, alerter LocalAlerter, sender messaging.Sender, logger *zap.Logger) *Sequencer {
	cfg.applyDefaults()
	if alerter == nil {
		alerter = NopAlerter{}
	}
	return &Sequencer{
		cfg:          cfg,
		alerter:      alerter,
		sender:       sender,
		logger:       logger,
		state:        models.AlertStateIdle,
		countdownObs: observable.New[int](),
		stateObs:     observable.New[models.AlertStatus](),
	}
}

// Session 已由 Begin 开始的报警会话
type Session struct {
	seq  *Sequencer
	sess *alertSession
}

// ID 会话 ID
func (p *Session) ID() string {
	return p.sess.id
}

// Start 开始一次报警会话，阻塞直到会话结束
// 短信发送失败不作为 error 返回，体现在 Outcome 中
func (s *Sequencer) Start(ctx context.Context, trigger models.AlertTrigger, contacts []models.EmergencyContact) (models.AlertOutcome, error) {
	p, err := s.Begin(trigger, contacts)
	if err != nil {
		return models.AlertOutcome{}, err
	}
	return p.Run(ctx), nil
}

// Begin 同步进入 Alerting 并启动本地报警，返回后 Status 即反映该会话
// 已有会话时返回 ErrAlertInProgress；成功时调用方必须调用一次 Run
func (s *Sequencer) Begin(trigger models.AlertTrigger, contacts []models.EmergencyContact) (*Session, error) {
	sess := &alertSession{
		id:         uuid.New().String(),
		trigger:    trigger,
		contacts:   append([]models.EmergencyContact(nil), contacts...),
		cancelCh:   make(chan struct{}),
		hapticStop: make(chan struct{}),
		hapticDone: make(chan struct{}),
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrAlertInProgress
	}
	s.current = sess
	s.state = models.AlertStateAlerting
	s.countdown = s.cfg.CountdownSeconds
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Warn("Emergency alert started",
		zap.String("session_id", sess.id),
		zap.String("trigger", string(trigger)),
		zap.Int("contacts", len(sess.contacts)),
		zap.Int("countdown", s.cfg.CountdownSeconds),
	)

	s.startLocalAlerting(sess)

	s.stateObs.Notify(status)
	s.countdownObs.Notify(s.cfg.CountdownSeconds)

	return &Session{seq: s, sess: sess}, nil
}

// Run 倒计时并发送，阻塞直到会话结束
func (p *Session) Run(ctx context.Context) models.AlertOutcome {
	s, sess := p.seq, p.sess
	defer s.stopLocalAlerting(sess)

	if dismissed, ok := s.runCountdown(ctx, sess); !ok {
		return s.finish(sess, models.AlertStateCancelled, buildCancelledOutcome(sess.id, len(sess.contacts), dismissed))
	}

	// 进入发送阶段前停止本地报警
	s.stopLocalAlerting(sess)
	s.publishState()

	// 发送阶段不受取消影响
	outcome := s.sendAll(context.WithoutCancel(ctx), sess)
	return s.finish(sess, models.AlertStateCompleted, outcome)
}

// runCountdown 倒计时；返回 ok=false 表示会话被取消
func (s *Sequencer) runCountdown(ctx context.Context, sess *alertSession) (dismissed bool, ok bool) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.cancelCh:
			return false, false
		case <-ctx.Done():
			s.mu.Lock()
			if sess.cancelled {
				s.mu.Unlock()
				return false, false
			}
			sess.cancelled = true
			s.mu.Unlock()
			s.logger.Warn("Emergency alert dismissed", zap.String("session_id", sess.id), zap.Error(ctx.Err()))
			return true, false
		case <-ticker.C:
			s.mu.Lock()
			if sess.cancelled {
				s.mu.Unlock()
				return false, false
			}
			s.countdown--
			remaining := s.countdown
			if remaining == 0 {
				// 到达 0 即进入发送阶段，之后不可取消
				s.state = models.AlertStateSending
			}
			s.mu.Unlock()

			s.countdownObs.Notify(remaining)
			if remaining == 0 {
				return false, true
			}
		}
	}
}

// sendAll 按快照顺序逐个发送
func (s *Sequencer) sendAll(ctx context.Context, sess *alertSession) models.AlertOutcome {
	successes := 0
	var failed []models.FailedContact

	for _, c := range sess.contacts {
		res := s.sender.Send(ctx, NotificationText, c.PhoneNumber)
		if res.Success {
			successes++
			continue
		}
		failed = append(failed, models.FailedContact{Name: c.FullName(), PhoneNumber: c.PhoneNumber})
		s.logger.Warn("Emergency SMS failed",
			zap.String("session_id", sess.id),
			zap.String("contact", c.Descriptor()),
			zap.String("error", res.Error),
		)
	}

	return buildCompletedOutcome(sess.id, successes, len(sess.contacts), failed)
}

// finish 通知终态并回到 Idle
func (s *Sequencer) finish(sess *alertSession, terminal models.AlertState, outcome models.AlertOutcome) models.AlertOutcome {
	s.stopLocalAlerting(sess)

	s.mu.Lock()
	s.state = terminal
	s.last = &outcome
	terminalStatus := s.statusLocked()
	s.mu.Unlock()
	s.stateObs.Notify(terminalStatus)

	s.mu.Lock()
	s.current = nil
	s.state = models.AlertStateIdle
	s.countdown = 0
	idle := s.statusLocked()
	s.mu.Unlock()
	s.stateObs.Notify(idle)

	s.logger.Info("Emergency alert finished",
		zap.String("session_id", sess.id),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("successes", outcome.Successes),
		zap.Int("total", outcome.Total),
		zap.Bool("dismissed", outcome.Dismissed),
	)
	return outcome
}

// Cancel 用户取消；仅在倒计时阶段有效
// 返回时本地报警已停止
func (s *Sequencer) Cancel() bool {
	s.mu.Lock()
	sess := s.current
	if sess == nil || s.state != models.AlertStateAlerting || sess.cancelled {
		s.mu.Unlock()
		return false
	}
	sess.cancelled = true
	close(sess.cancelCh)
	s.mu.Unlock()

	s.stopLocalAlerting(sess)
	s.logger.Info("Emergency alert cancelled by user", zap.String("session_id", sess.id))
	return true
}

// startLocalAlerting 播放提示音并启动振动定时器
func (s *Sequencer) startLocalAlerting(sess *alertSession) {
	if err := s.alerter.PlayTone(); err != nil {
		s.logger.Error("Failed to play alert tone", zap.Error(err))
	}

	go func() {
		defer close(sess.hapticDone)
		ticker := time.NewTicker(s.cfg.HapticInterval)
		defer ticker.Stop()

		s.vibrate()
		for {
			select {
			case <-sess.hapticStop:
				return
			case <-ticker.C:
				s.vibrate()
			}
		}
	}()
}

func (s *Sequencer) vibrate() {
	if err := s.alerter.Vibrate(s.cfg.HapticPattern); err != nil {
		s.logger.Debug("Haptic pulse failed", zap.Error(err))
	}
}

// stopLocalAlerting 所有退出路径共用的清理，每个会话只执行一次
func (s *Sequencer) stopLocalAlerting(sess *alertSession) {
	sess.stopOnce.Do(func() {
		close(sess.hapticStop)
		<-sess.hapticDone

		if err := s.alerter.PauseTone(); err != nil {
			s.logger.Error("Failed to pause alert tone", zap.Error(err))
		}
		if err := s.alerter.ResetTone(); err != nil {
			s.logger.Error("Failed to reset alert tone", zap.Error(err))
		}
		if err := s.alerter.StopVibration(); err != nil {
			s.logger.Error("Failed to stop vibration", zap.Error(err))
		}
	})
}

func (s *Sequencer) publishState() {
	s.mu.Lock()
	status := s.statusLocked()
	s.mu.Unlock()
	s.stateObs.Notify(status)
}

func (s *Sequencer) statusLocked() models.AlertStatus {
	st := models.AlertStatus{
		State:     s.state,
		Countdown: s.countdown,
		UpdatedAt: time.Now(),
	}
	if s.current != nil {
		st.SessionID = s.current.id
		st.Trigger = s.current.trigger
	}
	return st
}

// Status 当前状态快照
func (s *Sequencer) Status() models.AlertStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// LastOutcome 最近一次会话结果
func (s *Sequencer) LastOutcome() (models.AlertOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.AlertOutcome{}, false
	}
	return *s.last, true
}

// SubscribeCountdown 订阅倒计时
func (s *Sequencer) SubscribeCountdown(fn func(remaining int)) observable.Handle {
	return s.countdownObs.Subscribe(fn)
}

// UnsubscribeCountdown 取消倒计时订阅
func (s *Sequencer) UnsubscribeCountdown(h observable.Handle) {
	s.countdownObs.Unsubscribe(h)
}

// SubscribeState 订阅状态变化
func (s *Sequencer) SubscribeState(fn func(models.AlertStatus)) observable.Handle {
	return s.stateObs.Subscribe(fn)
}

// UnsubscribeState 取消状态订阅
func (s *Sequencer) UnsubscribeState(h observable.Handle) {
	s.stateObs.Unsubscribe(h)
}
