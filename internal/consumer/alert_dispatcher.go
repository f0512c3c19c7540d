package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"alfred/internal/alert"
	"alfred/internal/models"

	"go.uber.org/zap"
)

// ErrNoContacts 手动测试时没有紧急联系人
var ErrNoContacts = errors.New("no emergency contacts configured")

// ErrNoUser 手动测试时没有登录用户
var ErrNoUser = errors.New("no authenticated user")

// AlertRunner 报警状态机（alert.Sequencer）
type AlertRunner interface {
	Begin(trigger models.AlertTrigger, contacts []models.EmergencyContact) (*alert.Session, error)
	Status() models.AlertStatus
}

// ContactSource 联系人快照来源（store.ContactCache）
type ContactSource interface {
	Snapshot(ctx context.Context, userID string) ([]models.EmergencyContact, error)
}

// AlertRecorder 报警审计（repository.AlertEventRepository）
type AlertRecorder interface {
	Record(ctx context.Context, userID string, trigger models.AlertTrigger, outcome models.AlertOutcome, triggeredAt, finishedAt time.Time) (*models.AlertEvent, error)
}

// UserResolver 当前登录用户
type UserResolver interface {
	CurrentUser() (string, bool)
}

// AlertDispatcher 跌倒事件/手动测试 -> 报警会话
// 会话在后台运行，Stop 时通过 ctx 强制结束
type AlertDispatcher struct {
	runner   AlertRunner
	contacts ContactSource
	recorder AlertRecorder // 可为 nil
	users    UserResolver
	logger   *zap.Logger
	metrics  *Metrics

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAlertDispatcher 创建报警分发器
func NewAlertDispatcher(runner AlertRunner, contacts ContactSource, recorder AlertRecorder, users UserResolver, logger *zap.Logger) *AlertDispatcher {
	return &AlertDispatcher{
		runner:   runner,
		contacts: contacts,
		recorder: recorder,
		users:    users,
		logger:   logger,
		metrics:  &Metrics{StartTime: time.Now()},
	}
}

// Start 设置会话的父 context
func (d *AlertDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Stop 结束正在运行的会话并等待退出
func (d *AlertDispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

func (d *AlertDispatcher) baseContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// OnFall 跌倒事件回调
func (d *AlertDispatcher) OnFall() {
	if err := d.Dispatch(models.TriggerFall); err != nil {
		d.logger.Warn("Fall alert not started", zap.Error(err))
	}
}

// Dispatch 同步开始报警会话，倒计时与发送在后台运行
// 跌倒触发在没有用户或联系人加载失败时仍会进行本地报警
func (d *AlertDispatcher) Dispatch(trigger models.AlertTrigger) error {
	// 快速拒绝，避免加载联系人；以 Begin 的结果为准
	if st := d.runner.Status().State; st == models.AlertStateAlerting || st == models.AlertStateSending {
		d.metrics.incr(&d.metrics.AlertsRejected)
		return alert.ErrAlertInProgress
	}

	ctx := d.baseContext()
	userID, ok := d.users.CurrentUser()

	var contacts []models.EmergencyContact
	switch {
	case ok:
		loaded, err := d.contacts.Snapshot(ctx, userID)
		if err != nil {
			if trigger == models.TriggerManual {
				return err
			}
			d.logger.Error("Failed to load emergency contacts, alerting locally only",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		contacts = loaded
	case trigger == models.TriggerManual:
		return ErrNoUser
	default:
		d.logger.Warn("Fall detected without authenticated user, alerting locally only")
	}

	if trigger == models.TriggerManual && len(contacts) == 0 {
		return ErrNoContacts
	}

	triggeredAt := time.Now()
	sess, err := d.runner.Begin(trigger, contacts)
	if err != nil {
		if errors.Is(err, alert.ErrAlertInProgress) {
			d.metrics.incr(&d.metrics.AlertsRejected)
		}
		return err
	}

	d.metrics.incr(&d.metrics.AlertsTriggered)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, sess, userID, trigger, triggeredAt)
	}()
	return nil
}

func (d *AlertDispatcher) run(ctx context.Context, sess *alert.Session, userID string, trigger models.AlertTrigger, triggeredAt time.Time) {
	outcome := sess.Run(ctx)

	if outcome.Kind == models.OutcomePartial {
		d.logger.Error(outcome.Message, zap.String("error", outcome.ErrorMessage))
	} else {
		d.logger.Info(outcome.Message, zap.String("session_id", outcome.SessionID))
	}

	if d.recorder == nil || userID == "" {
		return
	}
	// 审计不受会话 context 取消影响
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := d.recorder.Record(recordCtx, userID, trigger, outcome, triggeredAt, time.Now()); err != nil {
		d.logger.Error("Failed to record alert event", zap.String("user_id", userID), zap.Error(err))
	}
}

// GetMetrics 获取监控指标
func (d *AlertDispatcher) GetMetrics() Metrics {
	return d.metrics.GetSnapshot()
}
