package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"alfred/internal/observable"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// 变更表名
const (
	TableMovementData      = "movement_data"
	TableEmergencyContacts = "emergency_contacts"
)

// OperationResync 连接中断后重连，期间的通知可能已丢失
const OperationResync = "RESYNC"

// ChangeEvent 表变更通知
type ChangeEvent struct {
	Table     string `json:"table"`
	Operation string `json:"operation"` // INSERT / UPDATE / DELETE / RESYNC
	UserID    string `json:"user_id"`
}

// ChangeFeed 基于 LISTEN/NOTIFY 的变更订阅
type ChangeFeed struct {
	dsn    string
	logger *zap.Logger

	mu       sync.Mutex
	tables   map[string]*observable.Observable[ChangeEvent]
	listener *pq.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewChangeFeed 创建变更订阅
func NewChangeFeed(dsn string, logger *zap.Logger) *ChangeFeed {
	return &ChangeFeed{
		dsn:    dsn,
		logger: logger,
		tables: make(map[string]*observable.Observable[ChangeEvent]),
	}
}

func (f *ChangeFeed) table(name string) *observable.Observable[ChangeEvent] {
	f.mu.Lock()
	defer f.mu.Unlock()
	obs, ok := f.tables[name]
	if !ok {
		obs = observable.New[ChangeEvent]()
		f.tables[name] = obs
	}
	return obs
}

// Subscribe 订阅某张表的变更
func (f *ChangeFeed) Subscribe(table string, fn func(ChangeEvent)) observable.Handle {
	return f.table(table).Subscribe(fn)
}

// Unsubscribe 取消订阅
func (f *ChangeFeed) Unsubscribe(table string, h observable.Handle) {
	f.table(table).Unsubscribe(h)
}

// Start 开始监听
func (f *ChangeFeed) Start(ctx context.Context) error {
	listener := pq.NewListener(f.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			f.logger.Warn("Change feed connection attempt failed", zap.Error(err))
		case pq.ListenerEventDisconnected:
			f.logger.Warn("Change feed disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			f.logger.Info("Change feed reconnected")
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.listener = listener
	f.cancel = cancel
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run(ctx, listener)

	f.logger.Info("Change feed started", zap.String("channel", ChangeChannel))
	return nil
}

func (f *ChangeFeed) run(ctx context.Context, listener *pq.Listener) {
	defer f.wg.Done()

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// 重连后 pq 发送 nil
				f.resync()
				continue
			}
			f.dispatch(n.Extra)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				f.logger.Warn("Change feed ping failed", zap.Error(err))
			}
		}
	}
}

// dispatch 解析通知并分发给对应表的订阅者
func (f *ChangeFeed) dispatch(payload string) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		f.logger.Warn("Invalid change notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	if ev.Table == "" {
		f.logger.Warn("Change notification missing table", zap.String("payload", payload))
		return
	}
	f.table(ev.Table).Notify(ev)
}

func (f *ChangeFeed) resync() {
	f.mu.Lock()
	tables := make(map[string]*observable.Observable[ChangeEvent], len(f.tables))
	for name, obs := range f.tables {
		tables[name] = obs
	}
	f.mu.Unlock()

	for name, obs := range tables {
		obs.Notify(ChangeEvent{Table: name, Operation: OperationResync})
	}
}

// Stop 停止监听
func (f *ChangeFeed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	listener := f.listener
	f.cancel = nil
	f.listener = nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
	if err := listener.Close(); err != nil {
		f.logger.Warn("Failed to close change feed listener", zap.Error(err))
	}
}
