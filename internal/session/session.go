package session

import (
	"sync"

	"alfred/internal/observable"
)

// Session 当前登录用户持有者
// 认证本身由外部完成，这里只保存用户 ID
type Session struct {
	mu     sync.RWMutex
	userID string

	// changeMu 串行化用户切换与通知，保证观察者按切换顺序收到
	changeMu sync.Mutex
	changes  *observable.Observable[string]
}

// New 创建 Session；userID 为空表示尚未登录
func New(userID string) *Session {
	return &Session{userID: userID, changes: observable.New[string]()}
}

// Login 设置当前用户
func (s *Session) Login(userID string) {
	s.set(userID)
}

// Logout 清除当前用户
func (s *Session) Logout() {
	s.set("")
}

// set 更新用户，实际变化时同步通知观察者（空串表示登出）
func (s *Session) set(userID string) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	changed := s.userID != userID
	s.userID = userID
	s.mu.Unlock()

	if changed {
		s.changes.Notify(userID)
	}
}

// CurrentUser 返回当前用户 ID，未登录时 ok 为 false
func (s *Session) CurrentUser() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// SubscribeToUserChange 订阅用户切换；观察者中不能再调用 Login/Logout
func (s *Session) SubscribeToUserChange(fn func(userID string)) observable.Handle {
	return s.changes.Subscribe(fn)
}

// UnsubscribeFromUserChange 取消订阅
func (s *Session) UnsubscribeFromUserChange(h observable.Handle) {
	s.changes.Unsubscribe(h)
}
