package observable

import "sync"

// Handle 订阅句柄，用于取消订阅
// 零值不对应任何订阅
type Handle uint64

type entry[T any] struct {
	handle Handle
	fn     func(T)
}

// Observable 泛型发布/订阅原语
// 按注册顺序同步通知；通知时不持有锁，观察者可以在回调内再次订阅、取消或通知
type Observable[T any] struct {
	mu      sync.Mutex
	next    Handle
	entries []entry[T]
}

// New 创建 Observable
func New[T any]() *Observable[T] {
	return &Observable[T]{}
}

// Subscribe 注册观察者，返回稳定句柄
func (o *Observable[T]) Subscribe(fn func(T)) Handle {
	if fn == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.entries = append(o.entries, entry[T]{handle: o.next, fn: fn})
	return o.next
}

// Unsubscribe 按句柄移除观察者；句柄不存在时为空操作
func (o *Observable[T]) Unsubscribe(h Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.handle == h {
			// copy-on-write：正在进行的 Notify 持有旧切片
			entries := make([]entry[T], 0, len(o.entries)-1)
			entries = append(entries, o.entries[:i]...)
			entries = append(entries, o.entries[i+1:]...)
			o.entries = entries
			return
		}
	}
}

// Notify 按注册顺序通知所有观察者
func (o *Observable[T]) Notify(v T) {
	o.mu.Lock()
	entries := o.entries
	o.mu.Unlock()

	for _, e := range entries {
		e.fn(v)
	}
}

// Len 当前观察者数量
func (o *Observable[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
