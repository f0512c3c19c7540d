package store

import (
	"context"
	"sync"
	"time"
)

// fakeKVStore 仅用于单元测试（内存 KV + TTL）
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
	err  error
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{
		data: make(map[string]fakeKVItem),
	}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	item, ok := f.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

func (f *fakeKVStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
