package practice

import (
	"context"
	"sync"

	"github.com/pavelanni/studyhub/internal/kv"
)

// slots serializes load-merge-save cycles per key. Several logical writers
// (submission, wrong-question hook, migration) touch the same slots, so no
// slot is ever written from a stale read.
type slots struct {
	kv    kv.Store
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSlots(store kv.Store) *slots {
	return &slots{kv: store, locks: make(map[string]*sync.Mutex)}
}

func (s *slots) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// load reads key into a fresh T. Absent keys yield the zero value.
func load[T any](ctx context.Context, s *slots, key string) (T, error) {
	var v T
	_, err := kv.GetJSON(ctx, s.kv, key, &v)
	return v, err
}

// update runs fn on the current value of key while holding the key lock and
// saves the result when fn reports a change.
func update[T any](ctx context.Context, s *slots, key string, fn func(v *T) (bool, error)) (T, error) {
	unlock := s.lock(key)
	defer unlock()

	var v T
	if _, err := kv.GetJSON(ctx, s.kv, key, &v); err != nil {
		return v, err
	}
	changed, err := fn(&v)
	if err != nil || !changed {
		return v, err
	}
	return v, kv.SetJSON(ctx, s.kv, key, v)
}

func (s *slots) delete(ctx context.Context, key string) error {
	unlock := s.lock(key)
	defer unlock()
	return s.kv.Delete(ctx, key)
}
