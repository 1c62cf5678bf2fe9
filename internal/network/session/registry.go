package session

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Registry 是按会话 ID 索引的在线会话表。
// 只在会话建立和退出时加锁，与准入计数互不依赖。
type Registry struct {
	mu   sync.RWMutex
	byID map[uint64]Session
}

var _ SessionManager = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uint64]Session)}
}

func (r *Registry) Register(sess Session) error {
	if sess == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[sess.ID()]; dup {
		return errors.Newf("session %d already registered", sess.ID())
	}
	r.byID[sess.ID()] = sess
	return nil
}

func (r *Registry) Unregister(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return errors.Newf("session %d not registered", id)
	}
	delete(r.byID, id)
	return nil
}

// Range 在快照上回调 fn，回调期间不持锁，fn 内可以关闭会话。
func (r *Registry) Range(fn func(sess Session) bool) {
	if fn == nil {
		return
	}
	r.mu.RLock()
	snapshot := lo.Values(r.byID)
	r.mu.RUnlock()

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
