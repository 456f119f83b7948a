package session

import (
	"sync"
	"time"
)

type entry struct {
	holder     *Holder
	lastAccess time.Time
}

// Registry はクライアントIDごとのHolderを管理する。
// Holderは最初のリクエストで生成され、一定時間アクセスがなければ破棄される。
type Registry struct {
	subscriber Subscriber

	mu      sync.Mutex
	holders map[string]*entry
	closed  bool

	now func() time.Time
}

// NewRegistry はRegistryを生成する。
func NewRegistry(subscriber Subscriber) *Registry {
	return &Registry{
		subscriber: subscriber,
		holders:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Holder はクライアントIDに対応するHolderを返す。存在しなければ生成する。
func (r *Registry) Holder(clientID string) *Holder {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.holders[clientID]; ok {
		e.lastAccess = r.now()
		return e.holder
	}

	h := NewHolder(clientID, r.subscriber)
	if r.closed {
		// 停止後は登録せず、購読もすぐに解除する
		h.Close()
		return h
	}
	r.holders[clientID] = &entry{holder: h, lastAccess: r.now()}
	return h
}

// EvictIdle はttlより長くアクセスのないHolderを破棄し、破棄した件数を返す。
func (r *Registry) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var evicted []*Holder
	for id, e := range r.holders {
		if e.lastAccess.Before(cutoff) {
			evicted = append(evicted, e.holder)
			delete(r.holders, id)
		}
	}
	r.mu.Unlock()

	for _, h := range evicted {
		h.Close()
	}
	return len(evicted)
}

// Len は保持しているHolderの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holders)
}

// Close は全てのHolderを破棄する。
func (r *Registry) Close() {
	r.mu.Lock()
	holders := r.holders
	r.holders = make(map[string]*entry)
	r.closed = true
	r.mu.Unlock()

	for _, e := range holders {
		e.holder.Close()
	}
}
