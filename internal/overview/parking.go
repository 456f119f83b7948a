package overview

import (
	"sync"
	"time"
)

// Mounted はマウント済みのビュー。
type Mounted interface {
	Unmount()
}

type parked[V Mounted] struct {
	view  V
	since time.Time
}

// Parking は取得中のまま描画を終えたビューをクライアントごとに保留する。
// 次の描画は同じビューを引き継ぐので、再描画のたびに取得をやり直すことはない。
type Parking[V Mounted] struct {
	ttl time.Duration

	mu    sync.Mutex
	views map[string]parked[V]

	now func() time.Time
}

// NewParking はParkingを生成する。ttlより長く引き取られないビューはアンマウントする。
func NewParking[V Mounted](ttl time.Duration) *Parking[V] {
	return &Parking[V]{
		ttl:   ttl,
		views: make(map[string]parked[V]),
		now:   time.Now,
	}
}

// Take はkeyで保留中のビューを取り出す。なければmountで新しくマウントする。
// keyが空の場合は保留を使わない。
func (p *Parking[V]) Take(key string, mount func() V) V {
	if key == "" {
		return mount()
	}

	p.mu.Lock()
	e, ok := p.views[key]
	if ok {
		delete(p.views, key)
	}
	stale := p.sweepLocked()
	p.mu.Unlock()

	unmountAll(stale)
	if ok {
		return e.view
	}
	return mount()
}

// Park はビューをkeyで保留する。同じkeyで保留中のビューがあればそちらをアンマウントする。
// keyが空の場合はすぐにアンマウントする。
func (p *Parking[V]) Park(key string, v V) {
	if key == "" {
		v.Unmount()
		return
	}

	p.mu.Lock()
	stale := p.sweepLocked()
	if prev, ok := p.views[key]; ok {
		stale = append(stale, prev.view)
	}
	p.views[key] = parked[V]{view: v, since: p.now()}
	p.mu.Unlock()

	unmountAll(stale)
}

// Len は保留中のビューの数を返す。
func (p *Parking[V]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

// Close は保留中の全てのビューをアンマウントする。
func (p *Parking[V]) Close() {
	p.mu.Lock()
	var all []V
	for key, e := range p.views {
		all = append(all, e.view)
		delete(p.views, key)
	}
	p.mu.Unlock()

	unmountAll(all)
}

// sweepLocked はttlを過ぎたビューを取り除いて返す。p.muを保持して呼ぶこと。
func (p *Parking[V]) sweepLocked() []V {
	if p.ttl <= 0 {
		return nil
	}
	cutoff := p.now().Add(-p.ttl)
	var stale []V
	for key, e := range p.views {
		if e.since.Before(cutoff) {
			stale = append(stale, e.view)
			delete(p.views, key)
		}
	}
	return stale
}

func unmountAll[V Mounted](views []V) {
	for _, v := range views {
		v.Unmount()
	}
}
