// Package session はブラウザクライアントごとのセッション状態を保持する。
// 状態は未確定・空・プリンシパルありの3値で、IdPからの通知だけが状態を書き換える。
package session

import (
	"context"
	"sync"

	"github.com/hitoshi/invoicedash/internal/model"
)

// Status はセッション状態の種別。
type Status int

const (
	// Undetermined はIdPからまだ通知を受けていない状態。
	Undetermined Status = iota
	// Empty はサインインしていない状態。
	Empty
	// Populated はプリンシパルが確定している状態。
	Populated
)

// String は状態名を返す。
func (s Status) String() string {
	switch s {
	case Empty:
		return "empty"
	case Populated:
		return "populated"
	default:
		return "undetermined"
	}
}

// State はセッション状態のスナップショット。
// StatusがPopulatedの場合に限りPrincipalは非nil。
type State struct {
	Status    Status
	Principal *model.Principal
}

// IsDetermined は状態が確定しているかどうかを返す。
func (s State) IsDetermined() bool {
	return s.Status != Undetermined
}

// stateOf はIdPの通知内容を状態に変換する。
func stateOf(p *model.Principal) State {
	if p == nil {
		return State{Status: Empty}
	}
	return State{Status: Populated, Principal: p}
}

// Subscriber はセッション変更を購読できるIdPのインターフェース。
type Subscriber interface {
	Subscribe(clientID string, fn func(*model.Principal)) (unsubscribe func())
}

// Holder は1つのブラウザクライアントのセッション状態を保持する。
// 書き込みはIdPのコールバックのみで、読み取りは任意のリクエストから並行に行われる。
type Holder struct {
	clientID string

	mu         sync.RWMutex
	state      State
	determined chan struct{}

	unsubscribe func()
	closeOnce   sync.Once
}

// NewHolder はHolderを生成し、IdPへの購読を開始する。
func NewHolder(clientID string, subscriber Subscriber) *Holder {
	h := &Holder{
		clientID:   clientID,
		determined: make(chan struct{}),
	}
	h.unsubscribe = subscriber.Subscribe(clientID, h.update)
	return h
}

// ClientID はHolderが対応するクライアントIDを返す。
func (h *Holder) ClientID() string {
	return h.clientID
}

// Current は現在のセッション状態を返す。
func (h *Holder) Current() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Wait は状態が確定するかctxが終了するまで待ち、その時点の状態を返す。
func (h *Holder) Wait(ctx context.Context) State {
	select {
	case <-h.determined:
	case <-ctx.Done():
	}
	return h.Current()
}

// Close は購読を解除する。複数回呼び出しても解除は1度だけ行われる。
func (h *Holder) Close() {
	h.closeOnce.Do(func() {
		if h.unsubscribe != nil {
			h.unsubscribe()
		}
	})
}

func (h *Holder) update(p *model.Principal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.IsDetermined() {
		close(h.determined)
	}
	h.state = stateOf(p)
}
