package overview

import (
	"context"
	"sync"

	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/model"
)

// DetailSnapshot は詳細ビューの状態のスナップショット。
type DetailSnapshot struct {
	Phase      Phase
	Activities []model.Activity
	Err        error
}

// DetailView は請求書詳細モーダルのインスタンス。
type DetailView struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	phase      Phase
	activities []model.Activity
	err        error
	unmounted  bool
}

// MountDetail は詳細ビューをマウントし、アクティビティの取得を開始する。
// 取得は請求書IDに依存せず、一覧と同じ /activities を参照する。
func MountDetail(ctx context.Context, source datasource.Source) *DetailView {
	ctx, cancel := context.WithCancel(ctx)
	v := &DetailView{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(v.done)
		defer cancel()

		activities, err := source.ListActivities(ctx)

		v.mu.Lock()
		defer v.mu.Unlock()
		if v.unmounted {
			return
		}
		if err != nil {
			v.phase = Failed
			v.err = err
			return
		}
		v.phase = Loaded
		v.activities = activities
	}()

	return v
}

// Snapshot は現在の状態を返す。
func (v *DetailView) Snapshot() DetailSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != Loaded {
		return DetailSnapshot{Phase: v.phase, Err: v.err}
	}
	return DetailSnapshot{Phase: Loaded, Activities: v.activities}
}

// Await は取得が完了するかctxが終了するまで待ち、その時点の状態を返す。
func (v *DetailView) Await(ctx context.Context) DetailSnapshot {
	select {
	case <-v.done:
	case <-ctx.Done():
	}
	return v.Snapshot()
}

// Done は取得が完了したときに閉じられるチャネルを返す。
func (v *DetailView) Done() <-chan struct{} {
	return v.done
}

// Unmount は進行中の取得をキャンセルする。以降に届いた結果は破棄される。
func (v *DetailView) Unmount() {
	v.mu.Lock()
	v.unmounted = true
	v.mu.Unlock()
	v.cancel()
}

var (
	_ Mounted = (*View)(nil)
	_ Mounted = (*DetailView)(nil)
)
