// Package overview は請求書一覧ビューと詳細ビューのデータ取得を管理する。
// ビューはマウント時に1度だけ取得を開始し、Loading から Loaded か Failed のどちらかへ遷移する。
package overview

import (
	"context"
	"sync"

	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/model"
)

// Phase はビューのデータ取得段階。
type Phase int

const (
	// Loading は取得中。
	Loading Phase = iota
	// Loaded は全ての取得が成功した状態。
	Loaded
	// Failed はいずれかの取得が失敗した状態。
	Failed
)

// String は段階名を返す。
func (p Phase) String() string {
	switch p {
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "loading"
	}
}

// FailureMessage は取得失敗時に表示するメッセージ。
const FailureMessage = "Failed to load data"

// Snapshot はビューの状態のスナップショット。
// Loaded以外ではInvoicesとActivitiesは常に空。
type Snapshot struct {
	Phase      Phase
	Invoices   []model.Invoice
	Activities []model.Activity
	Err        error
}

// View は1回のマウントに対応する一覧ビューのインスタンス。
type View struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	phase      Phase
	invoices   []model.Invoice
	activities []model.Activity
	err        error
	unmounted  bool
}

// Mount は一覧ビューをマウントし、請求書とアクティビティの取得を並行に開始する。
// 片方が失敗した時点でもう片方はキャンセルされ、ビューはFailedになる。
func Mount(ctx context.Context, source datasource.Source) *View {
	ctx, cancel := context.WithCancel(ctx)
	v := &View{cancel: cancel, done: make(chan struct{})}

	var (
		wg         sync.WaitGroup
		invoices   []model.Invoice
		activities []model.Activity
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := source.ListInvoices(ctx)
		if err != nil {
			v.fail(err)
			return
		}
		invoices = result
	}()
	go func() {
		defer wg.Done()
		result, err := source.ListActivities(ctx)
		if err != nil {
			v.fail(err)
			return
		}
		activities = result
	}()

	go func() {
		wg.Wait()
		v.settle(invoices, activities)
		cancel()
		close(v.done)
	}()

	return v
}

// fail は最初の失敗を記録し、残りの取得をキャンセルする。
func (v *View) fail(err error) {
	v.mu.Lock()
	if v.phase == Loading && !v.unmounted {
		v.phase = Failed
		v.err = err
	}
	v.mu.Unlock()
	v.cancel()
}

func (v *View) settle(invoices []model.Invoice, activities []model.Activity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != Loading || v.unmounted {
		return
	}
	v.phase = Loaded
	v.invoices = invoices
	v.activities = activities
}

// Snapshot は現在の状態を返す。
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != Loaded {
		return Snapshot{Phase: v.phase, Err: v.err}
	}
	return Snapshot{Phase: Loaded, Invoices: v.invoices, Activities: v.activities}
}

// Await は取得が完了するかctxが終了するまで待ち、その時点の状態を返す。
// ctxが先に終了した場合はLoadingのスナップショットを返す。
func (v *View) Await(ctx context.Context) Snapshot {
	select {
	case <-v.done:
	case <-ctx.Done():
	}
	return v.Snapshot()
}

// Done は取得が完了したときに閉じられるチャネルを返す。
func (v *View) Done() <-chan struct{} {
	return v.done
}

// Unmount は進行中の取得をキャンセルする。以降に届いた結果は破棄される。
func (v *View) Unmount() {
	v.mu.Lock()
	v.unmounted = true
	v.mu.Unlock()
	v.cancel()
}

// Run は同じ日付グループに属する連続した請求書のまとまり。
type Run struct {
	Label    string
	Invoices []model.Invoice
}

// Runs は請求書を連続する日付グループごとにまとめる。
// 先頭の請求書と、直前の請求書とラベルが異なる請求書の前に見出しが入る。
// 離れた位置にある同じラベルは別のまとまりになる。
func Runs(invoices []model.Invoice) []Run {
	var runs []Run
	for i, inv := range invoices {
		if i == 0 || invoices[i-1].DateGroup != inv.DateGroup {
			runs = append(runs, Run{Label: inv.DateGroup})
		}
		last := &runs[len(runs)-1]
		last.Invoices = append(last.Invoices, inv)
	}
	return runs
}

// FindInvoice はIDに一致する請求書を返す。
func FindInvoice(invoices []model.Invoice, id string) (model.Invoice, bool) {
	for _, inv := range invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return model.Invoice{}, false
}
