package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/notify"
	"github.com/hitoshi/invoicedash/internal/overview"
	"github.com/hitoshi/invoicedash/internal/session"
	"github.com/hitoshi/invoicedash/internal/view"
)

// pendingViewTTL は取得中のビューをクライアントの再描画まで保留する最大時間。
const pendingViewTTL = time.Minute

// DashboardHandler は一覧画面と請求書詳細画面のHTTPハンドラー。
// ビューは取得が完了した状態を描画した時点でアンマウントする。
// 取得中のままローディング表示を返した場合は、同じクライアントの次の描画まで保留する。
type DashboardHandler struct {
	source     datasource.Source
	renderer   PageRenderer
	pages      *PageHandler
	notices    notify.Writer
	renderWait time.Duration
	logger     *slog.Logger

	lists   *overview.Parking[*overview.View]
	details *overview.Parking[*overview.DetailView]
}

// NewDashboardHandler はDashboardHandlerを生成する。
// renderWaitはデータ取得の完了を待つ最大時間で、超えた場合はローディング表示を返す。
func NewDashboardHandler(
	source datasource.Source,
	renderer PageRenderer,
	notices notify.Writer,
	renderWait time.Duration,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		source:     source,
		renderer:   renderer,
		pages:      NewPageHandler(renderer),
		notices:    notices,
		renderWait: renderWait,
		logger:     logger,
		lists:      overview.NewParking[*overview.View](pendingViewTTL),
		details:    overview.NewParking[*overview.DetailView](pendingViewTTL),
	}
}

// Dashboard は請求書一覧とアクティビティを表示する。
// GET /dashboard
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	v := h.takeList(r, key)

	ctx, cancel := context.WithTimeout(r.Context(), h.renderWait)
	defer cancel()
	snap := v.Await(ctx)

	if snap.Phase == overview.Loading {
		h.lists.Park(key, v)
	} else {
		v.Unmount()
	}

	h.logFailure(snap.Phase, snap.Err, "overview")
	h.renderDashboard(w, r, snap, nil)
}

// InvoiceDetails は一覧の上に請求書詳細モーダルを開いた状態で表示する。
// GET /invoice-details/{id}
//
// 表示する請求書は一覧で取得したものから探す。見つからなければ404を返す。
func (h *DashboardHandler) InvoiceDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	key := clientKey(r)
	list := h.takeList(r, key)
	detail := h.details.Take(key, func() *overview.DetailView {
		return overview.MountDetail(context.WithoutCancel(r.Context()), h.source)
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.renderWait)
	defer cancel()
	snap := list.Await(ctx)
	h.logFailure(snap.Phase, snap.Err, "overview")

	if snap.Phase != overview.Loaded {
		h.release(key, snap.Phase == overview.Loading, list, detail)
		h.renderDashboard(w, r, snap, nil)
		return
	}

	invoice, ok := overview.FindInvoice(snap.Invoices, id)
	if !ok {
		h.release(key, false, list, detail)
		h.pages.NotFound(w, r)
		return
	}

	detailSnap := detail.Await(ctx)
	h.logFailure(detailSnap.Phase, detailSnap.Err, "invoice_detail")
	h.release(key, detailSnap.Phase == overview.Loading, list, detail)
	h.renderDashboard(w, r, snap, view.NewDetailModal(invoice, detailSnap))
}

// takeList は保留中の一覧ビューを引き継ぐか、新しくマウントする。
// 取得はリクエストの終了ではキャンセルしない。
func (h *DashboardHandler) takeList(r *http.Request, key string) *overview.View {
	return h.lists.Take(key, func() *overview.View {
		return overview.Mount(context.WithoutCancel(r.Context()), h.source)
	})
}

// release はローディング表示を返した場合は両方のビューを保留し、それ以外はアンマウントする。
// 一覧が取得済みでも詳細が取得中なら一覧も保留し、次の描画で取得し直さないようにする。
func (h *DashboardHandler) release(key string, pending bool, list *overview.View, detail *overview.DetailView) {
	if pending {
		h.lists.Park(key, list)
		h.details.Park(key, detail)
		return
	}
	list.Unmount()
	detail.Unmount()
}

// clientKey はビューを保留するためのキーを返す。クライアントIDがなければ空文字列。
func clientKey(r *http.Request) string {
	id, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		return ""
	}
	return id
}

func (h *DashboardHandler) renderDashboard(w http.ResponseWriter, r *http.Request, snap overview.Snapshot, modal *view.DetailModal) {
	loading := snap.Phase == overview.Loading || (modal != nil && modal.Loading())

	var base view.Base
	if loading {
		// 取得完了後の描画で通知を表示するため、ここでは消費しない
		w.Header().Set("Refresh", "1")
		w.Header().Set("Cache-Control", "no-store")
		base = view.Base{Title: "Dashboard", CSRFToken: middleware.CSRFTokenFromContext(r.Context())}
	} else {
		base = pageBase(w, r, h.notices, "Dashboard")
	}

	page := view.NewDashboardPage(base, session.FromContext(r.Context()).Principal, snap)
	page.Detail = modal
	h.renderer.Render(w, http.StatusOK, view.PageDashboard, page)
}

func (h *DashboardHandler) logFailure(phase overview.Phase, err error, viewName string) {
	if phase != overview.Failed || err == nil {
		return
	}
	h.logger.Warn("view data fetch failed",
		slog.String("view", viewName),
		slog.String("error", err.Error()),
	)
}
