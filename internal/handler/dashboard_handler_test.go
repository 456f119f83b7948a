package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/notify"
	"github.com/hitoshi/invoicedash/internal/overview"
	"github.com/hitoshi/invoicedash/internal/session"
)

func newTestDashboardHandler(t *testing.T, source datasource.Source, wait time.Duration) *DashboardHandler {
	t.Helper()
	return NewDashboardHandler(source, newTestRenderer(t), notify.Writer{}, wait, discardLogger())
}

func signedInRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	state := session.State{Status: session.Populated, Principal: &model.Principal{ID: "uid-1", DisplayName: "Jane Doe"}}
	return req.WithContext(session.NewContext(req.Context(), state))
}

func detailRequest(id string) *http.Request {
	req := signedInRequest("/invoice-details/" + id)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDashboardHandler_Dashboard_Loaded(t *testing.T) {
	source := &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			return sampleInvoices(), nil
		},
		listActivitiesFn: func(ctx context.Context) ([]model.Activity, error) {
			return sampleActivities(), nil
		},
	}
	h := newTestDashboardHandler(t, source, time.Second)

	w := httptest.NewRecorder()
	h.Dashboard(w, signedInRequest("/dashboard"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Refresh") != "" {
		t.Error("settled page should not refresh")
	}

	doc := parseHTML(t, w.Body.String())
	if got := len(findByClass(doc, "invoice-row")); got != 3 {
		t.Errorf("invoice rows = %d, want 3", got)
	}
	// [Oct, Oct, Nov] は見出し2つ
	if got := len(findByClass(doc, "date-group")); got != 2 {
		t.Errorf("date group headers = %d, want 2", got)
	}
	if got := len(findByClass(doc, "activity")); got != 1 {
		t.Errorf("activities = %d, want 1", got)
	}
	if len(findByClass(doc, "loading")) != 0 || len(findByClass(doc, "load-error")) != 0 {
		t.Error("loaded page should show neither loading nor failure")
	}
	if len(findByClass(doc, "modal")) != 0 {
		t.Error("dashboard should not open the detail modal")
	}
}

// TestDashboardHandler_Dashboard_EmptyCollections は空配列でも正常に表示されることを検証する。
func TestDashboardHandler_Dashboard_EmptyCollections(t *testing.T) {
	h := newTestDashboardHandler(t, &mockSource{}, time.Second)

	w := httptest.NewRecorder()
	h.Dashboard(w, signedInRequest("/dashboard"))

	doc := parseHTML(t, w.Body.String())
	if got := len(findByClass(doc, "invoice-row")); got != 0 {
		t.Errorf("invoice rows = %d, want 0", got)
	}
	if len(findByClass(doc, "load-error")) != 0 {
		t.Error("failure message should not be shown")
	}
	if len(findByClass(doc, "loading")) != 0 {
		t.Error("loading indicator should not be shown")
	}
	if len(findByClass(doc, "recent-invoices")) != 1 {
		t.Error("dashboard body should be rendered")
	}
}

func TestDashboardHandler_Dashboard_FetchFailure(t *testing.T) {
	source := &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			return nil, datasource.ErrFetchFailed
		},
		listActivitiesFn: func(ctx context.Context) ([]model.Activity, error) {
			return sampleActivities(), nil
		},
	}
	h := newTestDashboardHandler(t, source, time.Second)

	w := httptest.NewRecorder()
	h.Dashboard(w, signedInRequest("/dashboard"))

	doc := parseHTML(t, w.Body.String())
	failures := findByClass(doc, "load-error")
	if len(failures) != 1 || textOf(failures[0]) != overview.FailureMessage {
		t.Fatalf("failure message should be %q", overview.FailureMessage)
	}
	if len(findByClass(doc, "loading")) != 0 {
		t.Error("loading indicator should not be shown with the failure")
	}
	if len(findByClass(doc, "activity")) != 0 {
		t.Error("partial data should not be shown")
	}
}

func TestDashboardHandler_Dashboard_SlowSourceRendersLoading(t *testing.T) {
	var cancelled atomic.Bool
	source := &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			<-ctx.Done()
			cancelled.Store(true)
			return nil, ctx.Err()
		},
	}
	h := newTestDashboardHandler(t, source, 20*time.Millisecond)

	w := httptest.NewRecorder()
	h.Dashboard(w, signedInRequest("/dashboard"))

	if w.Header().Get("Refresh") != "1" {
		t.Errorf("Refresh = %q, want %q", w.Header().Get("Refresh"), "1")
	}
	doc := parseHTML(t, w.Body.String())
	if len(findByClass(doc, "loading")) != 1 {
		t.Error("loading indicator should be shown")
	}

	// アンマウントで取得はキャンセルされる
	deadline := time.Now().Add(time.Second)
	for !cancelled.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !cancelled.Load() {
		t.Error("in-flight fetch should be cancelled after the response")
	}
}

// withClient はクライアントIDを注入したリクエストを返す。
func withClient(req *http.Request, clientID string) *http.Request {
	return req.WithContext(middleware.ContextWithClientID(req.Context(), clientID))
}

// slowSource は各取得にlatencyかかるデータソースを返す。取得回数はcallsに記録する。
func slowSource(invoiceLatency, activityLatency time.Duration, invoiceCalls, activityCalls *atomic.Int32) *mockSource {
	wait := func(ctx context.Context, d time.Duration) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			invoiceCalls.Add(1)
			if err := wait(ctx, invoiceLatency); err != nil {
				return nil, err
			}
			return sampleInvoices(), nil
		},
		listActivitiesFn: func(ctx context.Context) ([]model.Activity, error) {
			activityCalls.Add(1)
			if err := wait(ctx, activityLatency); err != nil {
				return nil, err
			}
			return sampleActivities(), nil
		},
	}
}

// followRefresh はRefreshヘッダーがなくなるまで同じページを再描画し、最後のレスポンスと描画回数を返す。
func followRefresh(t *testing.T, serve http.HandlerFunc, newRequest func() *http.Request) (*httptest.ResponseRecorder, int) {
	t.Helper()
	const maxRenders = 50
	for i := 1; i <= maxRenders; i++ {
		w := httptest.NewRecorder()
		serve(w, newRequest())
		if w.Header().Get("Refresh") == "" {
			return w, i
		}
	}
	t.Fatalf("page still loading after %d renders", maxRenders)
	return nil, 0
}

// TestDashboardHandler_Dashboard_SlowSourceFetchesOncePerMount はデータソースが描画待ち時間より遅くても、
// 再描画で取得をやり直さず、最初の取得の結果で表示が完了することを検証する。
func TestDashboardHandler_Dashboard_SlowSourceFetchesOncePerMount(t *testing.T) {
	var invoiceCalls, activityCalls atomic.Int32
	source := slowSource(60*time.Millisecond, 60*time.Millisecond, &invoiceCalls, &activityCalls)
	h := newTestDashboardHandler(t, source, 20*time.Millisecond)

	w, renders := followRefresh(t, h.Dashboard, func() *http.Request {
		return withClient(signedInRequest("/dashboard"), "client-1")
	})

	if renders < 2 {
		t.Errorf("renders = %d, want the first render to show loading", renders)
	}
	if got := invoiceCalls.Load(); got != 1 {
		t.Errorf("invoice fetches = %d, want 1", got)
	}
	if got := activityCalls.Load(); got != 1 {
		t.Errorf("activity fetches = %d, want 1", got)
	}

	doc := parseHTML(t, w.Body.String())
	if got := len(findByClass(doc, "invoice-row")); got != 3 {
		t.Errorf("invoice rows = %d, want 3", got)
	}
	if len(findByClass(doc, "loading")) != 0 {
		t.Error("settled page should not show the loading indicator")
	}
	if h.lists.Len() != 0 {
		t.Errorf("parked lists = %d, want 0 after the settled render", h.lists.Len())
	}
}

// TestDashboardHandler_Dashboard_PendingViewsAreNotShared は保留中のビューが他のクライアントに引き継がれないことを検証する。
func TestDashboardHandler_Dashboard_PendingViewsAreNotShared(t *testing.T) {
	var invoiceCalls, activityCalls atomic.Int32
	source := slowSource(200*time.Millisecond, 0, &invoiceCalls, &activityCalls)
	h := newTestDashboardHandler(t, source, 10*time.Millisecond)

	h.Dashboard(httptest.NewRecorder(), withClient(signedInRequest("/dashboard"), "client-1"))
	h.Dashboard(httptest.NewRecorder(), withClient(signedInRequest("/dashboard"), "client-2"))

	if got := invoiceCalls.Load(); got != 2 {
		t.Errorf("invoice fetches = %d, want one per client", got)
	}
	if h.lists.Len() != 2 {
		t.Errorf("parked lists = %d, want 2", h.lists.Len())
	}
}

func TestDashboardHandler_Dashboard_ConsumesNoticeOnce(t *testing.T) {
	h := newTestDashboardHandler(t, &mockSource{}, time.Second)

	issue := httptest.NewRecorder()
	notify.Writer{}.Write(issue, notify.Success(notify.MsgLoginSucceeded))

	req := signedInRequest("/dashboard")
	for _, c := range issue.Result().Cookies() {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	notices := findByClass(parseHTML(t, w.Body.String()), "notice-success")
	if len(notices) != 1 || textOf(notices[0]) != notify.MsgLoginSucceeded {
		t.Fatalf("success notices = %d, want exactly one %q", len(notices), notify.MsgLoginSucceeded)
	}

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == notify.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("notice cookie should be cleared")
	}
}

func TestDashboardHandler_InvoiceDetails_OpensModal(t *testing.T) {
	var activityCalls atomic.Int32
	source := &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			return sampleInvoices(), nil
		},
		listActivitiesFn: func(ctx context.Context) ([]model.Activity, error) {
			activityCalls.Add(1)
			return sampleActivities(), nil
		},
	}
	h := newTestDashboardHandler(t, source, time.Second)

	w := httptest.NewRecorder()
	h.InvoiceDetails(w, detailRequest("2"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	doc := parseHTML(t, w.Body.String())
	modals := findByClass(doc, "modal")
	if len(modals) != 1 {
		t.Fatalf("modals = %d, want 1", len(modals))
	}
	if got := len(findByClass(modals[0], "reminder")); got != len(model.DefaultReminders) {
		t.Errorf("reminders = %d, want %d", got, len(model.DefaultReminders))
	}
	if got := len(findByClass(modals[0], "activity")); got != 1 {
		t.Errorf("detail activities = %d, want 1", got)
	}
	// 一覧と詳細でそれぞれ1回ずつ取得する
	if got := activityCalls.Load(); got != 2 {
		t.Errorf("activity fetches = %d, want 2", got)
	}
}

func TestDashboardHandler_InvoiceDetails_UnknownID(t *testing.T) {
	source := &mockSource{
		listInvoicesFn: func(ctx context.Context) ([]model.Invoice, error) {
			return sampleInvoices(), nil
		},
	}
	h := newTestDashboardHandler(t, source, time.Second)

	w := httptest.NewRecorder()
	h.InvoiceDetails(w, detailRequest("999"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if len(findByClass(parseHTML(t, w.Body.String()), "not-found")) != 1 {
		t.Error("not-found view should be rendered")
	}
}

// TestDashboardHandler_InvoiceDetails_SlowSourceFetchesOncePerMount は詳細画面でも再描画で取得をやり直さないことを検証する。
func TestDashboardHandler_InvoiceDetails_SlowSourceFetchesOncePerMount(t *testing.T) {
	var invoiceCalls, activityCalls atomic.Int32
	source := slowSource(0, 60*time.Millisecond, &invoiceCalls, &activityCalls)
	h := newTestDashboardHandler(t, source, 20*time.Millisecond)

	w, renders := followRefresh(t, h.InvoiceDetails, func() *http.Request {
		return withClient(detailRequest("2"), "client-1")
	})

	if renders < 2 {
		t.Errorf("renders = %d, want the first render to show loading", renders)
	}
	if got := invoiceCalls.Load(); got != 1 {
		t.Errorf("invoice fetches = %d, want 1", got)
	}
	// 一覧と詳細でそれぞれ1回ずつ
	if got := activityCalls.Load(); got != 2 {
		t.Errorf("activity fetches = %d, want 2", got)
	}

	modals := findByClass(parseHTML(t, w.Body.String()), "modal")
	if len(modals) != 1 {
		t.Fatalf("modals = %d, want 1", len(modals))
	}
	if got := len(findByClass(modals[0], "activity")); got != 1 {
		t.Errorf("detail activities = %d, want 1", got)
	}
	if h.lists.Len() != 0 || h.details.Len() != 0 {
		t.Errorf("parked views = %d lists, %d details, want none", h.lists.Len(), h.details.Len())
	}
}
