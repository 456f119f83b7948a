package middleware

import (
	"net/http"

	"github.com/hitoshi/invoicedash/internal/gate"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/session"
)

// NewGateMiddleware はビューを選択する前にルートゲートを評価するミドルウェアを返す。
// 判定結果に応じて、プレースホルダー、リダイレクト（303）、ビューのいずれか1つだけを返す。
// プレースホルダーにはRefreshヘッダーを付け、ブラウザに再評価させる。
// GET以外のリクエストは未確定のまま処理できないため、同じURLへ303でリダイレクトし、
// フォームを表示し直させる。
func NewGateMiddleware(pending http.Handler, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.Decide(gate.AccessFor(r.URL.Path), session.FromContext(r.Context()))
			collector.RecordGateDecision(decision.Outcome.String())

			switch decision.Outcome {
			case gate.Pending:
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					w.Header().Set("Cache-Control", "no-store")
					http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
					return
				}
				w.Header().Set("Refresh", "1")
				w.Header().Set("Cache-Control", "no-store")
				pending.ServeHTTP(w, r)
			case gate.Redirect:
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
