package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/notify"
)

// RouterConfig はルーターの設定。
type RouterConfig struct {
	CookieSecure          bool
	CookieDomain          string
	ClientMaxAge          int           // クライアント識別Cookieの有効期間（秒）
	SessionResolveTimeout time.Duration // セッション確定を待つ最大時間
	ViewRenderWait        time.Duration // データ取得完了を待つ最大時間
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Config RouterConfig
	Logger *slog.Logger

	// ミドルウェア依存
	Holders     middleware.HolderSource
	RateLimiter *middleware.RateLimiter
	Metrics     metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	Identity IdentityService
	Source   datasource.Source
	Renderer PageRenderer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Client → CSRF → Session → Gate
//
// /health と /metrics はClient以降のチェーンの外に配置する。
// /logout はゲートを通さない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	notices := notify.Writer{Secure: deps.Config.CookieSecure, Domain: deps.Config.CookieDomain}
	pages := NewPageHandler(deps.Renderer)
	authHandler := NewAuthHandler(deps.Identity, deps.Renderer, notices, deps.Metrics, deps.Logger)
	dashboardHandler := NewDashboardHandler(deps.Source, deps.Renderer, notices, deps.Config.ViewRenderWait, deps.Logger)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 画面 ---
	browser := chi.Chain(
		middleware.NewClientMiddleware(middleware.ClientConfig{
			CookieSecure: deps.Config.CookieSecure,
			CookieDomain: deps.Config.CookieDomain,
			MaxAge:       deps.Config.ClientMaxAge,
		}),
		middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.Config.CookieSecure,
			CookieDomain: deps.Config.CookieDomain,
		}, deps.Logger),
		middleware.NewSessionMiddleware(deps.Holders, deps.Config.SessionResolveTimeout, deps.Metrics),
	)
	gate := middleware.NewGateMiddleware(http.HandlerFunc(pages.Pending), deps.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(browser...)

		r.Post("/logout", authHandler.Logout)

		// ゲートはビューを選ぶ前に評価する
		r.Group(func(r chi.Router) {
			r.Use(gate)

			r.Get("/", authHandler.SignupForm)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/", authHandler.Signup)

			r.Get("/login", authHandler.LoginForm)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)

			r.Get("/dashboard", dashboardHandler.Dashboard)
			r.Get("/invoice-details/{id}", dashboardHandler.InvoiceDetails)
		})
	})

	// 未定義のパスもゲートを通してから404を表示する
	r.NotFound(browser.Handler(gate(http.HandlerFunc(pages.NotFound))).ServeHTTP)

	return r
}
