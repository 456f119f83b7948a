package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/invoicedash/internal/config"
	"github.com/hitoshi/invoicedash/internal/database"
	"github.com/hitoshi/invoicedash/internal/datasource"
	"github.com/hitoshi/invoicedash/internal/handler"
	"github.com/hitoshi/invoicedash/internal/identity"
	"github.com/hitoshi/invoicedash/internal/logger"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/mockapi"
	"github.com/hitoshi/invoicedash/internal/repository"
	"github.com/hitoshi/invoicedash/internal/security"
	"github.com/hitoshi/invoicedash/internal/session"
	"github.com/hitoshi/invoicedash/internal/view"
	"github.com/hitoshi/invoicedash/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cmd := ParseCommand(args)

	// healthcheck と mockapi はDBを使わないため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandMockAPI:
		logger.SetupDefault(w)
		return runMockAPI(config.LoadMockAPI())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("identity_provider", cfg.IdentityProvider),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newAuthenticator はIDENTITY_PROVIDERに応じた認証バックエンドを返す。
func newAuthenticator(cfg *config.Config, accounts repository.AccountRepository, log *slog.Logger) identity.Authenticator {
	if cfg.IdentityProvider == config.IdentityProviderFirebase {
		return identity.NewFirebaseAuthenticator(identity.FirebaseConfig{
			APIKey:      cfg.FirebaseAPIKey,
			IdentityURL: cfg.FirebaseIdentityURL,
		}, &http.Client{Timeout: cfg.FirebaseTimeout}, log)
	}
	return identity.NewPasswordAuthenticator(accounts, log)
}

// runServe はダッシュボードサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. IdPとセッション状態
	provider := identity.NewProvider(
		newAuthenticator(cfg, accountRepo, log),
		sessionRepo,
		identity.ProviderConfig{SessionMaxAge: time.Duration(cfg.SessionMaxAge) * time.Second},
		log,
	)
	holders := session.NewRegistry(provider)
	defer holders.Close()

	// 5. データソースとビュー
	source := datasource.NewClient(
		cfg.DataSourceURL,
		&http.Client{Timeout: cfg.DataSourceTimeout},
		log,
		collector,
	)

	renderer, err := view.NewRenderer(security.NewContentSanitizer(), log)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitAuthはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitAuth > 0 {
		rateLimiterCfg.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rateLimiterCfg.AuthBurst = cfg.RateLimitAuth
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, log)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Config: handler.RouterConfig{
			CookieSecure:          cfg.CookieSecure,
			CookieDomain:          cfg.CookieDomain,
			ClientMaxAge:          cfg.SessionMaxAge,
			SessionResolveTimeout: cfg.SessionResolveTimeout,
			ViewRenderWait:        cfg.ViewRenderWait,
		},
		Logger:         log,
		Holders:        holders,
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		Identity:       provider,
		Source:         source,
		Renderer:       renderer,
	})

	// 7. クリーンアップジョブをバックグラウンドで起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(db, holders, collector, log)
	cleanupJob.HolderIdleTTL = cfg.HolderIdleTTL
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "dashboard server")
}

// runMockAPI はモックデータソースを起動する。
func runMockAPI(cfg *config.MockAPIConfig) error {
	fixture, err := mockapi.LoadFixture(cfg.DataFile)
	if err != nil {
		return fmt.Errorf("failed to load mock data: %w", err)
	}

	slog.Info("mock data loaded",
		slog.Int("invoices", len(fixture.Invoices)),
		slog.Int("activities", len(fixture.Activities)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mockapi.NewHandler(fixture, cfg.CORSAllowedOrigin, slog.Default()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "mock data source")
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMを受信するまでブロックする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen failed: %w", name, err)
	case <-stop:
	}

	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.CurrentVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
