// Package cleanup は期限切れセッションとアイドル状態のセッションホルダーを
// 定期的に削除するジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/invoicedash/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// HolderEvictor はアイドル状態のセッションホルダーを破棄するインターフェース。
// session.Registryが実装する。
type HolderEvictor interface {
	EvictIdle(ttl time.Duration) int
	Len() int
}

// CleanupJob は期限切れセッションの削除とアイドルホルダーの破棄を行うジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db            Executor
	holders       HolderEvictor
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	HolderIdleTTL time.Duration // これより長くアクセスのないホルダーを破棄する（デフォルト: 30分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, holders HolderEvictor, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &CleanupJob{
		db:            db,
		holders:       holders,
		collector:     collector,
		logger:        logger,
		HolderIdleTTL: 30 * time.Minute,
	}
}

// Run はアイドルホルダーを破棄し、期限切れのセッション行を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	evicted := j.holders.EvictIdle(j.HolderIdleTTL)
	j.collector.RecordHoldersEvicted(evicted)
	j.collector.SetActiveHolders(j.holders.Len())

	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("evicted_holders", evicted),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	j.collector.RecordSessionsPurged(purged)

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("purged_sessions", purged),
		slog.Int("evicted_holders", evicted),
		slog.Duration("holder_idle_ttl", j.HolderIdleTTL),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
