// Package datasource は請求書とアクティビティを提供するRESTデータソースのクライアントを提供する。
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/model"
)

const (
	resourceInvoices   = "invoices"
	resourceActivities = "activities"
)

// ErrFetchFailed はデータソースからの取得に失敗したことを示す。
// トランスポートエラーと2xx以外のステータスはすべてこのエラーでラップされる。
var ErrFetchFailed = errors.New("data source fetch failed")

// Source はビューが利用するデータソースのインターフェース。
type Source interface {
	ListInvoices(ctx context.Context) ([]model.Invoice, error)
	ListActivities(ctx context.Context) ([]model.Activity, error)
}

// Client はRESTデータソースのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// ListInvoices はGET /invoicesで請求書一覧を取得する。
func (c *Client) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := c.get(ctx, resourceInvoices, &invoices); err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []model.Invoice{}
	}
	return invoices, nil
}

// ListActivities はGET /activitiesでアクティビティ一覧を取得する。
func (c *Client) ListActivities(ctx context.Context) ([]model.Activity, error) {
	var activities []model.Activity
	if err := c.get(ctx, resourceActivities, &activities); err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	return activities, nil
}

// get は指定リソースを取得してoutにデコードする。エラー時のレスポンスボディは解釈しない。
func (c *Client) get(ctx context.Context, resource string, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordFetchLatency(resource, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+resource, nil)
	if err != nil {
		c.metrics.RecordFetchFailure(resource)
		return fmt.Errorf("%w: failed to create request for %s: %v", ErrFetchFailed, resource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordFetchFailure(resource)
		// キャンセルは兄弟リクエストの失敗による正常な中断なのでログを出さない
		if ctx.Err() == nil {
			c.logger.Error("データソースの呼び出しに失敗しました",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, resource, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordFetchFailure(resource)
		c.logger.Error("データソースがエラーステータスを返しました",
			slog.String("resource", resource),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("%w: GET %s returned status %d", ErrFetchFailed, resource, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordFetchFailure(resource)
		return fmt.Errorf("%w: failed to read %s response: %w", ErrFetchFailed, resource, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.RecordFetchFailure(resource)
		c.logger.Error("データソースのレスポンスのパースに失敗しました",
			slog.String("resource", resource),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: failed to parse %s response: %w", ErrFetchFailed, resource, err)
	}

	return nil
}

// compile-time interface check
var _ Source = (*Client)(nil)
