// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/session"
)

// ClientCookieName はブラウザクライアントを識別するCookieの名前。
const ClientCookieName = "invoicedash_client"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// clientIssuedContextKey はこのリクエストでクライアントIDを発行したことを示すキー。
var clientIssuedContextKey = contextKey("client_issued")

// ClientConfig はクライアント識別Cookieの設定。
type ClientConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // Cookieの有効期間（秒）
}

// NewClientMiddleware はクライアント識別Cookieを読み取り、なければ発行するミドルウェアを返す。
// クライアントIDをリクエストコンテキストに注入する。
func NewClientMiddleware(config ClientConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			issued := false
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.New().String()
				issued = true
			}

			// 有効期限を延長するため毎回書き直す
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookieName,
				Value:    clientID,
				Path:     "/",
				Domain:   config.CookieDomain,
				MaxAge:   config.MaxAge,
				HttpOnly: true,
				Secure:   config.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := ContextWithClientID(r.Context(), clientID)
			if issued {
				ctx = context.WithValue(ctx, clientIssuedContextKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

// ClientIssuedFromContext はこのリクエストでクライアントIDを新しく発行したかどうかを返す。
func ClientIssuedFromContext(ctx context.Context) bool {
	issued, _ := ctx.Value(clientIssuedContextKey).(bool)
	return issued
}

// HolderSource はクライアントIDからセッション状態ホルダーを取得するインターフェース。
// session.Registryが実装する。
type HolderSource interface {
	Holder(clientID string) *session.Holder
	Len() int
}

// NewSessionMiddleware はクライアントのセッション状態を解決してコンテキストに注入するミドルウェアを返す。
// 状態が未確定の場合は最大resolveTimeoutだけ確定を待つ。待っても確定しなければ未確定のまま渡す。
// このリクエストで発行したクライアントIDにはセッションが存在し得ないため、ホルダーを作らずEmptyとする。
func NewSessionMiddleware(holders HolderSource, resolveTimeout time.Duration, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if ClientIssuedFromContext(r.Context()) {
				next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), session.State{Status: session.Empty})))
				return
			}

			holder := holders.Holder(clientID)
			collector.SetActiveHolders(holders.Len())

			state := holder.Current()
			if !state.IsDetermined() {
				ctx, cancel := context.WithTimeout(r.Context(), resolveTimeout)
				state = holder.Wait(ctx)
				cancel()
			}

			if state.Status == session.Populated {
				annotatePrincipal(r.Context(), state.Principal.ID)
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), state)))
		})
	}
}
