// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/invoicedash/internal/identity"
	"github.com/hitoshi/invoicedash/internal/metrics"
	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/notify"
	"github.com/hitoshi/invoicedash/internal/view"
)

// MsgSignInFailed はログイン失敗時にフォームに表示する文言。
const MsgSignInFailed = "Failed to sign in. Please try again."

// IdentityService は認証ハンドラーが必要とするIdPのインターフェース。
// identity.Providerが実装する。
type IdentityService interface {
	CreateAccount(ctx context.Context, clientID, email, password string) (*model.Principal, error)
	SignIn(ctx context.Context, clientID, email, password string) (*model.Principal, error)
	SignOut(ctx context.Context, clientID string) error
}

// PageRenderer はページを描画するインターフェース。
// view.Rendererが実装する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, page string, data any)
}

// AuthHandler はサインアップ、ログイン、ログアウトのHTTPハンドラー。
type AuthHandler struct {
	identity  IdentityService
	renderer  PageRenderer
	notices   notify.Writer
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	identity IdentityService,
	renderer PageRenderer,
	notices notify.Writer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		identity:  identity,
		renderer:  renderer,
		notices:   notices,
		collector: collector,
		logger:    logger,
	}
}

// SignupForm はサインアップ画面を表示する。
// GET /
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	page := view.AuthPage{Base: pageBase(w, r, h.notices, "Sign Up")}
	h.renderer.Render(w, http.StatusOK, view.PageSignup, page)
}

// Signup はアカウントを作成する。
// POST /
//
// 成功時は通知を残してログイン画面へリダイレクトする。
// 失敗時はIdPのメッセージをフォームと通知の両方に表示する。
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	if password != confirm {
		h.collector.RecordAuthResult("signup", "password_mismatch")
		h.renderAuthError(w, r, view.PageSignup, "Sign Up", email, notify.MsgPasswordsDiffer, notify.MsgPasswordsDiffer, http.StatusUnprocessableEntity)
		return
	}

	if _, err := h.identity.CreateAccount(r.Context(), clientID, email, password); err != nil {
		kind := identity.KindOf(err)
		h.collector.RecordAuthResult("signup", kind.String())
		h.logger.Warn("account creation failed",
			slog.String("client_id", clientID),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		message := identity.MessageOf(err)
		h.renderAuthError(w, r, view.PageSignup, "Sign Up", email, message, message, http.StatusUnprocessableEntity)
		return
	}

	h.collector.RecordAuthResult("signup", "success")
	h.notices.Write(w, notify.Success(notify.MsgAccountCreated))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginForm はログイン画面を表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	page := view.AuthPage{Base: pageBase(w, r, h.notices, "Login")}
	h.renderer.Render(w, http.StatusOK, view.PageLogin, page)
}

// Login はメールアドレスとパスワードでサインインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if _, err := h.identity.SignIn(r.Context(), clientID, email, password); err != nil {
		kind := identity.KindOf(err)
		h.collector.RecordAuthResult("login", kind.String())
		h.logger.Warn("sign in failed",
			slog.String("client_id", clientID),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		h.renderAuthError(w, r, view.PageLogin, "Login", email, MsgSignInFailed, notify.MsgLoginFailed, http.StatusUnauthorized)
		return
	}

	h.collector.RecordAuthResult("login", "success")
	h.notices.Write(w, notify.Success(notify.MsgLoginSucceeded))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout はサインアウトしてログイン画面へリダイレクトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	if err := h.identity.SignOut(r.Context(), clientID); err != nil {
		h.collector.RecordAuthResult("logout", "error")
		h.logger.Error("sign out failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		h.notices.Write(w, notify.Error(identity.MessageOf(err)))
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	h.collector.RecordAuthResult("logout", "success")
	h.notices.Write(w, notify.Success(notify.MsgLoggedOut))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// renderAuthError はフォームを再表示する。通知はCookieを介さずこの描画で直接表示する。
func (h *AuthHandler) renderAuthError(w http.ResponseWriter, r *http.Request, page, title, email, inline, notice string, status int) {
	base := pageBase(w, r, h.notices, title)
	n := notify.Error(notice)
	base.Notice = &n
	h.renderer.Render(w, status, page, view.AuthPage{
		Base:  base,
		Email: email,
		Error: inline,
	})
}
