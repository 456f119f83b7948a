package handler

import (
	"net/http"

	"github.com/hitoshi/invoicedash/internal/middleware"
	"github.com/hitoshi/invoicedash/internal/notify"
	"github.com/hitoshi/invoicedash/internal/view"
)

// pageBase は全ページ共通の表示項目を組み立てる。
// 保留中の通知があれば取り出し、Cookieを削除する。
func pageBase(w http.ResponseWriter, r *http.Request, notices notify.Writer, title string) view.Base {
	base := view.Base{
		Title:     title,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
	if notice, ok := notices.ReadAndClear(w, r); ok {
		base.Notice = &notice
	}
	return base
}

// PageHandler はビューに属さない共通ページのハンドラー。
type PageHandler struct {
	renderer PageRenderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// Pending はセッションが確定するまでのプレースホルダーを表示する。
// 通知は消費しない。
func (h *PageHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, view.PageLoading, view.Base{Title: "Loading"})
}

// NotFound は未定義のパスに対して404ページを表示する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusNotFound, view.PageNotFound, view.Base{Title: "Not Found"})
}
