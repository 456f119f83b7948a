// Package view は画面のHTMLテンプレートと表示用モデルを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/overview"
	"github.com/hitoshi/invoicedash/internal/security"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名
const (
	PageSignup    = "signup.html"
	PageLogin     = "login.html"
	PageDashboard = "dashboard.html"
	PageLoading   = "loading.html"
	PageNotFound  = "notfound.html"
)

var pages = []string{PageSignup, PageLogin, PageDashboard, PageLoading, PageNotFound}

// Renderer はページテンプレートを描画する。
type Renderer struct {
	templates map[string]*template.Template
	sanitizer security.ContentSanitizerService
	printer   *message.Printer
	logger    *slog.Logger
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template, len(pages)),
		sanitizer: sanitizer,
		printer:   message.NewPrinter(language.English),
		logger:    logger,
	}

	funcs := template.FuncMap{
		"amount":      r.FormatAmount,
		"money":       r.formatMoney,
		"statusClass": StatusClass,
		"description": r.description,
		"avatar":      sanitizer.AvatarURL,
		"initials":    (*model.Principal).Initials,
	}

	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open templates: %w", err)
	}
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(sub, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// Render はページを描画してレスポンスに書き込む。
// 描画に失敗した場合は500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := r.templates[page]
	if !ok {
		r.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// FormatAmount は数値として解釈できる金額を "$4,120,102.75" の形式に整形する。
// 解釈できない場合は受け取った文字列をそのまま返す。
func (r *Renderer) FormatAmount(raw string) string {
	v, ok := overview.ParseAmount(raw)
	if !ok {
		return raw
	}
	return r.formatMoney(v)
}

func (r *Renderer) formatMoney(v float64) string {
	return "$" + r.printer.Sprintf("%.2f", v)
}

func (r *Renderer) description(raw string) template.HTML {
	return template.HTML(r.sanitizer.Sanitize(raw))
}

// StatusClass はステータスバッジのクラスを返す。
// Paidは緑、Overdueは赤、それ以外は灰色。
func StatusClass(status model.InvoiceStatus) string {
	switch {
	case status.Is(model.InvoiceStatusPaid):
		return "badge badge-green"
	case status.Is(model.InvoiceStatusOverdue):
		return "badge badge-red"
	default:
		return "badge badge-grey"
	}
}
