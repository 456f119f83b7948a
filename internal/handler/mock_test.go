package handler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/security"
	"github.com/hitoshi/invoicedash/internal/view"
	"golang.org/x/net/html"
)

// --- モック定義 ---

type mockIdentityService struct {
	createAccountFn func(ctx context.Context, clientID, email, password string) (*model.Principal, error)
	signInFn        func(ctx context.Context, clientID, email, password string) (*model.Principal, error)
	signOutFn       func(ctx context.Context, clientID string) error
}

func (m *mockIdentityService) CreateAccount(ctx context.Context, clientID, email, password string) (*model.Principal, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, clientID, email, password)
	}
	return &model.Principal{ID: "uid-1", Email: email, ProviderID: model.PasswordProviderID}, nil
}

func (m *mockIdentityService) SignIn(ctx context.Context, clientID, email, password string) (*model.Principal, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, clientID, email, password)
	}
	return &model.Principal{ID: "uid-1", Email: email, ProviderID: model.PasswordProviderID}, nil
}

func (m *mockIdentityService) SignOut(ctx context.Context, clientID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, clientID)
	}
	return nil
}

type mockSource struct {
	listInvoicesFn   func(ctx context.Context) ([]model.Invoice, error)
	listActivitiesFn func(ctx context.Context) ([]model.Activity, error)
}

func (m *mockSource) ListInvoices(ctx context.Context) ([]model.Invoice, error) {
	if m.listInvoicesFn != nil {
		return m.listInvoicesFn(ctx)
	}
	return []model.Invoice{}, nil
}

func (m *mockSource) ListActivities(ctx context.Context) ([]model.Activity, error) {
	if m.listActivitiesFn != nil {
		return m.listActivitiesFn(ctx)
	}
	return []model.Activity{}, nil
}

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// memorySessionRepo はメモリ上のセッションリポジトリ。
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memorySessionRepo) Upsert(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memorySessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// silentSubscriber は一度も通知しないIdP。セッションは未確定のままになる。
type silentSubscriber struct{}

func (silentSubscriber) Subscribe(string, func(*model.Principal)) func() {
	return func() {}
}

// --- ヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	renderer, err := view.NewRenderer(security.NewContentSanitizer(), discardLogger())
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	return renderer
}

func sampleInvoices() []model.Invoice {
	return []model.Invoice{
		{ID: "1", DueDate: "Oct 10, 2024", Amount: "$1,200.00", Status: model.InvoiceStatusPaid, DateGroup: "October 2024"},
		{ID: "2", DueDate: "Oct 22, 2024", Amount: "900", Status: model.InvoiceStatusOverdue, DateGroup: "October 2024"},
		{ID: "3", DueDate: "Nov 02, 2024", Amount: "450.5", Status: model.InvoiceStatusDraft, DateGroup: "November 2024"},
	}
}

func sampleActivities() []model.Activity {
	return []model.Activity{
		{Avatar: "https://example.com/a.png", Name: "Jane", Time: "Today, 12:20 pm", Description: "Created <strong>invoice #1</strong>"},
	}
}

func parseHTML(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

// findByClass はクラスを持つ要素をすべて返す。
func findByClass(n *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "class" && containsField(attr.Val, class) {
					found = append(found, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func containsField(s, field string) bool {
	for _, f := range strings.Fields(s) {
		if f == field {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
