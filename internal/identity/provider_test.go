package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/invoicedash/internal/model"
)

// recorder はコールバックで受け取ったプリンシパルを記録する。
type recorder struct {
	mu     sync.Mutex
	events []*model.Principal
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) fn(p *model.Principal) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("コールバックが呼ばれませんでした")
	}
}

func (r *recorder) snapshot() []*model.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Principal(nil), r.events...)
}

func newTestProvider(auth Authenticator, sessions *mockSessionRepo) *Provider {
	return NewProvider(auth, sessions, ProviderConfig{SessionMaxAge: time.Hour}, discardLogger())
}

func TestProvider_Subscribe_ReportsStoredSession(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id != "client-1" {
				return nil, nil
			}
			return &model.Session{ID: id, UserID: "user-1", Email: "a@example.com", ProviderID: "password"}, nil
		},
	}
	p := newTestProvider(&mockAuthenticator{}, sessions)

	rec := newRecorder()
	unsubscribe := p.Subscribe("client-1", rec.fn)
	defer unsubscribe()
	rec.wait(t)

	events := rec.snapshot()
	if len(events) != 1 || events[0] == nil || events[0].ID != "user-1" {
		t.Fatalf("events = %+v, want stored principal user-1", events)
	}
}

func TestProvider_Subscribe_ReportsNilWhenNoSession(t *testing.T) {
	p := newTestProvider(&mockAuthenticator{}, &mockSessionRepo{})

	rec := newRecorder()
	unsubscribe := p.Subscribe("client-1", rec.fn)
	defer unsubscribe()
	rec.wait(t)

	events := rec.snapshot()
	if len(events) != 1 || events[0] != nil {
		t.Fatalf("events = %+v, want [nil]", events)
	}
}

func TestProvider_Subscribe_LookupErrorReportsNil(t *testing.T) {
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}
	p := newTestProvider(&mockAuthenticator{}, sessions)

	rec := newRecorder()
	defer p.Subscribe("client-1", rec.fn)()
	rec.wait(t)

	if events := rec.snapshot(); len(events) != 1 || events[0] != nil {
		t.Fatalf("events = %+v, want [nil]", events)
	}
}

func TestProvider_SignIn_PublishesToClientSubscribersOnly(t *testing.T) {
	var saved *model.Session
	sessions := &mockSessionRepo{
		upsertFn: func(_ context.Context, s *model.Session) error {
			saved = s
			return nil
		},
	}
	p := newTestProvider(&mockAuthenticator{}, sessions)

	mine := newRecorder()
	other := newRecorder()
	defer p.Subscribe("client-1", mine.fn)()
	defer p.Subscribe("client-2", other.fn)()
	mine.wait(t)
	other.wait(t)

	principal, err := p.SignIn(context.Background(), "client-1", "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if principal.ID != "user-1" {
		t.Errorf("principal.ID = %q, want user-1", principal.ID)
	}
	mine.wait(t)

	if saved == nil || saved.ID != "client-1" || saved.UserID != "user-1" {
		t.Errorf("saved session = %+v, want client-1/user-1", saved)
	}
	if !saved.ExpiresAt.After(time.Now().Add(50 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about one hour ahead", saved.ExpiresAt)
	}

	if events := mine.snapshot(); len(events) != 2 || events[1] == nil {
		t.Errorf("client-1 events = %+v, want [nil, principal]", events)
	}
	if events := other.snapshot(); len(events) != 1 {
		t.Errorf("client-2 events = %+v, want only the initial report", events)
	}
}

func TestProvider_SignIn_ErrorDoesNotPublish(t *testing.T) {
	upserted := false
	sessions := &mockSessionRepo{
		upsertFn: func(_ context.Context, _ *model.Session) error {
			upserted = true
			return nil
		},
	}
	auth := &mockAuthenticator{
		signInFn: func(_ context.Context, _, _ string) (*model.Principal, error) {
			return nil, &Error{Kind: KindInvalidCredential, Message: "Invalid email or password"}
		},
	}
	p := newTestProvider(auth, sessions)

	rec := newRecorder()
	defer p.Subscribe("client-1", rec.fn)()
	rec.wait(t)

	_, err := p.SignIn(context.Background(), "client-1", "a@example.com", "bad")
	if KindOf(err) != KindInvalidCredential {
		t.Fatalf("KindOf(err) = %v, want invalid_credential", KindOf(err))
	}
	if upserted {
		t.Error("失敗したサインインでセッションが保存された")
	}
	if events := rec.snapshot(); len(events) != 1 {
		t.Errorf("events = %+v, want only the initial report", events)
	}
}

func TestProvider_CreateAccount_SignsIn(t *testing.T) {
	p := newTestProvider(&mockAuthenticator{}, &mockSessionRepo{})

	rec := newRecorder()
	defer p.Subscribe("client-1", rec.fn)()
	rec.wait(t)

	if _, err := p.CreateAccount(context.Background(), "client-1", "new@example.com", "secret1"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	rec.wait(t)

	events := rec.snapshot()
	if last := events[len(events)-1]; last == nil || last.Email != "new@example.com" {
		t.Errorf("last event = %+v, want new@example.com", last)
	}
}

func TestProvider_SignOut_PublishesNil(t *testing.T) {
	var deleted string
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1"}, nil
		},
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	p := newTestProvider(&mockAuthenticator{}, sessions)

	rec := newRecorder()
	defer p.Subscribe("client-1", rec.fn)()
	rec.wait(t)

	if err := p.SignOut(context.Background(), "client-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	rec.wait(t)

	if deleted != "client-1" {
		t.Errorf("deleted = %q, want client-1", deleted)
	}
	events := rec.snapshot()
	if len(events) != 2 || events[0] == nil || events[1] != nil {
		t.Errorf("events = %+v, want [principal, nil]", events)
	}
}

func TestProvider_SignOut_EmptyClientID(t *testing.T) {
	p := newTestProvider(&mockAuthenticator{}, &mockSessionRepo{})
	if err := p.SignOut(context.Background(), ""); err == nil {
		t.Error("SignOut(\"\") should return error")
	}
}

func TestProvider_LiveEventSuppressesLateInitialReport(t *testing.T) {
	release := make(chan struct{})
	sessions := &mockSessionRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.Session, error) {
			<-release
			return nil, nil
		},
	}
	p := newTestProvider(&mockAuthenticator{}, sessions)

	rec := newRecorder()
	defer p.Subscribe("client-1", rec.fn)()

	if _, err := p.SignIn(context.Background(), "client-1", "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	rec.wait(t)
	close(release)

	// 遅れて届いた初回通知でサインイン状態が上書きされないこと
	time.Sleep(50 * time.Millisecond)
	events := rec.snapshot()
	if len(events) != 1 || events[0] == nil {
		t.Errorf("events = %+v, want only the live sign-in", events)
	}
}

func TestProvider_Unsubscribe_StopsDelivery(t *testing.T) {
	p := newTestProvider(&mockAuthenticator{}, &mockSessionRepo{})

	rec := newRecorder()
	unsubscribe := p.Subscribe("client-1", rec.fn)
	rec.wait(t)
	unsubscribe()
	unsubscribe()

	if _, err := p.SignIn(context.Background(), "client-1", "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if events := rec.snapshot(); len(events) != 1 {
		t.Errorf("events = %+v, want no delivery after unsubscribe", events)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnclassified},
		{"plain", errors.New("x"), KindUnclassified},
		{"account exists", &Error{Kind: KindAccountExists, Message: "User already exists"}, KindAccountExists},
		{"invalid credential", &Error{Kind: KindInvalidCredential}, KindInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(&Error{Kind: KindAccountExists, Message: "User already exists"}); got != "User already exists" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := MessageOf(errors.New("db down")); got == "db down" {
		t.Error("内部エラーの詳細がそのまま表示用メッセージになっている")
	}
}
