// Package identity はIdP境界を提供する。
// メール+パスワードによるアカウント作成とサインイン、サインアウト、
// ブラウザクライアント単位のセッション変更通知を扱う。
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/repository"
)

// initialLookupTimeout は購読開始時に保存済みセッションを読み込む際のタイムアウト。
const initialLookupTimeout = 10 * time.Second

// Authenticator はメール+パスワードの資格情報を検証するバックエンドのインターフェース。
type Authenticator interface {
	// CreateAccount はアカウントを作成し、作成されたプリンシパルを返す。
	CreateAccount(ctx context.Context, email, password string) (*model.Principal, error)
	// SignIn は資格情報を検証し、プリンシパルを返す。
	SignIn(ctx context.Context, email, password string) (*model.Principal, error)
}

// ProviderConfig はProviderの設定。
type ProviderConfig struct {
	SessionMaxAge time.Duration
}

type subscriber struct {
	mu        sync.Mutex
	fn        func(*model.Principal)
	delivered bool
	closed    bool
}

// deliver はコールバックを呼び出す。初回通知はライブイベントが届いていない場合のみ行う。
func (s *subscriber) deliver(p *model.Principal, initial bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (initial && s.delivered) {
		return
	}
	s.delivered = true
	s.fn(p)
}

// Provider はクライアントごとのセッションを管理し、変更を購読者に通知する。
type Provider struct {
	auth     Authenticator
	sessions repository.SessionRepository
	config   ProviderConfig
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
}

// NewProvider はProviderを生成する。
func NewProvider(
	auth Authenticator,
	sessions repository.SessionRepository,
	config ProviderConfig,
	logger *slog.Logger,
) *Provider {
	return &Provider{
		auth:     auth,
		sessions: sessions,
		config:   config,
		logger:   logger,
		subs:     make(map[string]map[uint64]*subscriber),
	}
}

// CreateAccount はアカウントを作成し、そのクライアントをサインイン状態にする。
func (p *Provider) CreateAccount(ctx context.Context, clientID, email, password string) (*model.Principal, error) {
	principal, err := p.auth.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := p.establish(ctx, clientID, principal); err != nil {
		return nil, err
	}
	return principal, nil
}

// SignIn は資格情報を検証し、そのクライアントをサインイン状態にする。
func (p *Provider) SignIn(ctx context.Context, clientID, email, password string) (*model.Principal, error) {
	principal, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := p.establish(ctx, clientID, principal); err != nil {
		return nil, err
	}
	return principal, nil
}

// SignOut はクライアントのセッションを破棄し、購読者にサインアウトを通知する。
func (p *Provider) SignOut(ctx context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if err := p.sessions.DeleteByID(ctx, clientID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	p.logger.Info("user signed out", slog.String("client_id", clientID))
	p.publish(clientID, nil)
	return nil
}

// Subscribe はクライアントのセッション変更を購読する。
// 登録後、保存済みのセッション（なければnil）を非同期に1度通知し、
// 以降はサインイン・サインアウトのたびに通知する。
// 戻り値の関数で購読を解除する。
func (p *Provider) Subscribe(clientID string, fn func(*model.Principal)) (unsubscribe func()) {
	sub := &subscriber{fn: fn}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.subs[clientID] == nil {
		p.subs[clientID] = make(map[uint64]*subscriber)
	}
	p.subs[clientID][id] = sub
	p.mu.Unlock()

	go func() {
		sub.deliver(p.lookup(clientID), true)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs[clientID], id)
			if len(p.subs[clientID]) == 0 {
				delete(p.subs, clientID)
			}
			p.mu.Unlock()

			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		})
	}
}

// lookup は保存済みセッションのプリンシパルを返す。読み込みに失敗した場合はnilとして扱う。
func (p *Provider) lookup(clientID string) *model.Principal {
	ctx, cancel := context.WithTimeout(context.Background(), initialLookupTimeout)
	defer cancel()

	session, err := p.sessions.FindByID(ctx, clientID)
	if err != nil {
		p.logger.Error("保存済みセッションの読み込みに失敗しました",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if session == nil {
		return nil
	}
	return session.Principal()
}

// establish はセッションを保存し、購読者にサインインを通知する。
func (p *Provider) establish(ctx context.Context, clientID string, principal *model.Principal) error {
	if clientID == "" {
		return fmt.Errorf("client ID is required")
	}

	now := time.Now()
	session := &model.Session{
		ID:          clientID,
		UserID:      principal.ID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		ProviderID:  principal.ProviderID,
		ExpiresAt:   now.Add(p.config.SessionMaxAge),
		CreatedAt:   now,
	}
	if err := p.sessions.Upsert(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	p.logger.Info("user signed in",
		slog.String("client_id", clientID),
		slog.String("user_id", principal.ID),
		slog.String("provider", principal.ProviderID),
	)
	p.publish(clientID, principal)
	return nil
}

func (p *Provider) publish(clientID string, principal *model.Principal) {
	p.mu.Lock()
	targets := make([]*subscriber, 0, len(p.subs[clientID]))
	for _, sub := range p.subs[clientID] {
		targets = append(targets, sub)
	}
	p.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(principal, false)
	}
}
