package identity

import (
	"context"
	"io"
	"log/slog"

	"github.com/hitoshi/invoicedash/internal/model"
)

// --- モック定義 ---

type mockAuthenticator struct {
	createAccountFn func(ctx context.Context, email, password string) (*model.Principal, error)
	signInFn        func(ctx context.Context, email, password string) (*model.Principal, error)
}

func (m *mockAuthenticator) CreateAccount(ctx context.Context, email, password string) (*model.Principal, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, email, password)
	}
	return &model.Principal{ID: "user-1", Email: email, ProviderID: model.PasswordProviderID}, nil
}

func (m *mockAuthenticator) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &model.Principal{ID: "user-1", Email: email, ProviderID: model.PasswordProviderID}, nil
}

type mockSessionRepo struct {
	upsertFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Upsert(ctx context.Context, session *model.Session) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockAccountRepo struct {
	accounts map[string]*model.Account
	createFn func(ctx context.Context, account *model.Account) error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[string]*model.Account)}
}

func (m *mockAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	return m.accounts[email], nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	m.accounts[account.Email] = account
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
