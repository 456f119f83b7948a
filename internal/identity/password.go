package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// PasswordAuthenticator はPostgreSQLのaccountsテーブルとbcryptで認証するローカルIdP。
type PasswordAuthenticator struct {
	accounts repository.AccountRepository
	logger   *slog.Logger
	cost     int
}

// NewPasswordAuthenticator はPasswordAuthenticatorを生成する。
func NewPasswordAuthenticator(accounts repository.AccountRepository, logger *slog.Logger) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		accounts: accounts,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

// CreateAccount はアカウントを作成する。
func (a *PasswordAuthenticator) CreateAccount(ctx context.Context, email, password string) (*model.Principal, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &Error{Kind: KindInvalidCredential, Message: "Invalid email address"}
	}
	if len(password) < minPasswordLength {
		return nil, &Error{Kind: KindUnclassified, Message: "Password should be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, &Error{Kind: KindAccountExists, Message: "User already exists"}
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	a.logger.Info("account created", slog.String("user_id", account.ID))
	return accountPrincipal(account), nil
}

// SignIn はメールアドレスとパスワードを検証する。
// 未登録とパスワード不一致は区別しない。
func (a *PasswordAuthenticator) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	account, err := a.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, &Error{Kind: KindInvalidCredential, Message: "Invalid email or password"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, &Error{Kind: KindInvalidCredential, Message: "Invalid email or password"}
	}

	return accountPrincipal(account), nil
}

func accountPrincipal(account *model.Account) *model.Principal {
	return &model.Principal{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		ProviderID:  model.PasswordProviderID,
	}
}

// compile-time interface check
var _ Authenticator = (*PasswordAuthenticator)(nil)
