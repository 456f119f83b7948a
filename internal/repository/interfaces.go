// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/invoicedash/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスのアカウントが既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("account with the same email already exists")

// AccountRepository はローカルIdPのアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でアカウントを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// SessionRepository はクライアントごとのログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Upsert はセッションを作成し、同じIDのセッションが存在する場合は置き換える。
	Upsert(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}
