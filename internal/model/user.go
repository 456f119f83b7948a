// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// PasswordProviderID はメールアドレス+パスワードで認証されたことを示すプロバイダーID。
const PasswordProviderID = "password"

// Principal はIdPが認証済みと報告したユーザーを表す。
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	ProviderID  string
}

// IsEmailUser はパスワード認証で認証されたプリンシパルかどうかを返す。
func (p *Principal) IsEmailUser() bool {
	return p != nil && p.ProviderID == PasswordProviderID
}

// Initials は表示名の各単語の頭文字を大文字で連結して返す。
// 表示名が未設定の場合は "User" の頭文字を返す。
func (p *Principal) Initials() string {
	name := ""
	if p != nil {
		name = strings.TrimSpace(p.DisplayName)
	}
	if name == "" {
		name = "User"
	}

	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

// Account はローカルIdPに登録されたアカウントを表す。
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はブラウザクライアントに紐づくログインセッションを表す。
// IDはクライアントIDと同一で、1クライアントにつき最大1つのプリンシパルを保持する。
type Session struct {
	ID          string
	UserID      string
	Email       string
	DisplayName string
	ProviderID  string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Principal はセッションに保存されたプリンシパルを復元する。
func (s *Session) Principal() *Principal {
	return &Principal{
		ID:          s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		ProviderID:  s.ProviderID,
	}
}
