// Package gate はルートごとのアクセス制御を判定する。
// 判定はビューの選択より前に行われ、セッション状態が未確定の間はリダイレクトしない。
package gate

import (
	"strings"

	"github.com/hitoshi/invoicedash/internal/session"
)

// Access はルートのアクセス区分。
type Access int

const (
	// Public は誰でも閲覧できるルート。
	Public Access = iota
	// Protected はサインイン済みのユーザーのみ閲覧できるルート。
	Protected
	// AuthOnly は未サインインのユーザー向けのルート（ログイン画面など）。
	AuthOnly
)

// String はアクセス区分の名前を返す。
func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth_only"
	default:
		return "public"
	}
}

// Outcome は判定結果の種別。
type Outcome int

const (
	// Allow はビューを表示する。
	Allow Outcome = iota
	// Pending はセッション状態の確定を待つプレースホルダーを表示する。
	Pending
	// Redirect は別のルートへ遷移させる。
	Redirect
)

// String は判定結果の名前を返す。
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	default:
		return "allow"
	}
}

// Decision はゲートの判定結果。OutcomeがRedirectの場合のみLocationが設定される。
type Decision struct {
	Outcome  Outcome
	Location string
}

const (
	// LoginPath はログイン画面のパス。
	LoginPath = "/login"
	// DashboardPath はダッシュボードのパス。
	DashboardPath = "/dashboard"
	// SignupPath はサインアップ画面のパス。
	SignupPath = "/"
	// InvoiceDetailsPrefix は請求書詳細のパスの接頭辞。
	InvoiceDetailsPrefix = "/invoice-details/"
)

// Decide はアクセス区分とセッション状態から判定結果を返す。
// 未確定の状態はアクセス区分に関係なく常にPendingになる。
func Decide(access Access, state session.State) Decision {
	switch {
	case state.Status == session.Undetermined:
		return Decision{Outcome: Pending}
	case access == Protected && state.Status == session.Empty:
		return Decision{Outcome: Redirect, Location: LoginPath}
	case access == AuthOnly && state.Status == session.Populated:
		return Decision{Outcome: Redirect, Location: DashboardPath}
	default:
		return Decision{Outcome: Allow}
	}
}

// AccessFor はパスのアクセス区分を返す。ルート表にないパスはPublic。
func AccessFor(path string) Access {
	switch path {
	case SignupPath:
		return Public
	case LoginPath:
		return AuthOnly
	case DashboardPath:
		return Protected
	}

	if id, ok := strings.CutPrefix(path, InvoiceDetailsPrefix); ok && id != "" && !strings.Contains(id, "/") {
		return Protected
	}
	return Public
}
