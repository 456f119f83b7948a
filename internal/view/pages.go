package view

import (
	"github.com/hitoshi/invoicedash/internal/model"
	"github.com/hitoshi/invoicedash/internal/notify"
	"github.com/hitoshi/invoicedash/internal/overview"
)

// Base は全ページ共通の表示項目。
type Base struct {
	Title     string
	CSRFToken string
	Notice    *notify.Notice
}

// AuthPage はサインアップ画面とログイン画面の表示モデル。
type AuthPage struct {
	Base
	Email string
	Error string
}

// DashboardPage はダッシュボードの表示モデル。
// Detailが非nilの場合は請求書詳細モーダルを開いた状態で描画する。
type DashboardPage struct {
	Base
	Principal  *model.Principal
	Phase      overview.Phase
	Runs       []overview.Run
	Summary    []overview.StatusTotal
	Activities []model.Activity
	Detail     *DetailModal
}

// Loading はローディング表示が必要かどうかを返す。
func (p DashboardPage) Loading() bool {
	return p.Phase == overview.Loading
}

// Failed は取得失敗の表示が必要かどうかを返す。
func (p DashboardPage) Failed() bool {
	return p.Phase == overview.Failed
}

// FailureMessage は取得失敗時のメッセージ。
func (p DashboardPage) FailureMessage() string {
	return overview.FailureMessage
}

// DetailModal は請求書詳細モーダルの表示モデル。
type DetailModal struct {
	Invoice    model.Invoice
	Reminders  []model.Reminder
	Phase      overview.Phase
	Activities []model.Activity
}

// Loading はローディング表示が必要かどうかを返す。
func (d DetailModal) Loading() bool {
	return d.Phase == overview.Loading
}

// Failed は取得失敗の表示が必要かどうかを返す。
func (d DetailModal) Failed() bool {
	return d.Phase == overview.Failed
}

// NewDashboardPage は一覧ビューのスナップショットから表示モデルを組み立てる。
func NewDashboardPage(base Base, principal *model.Principal, snap overview.Snapshot) DashboardPage {
	page := DashboardPage{
		Base:      base,
		Principal: principal,
		Phase:     snap.Phase,
	}
	if snap.Phase == overview.Loaded {
		page.Runs = overview.Runs(snap.Invoices)
		page.Summary = overview.Summarize(snap.Invoices)
		page.Activities = snap.Activities
	}
	return page
}

// NewDetailModal は詳細ビューのスナップショットから表示モデルを組み立てる。
func NewDetailModal(invoice model.Invoice, snap overview.DetailSnapshot) *DetailModal {
	return &DetailModal{
		Invoice:    invoice,
		Reminders:  model.DefaultReminders,
		Phase:      snap.Phase,
		Activities: snap.Activities,
	}
}
