// Package model はドメインモデルを定義する。
package model

import "strings"

// InvoiceStatus は請求書のステータスを表す。
// データソースから受け取った値をそのまま保持し、比較は大文字小文字を区別しない。
type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
	InvoiceStatusDraft   InvoiceStatus = "Draft"
	InvoiceStatusUnpaid  InvoiceStatus = "Unpaid"
)

// Is はステータスが指定値と一致するかを大文字小文字を区別せずに判定する。
func (s InvoiceStatus) Is(other InvoiceStatus) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(other))
}

// Invoice はRESTデータソースから取得した請求書を表す。
// 表示専用で、アプリケーションは変更も検証もしない。
type Invoice struct {
	ID        string        `json:"id"`
	DueDate   string        `json:"dueDate"`
	Amount    string        `json:"amount"`
	Status    InvoiceStatus `json:"status"`
	DateGroup string        `json:"dateGroup,omitempty"`
}

// Activity はRESTデータソースから取得したアカウントアクティビティを表す。
type Activity struct {
	Avatar      string `json:"avatar"`
	Name        string `json:"name"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

// Reminder は請求書詳細に表示する支払いリマインダーの設定を表す。
type Reminder struct {
	Label     string
	Scheduled bool
}

// DefaultReminders は請求書詳細に表示するリマインダーの固定リスト。
var DefaultReminders = []Reminder{
	{Label: "14 days before due date", Scheduled: true},
	{Label: "7 days before due date", Scheduled: true},
	{Label: "3 days before due date"},
	{Label: "24 hrs before due date"},
	{Label: "On the due date"},
}
