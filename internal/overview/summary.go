package overview

import (
	"strconv"
	"strings"

	"github.com/hitoshi/invoicedash/internal/model"
)

// StatusTotal はステータスごとの件数と金額の合計。
type StatusTotal struct {
	Status model.InvoiceStatus
	Count  int
	Amount float64
}

// Summarize は取得した請求書をPaid・Overdue・Draft・Unpaidの順に集計する。
// 数値として解釈できない金額は件数にのみ含める。
func Summarize(invoices []model.Invoice) []StatusTotal {
	totals := []StatusTotal{
		{Status: model.InvoiceStatusPaid},
		{Status: model.InvoiceStatusOverdue},
		{Status: model.InvoiceStatusDraft},
		{Status: model.InvoiceStatusUnpaid},
	}
	for _, inv := range invoices {
		for i := range totals {
			if !inv.Status.Is(totals[i].Status) {
				continue
			}
			totals[i].Count++
			if amount, ok := ParseAmount(inv.Amount); ok {
				totals[i].Amount += amount
			}
			break
		}
	}
	return totals
}

// ParseAmount は "1,311,750.12" や "$500" のような金額文字列を数値に変換する。
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
