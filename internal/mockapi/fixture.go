// Package mockapi はローカル開発用に請求書とアクティビティを返すREST APIを提供する。
// フィクスチャはJSONファイルから読み込み、読み取り専用で公開する。
package mockapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hitoshi/invoicedash/internal/model"
)

//go:embed db.json
var defaultFixture []byte

// Fixture はAPIが返すデータ一式。
type Fixture struct {
	Invoices   []model.Invoice  `json:"invoices"`
	Activities []model.Activity `json:"activities"`
}

// LoadFixture はフィクスチャを読み込む。pathが空の場合は埋め込みのフィクスチャを使う。
func LoadFixture(path string) (*Fixture, error) {
	data := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
		}
		data = b
	}
	return ParseFixture(data)
}

// ParseFixture はJSONからフィクスチャを生成する。欠けているコレクションは空として扱う。
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if f.Invoices == nil {
		f.Invoices = []model.Invoice{}
	}
	if f.Activities == nil {
		f.Activities = []model.Activity{}
	}
	return &f, nil
}
