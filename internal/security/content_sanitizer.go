// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はデータソースから受け取ったアクティビティの説明文をサニタイズする。
// bluemondayの許可リストベースのポリシーで、インラインの強調とリンクだけを通過させる。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はデータソース由来の表示テキストのサニタイズ機能のインターフェース。
type ContentSanitizerService interface {
	// Sanitize は説明文をサニタイズして安全なHTMLを返す。
	// 許可タグ（strong, em, b, i, br, a）以外は除去され、テキストは保持される。
	Sanitize(rawHTML string) string
	// AvatarURL はアバター画像URLがhttpまたはhttpsの絶対URLであればそのまま返し、
	// それ以外は空文字列を返す。
	AvatarURL(raw string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("strong", "em", "b", "i", "br")

	// リンクは絶対URLのみ。新しいタブで開き、参照元を送らない
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize は説明文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// AvatarURL はアバター画像URLを検証する。
func (s *contentSanitizer) AvatarURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
