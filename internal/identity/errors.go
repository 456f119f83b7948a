package identity

import "errors"

// Kind はIdPエラーの分類。
type Kind int

const (
	// KindUnclassified は分類できないエラー。
	KindUnclassified Kind = iota
	// KindInvalidCredential はメールアドレスまたはパスワードが不正なことを示す。
	KindInvalidCredential
	// KindAccountExists は同じメールアドレスのアカウントが既に存在することを示す。
	KindAccountExists
)

// String はKindの名前を返す。
func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindAccountExists:
		return "account_exists"
	default:
		return "unclassified"
	}
}

// Error はIdPが返した人間向けメッセージ付きのエラー。
// Messageはそのまま画面に表示される。
type Error struct {
	Kind    Kind
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Message
}

// KindOf はエラーチェーンからIdPエラーの分類を取り出す。
// IdPエラーでない場合はKindUnclassifiedを返す。
func KindOf(err error) Kind {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Kind
	}
	return KindUnclassified
}

// MessageOf は画面表示用のメッセージを返す。
// IdPエラーでない場合は汎用メッセージを返す。
func MessageOf(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) && idErr.Message != "" {
		return idErr.Message
	}
	return "An unexpected error occurred. Please try again."
}
