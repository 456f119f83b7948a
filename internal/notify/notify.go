// Package notify はリダイレクトをまたいで1度だけ表示される通知を提供する。
package notify

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName は通知を保持するCookie名。
const CookieName = "invoicedash_notice"

// Kind は通知の種別。
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// 画面に表示する通知文言
const (
	MsgLoginSucceeded  = "Login successful!"
	MsgLoginFailed     = "Login failed. Please check your credentials."
	MsgAccountCreated  = "Account created successfully!"
	MsgLoggedOut       = "Successfully logged out!"
	MsgPasswordsDiffer = "Passwords do not match"
)

// Notice は1件の通知。
type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Success は成功通知を生成する。
func Success(message string) Notice {
	return Notice{Kind: KindSuccess, Message: message}
}

// Error はエラー通知を生成する。
func Error(message string) Notice {
	return Notice{Kind: KindError, Message: message}
}

// Writer は通知Cookieを書き込む。
type Writer struct {
	Secure bool
	Domain string
}

// Write は次の画面描画で表示する通知をCookieに保存する。
func (wr Writer) Write(w http.ResponseWriter, notice Notice) {
	normalized, ok := normalize(notice)
	if !ok {
		return
	}
	payload, err := json.Marshal(normalized)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		Domain:   wr.Domain,
		HttpOnly: true,
		Secure:   wr.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadAndClear は通知Cookieを読み取り、同時に削除する。
func (wr Writer) ReadAndClear(w http.ResponseWriter, r *http.Request) (Notice, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return Notice{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   wr.Domain,
		HttpOnly: true,
		Secure:   wr.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return decode(cookie.Value)
}

func decode(raw string) (Notice, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Notice{}, false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Notice{}, false
	}
	var notice Notice
	if err := json.Unmarshal(decoded, &notice); err != nil {
		return Notice{}, false
	}
	return normalize(notice)
}

func normalize(notice Notice) (Notice, bool) {
	notice.Message = strings.TrimSpace(notice.Message)
	if notice.Message == "" {
		return Notice{}, false
	}
	notice.Kind = Kind(strings.ToLower(strings.TrimSpace(string(notice.Kind))))
	switch notice.Kind {
	case KindSuccess, KindError:
		return notice, true
	default:
		return Notice{}, false
	}
}
