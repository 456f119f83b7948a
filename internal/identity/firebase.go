package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/invoicedash/internal/model"
)

const defaultFirebaseIdentityURL = "https://identitytoolkit.googleapis.com/v1"

// firebaseErrorCodes はIdentity Toolkitのエラーコードと、SDKが返すauth/*コード・分類の対応表。
var firebaseErrorCodes = map[string]struct {
	authCode string
	kind     Kind
}{
	"EMAIL_EXISTS":                {"auth/email-already-in-use", KindAccountExists},
	"INVALID_PASSWORD":            {"auth/wrong-password", KindInvalidCredential},
	"EMAIL_NOT_FOUND":             {"auth/user-not-found", KindInvalidCredential},
	"INVALID_LOGIN_CREDENTIALS":   {"auth/invalid-credential", KindInvalidCredential},
	"INVALID_EMAIL":               {"auth/invalid-email", KindInvalidCredential},
	"WEAK_PASSWORD":               {"auth/weak-password", KindUnclassified},
	"TOO_MANY_ATTEMPTS_TRY_LATER": {"auth/too-many-requests", KindUnclassified},
	"USER_DISABLED":               {"auth/user-disabled", KindUnclassified},
}

// FirebaseConfig はFirebase Authenticationの設定。
type FirebaseConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なURL
	IdentityURL string
}

// FirebaseAuthenticator はFirebase AuthenticationのREST APIでメール+パスワード認証を行う。
type FirebaseAuthenticator struct {
	config     FirebaseConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFirebaseAuthenticator はFirebaseAuthenticatorを生成する。
func NewFirebaseAuthenticator(config FirebaseConfig, httpClient *http.Client, logger *slog.Logger) *FirebaseAuthenticator {
	if config.IdentityURL == "" {
		config.IdentityURL = defaultFirebaseIdentityURL
	}
	config.IdentityURL = strings.TrimRight(config.IdentityURL, "/")
	return &FirebaseAuthenticator{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

type firebasePasswordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// firebaseAuthResponse はsignUp / signInWithPasswordのレスポンス。
type firebaseAuthResponse struct {
	IDToken     string `json:"idToken"`
	Email       string `json:"email"`
	LocalID     string `json:"localId"`
	DisplayName string `json:"displayName"`
}

type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// firebaseClaims はFirebase IDトークンのうち参照するクレーム。
type firebaseClaims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Firebase struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
	jwt.RegisteredClaims
}

// CreateAccount はFirebaseにアカウントを作成する。
func (a *FirebaseAuthenticator) CreateAccount(ctx context.Context, email, password string) (*model.Principal, error) {
	return a.call(ctx, "accounts:signUp", email, password)
}

// SignIn はFirebaseでメールアドレスとパスワードを検証する。
func (a *FirebaseAuthenticator) SignIn(ctx context.Context, email, password string) (*model.Principal, error) {
	return a.call(ctx, "accounts:signInWithPassword", email, password)
}

func (a *FirebaseAuthenticator) call(ctx context.Context, method, email, password string) (*model.Principal, error) {
	payload, err := json.Marshal(firebasePasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	endpoint := a.config.IdentityURL + "/" + method + "?key=" + url.QueryEscape(a.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("Firebase APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, &Error{Kind: KindUnclassified, Message: "Firebase: Error (auth/network-request-failed)."}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp firebaseErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			a.logger.Error("Firebase APIがエラーステータスを返しました",
				slog.String("method", method),
				slog.Int("http_status", resp.StatusCode),
			)
			return nil, &Error{Kind: KindUnclassified, Message: "Firebase: Error (auth/internal-error)."}
		}
		return nil, mapFirebaseError(errResp.Error.Message)
	}

	var authResp firebaseAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if authResp.LocalID == "" {
		return nil, fmt.Errorf("empty localId in %s response", method)
	}

	return a.principalFrom(&authResp), nil
}

// principalFrom はレスポンスとIDトークンのクレームからプリンシパルを組み立てる。
// IDトークンは発行元からTLSで直接受け取るため署名検証は行わない。
func (a *FirebaseAuthenticator) principalFrom(resp *firebaseAuthResponse) *model.Principal {
	p := &model.Principal{
		ID:          resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		ProviderID:  model.PasswordProviderID,
	}
	if resp.IDToken == "" {
		return p
	}

	var claims firebaseClaims
	if _, _, err := jwt.NewParser().ParseUnverified(resp.IDToken, &claims); err != nil {
		a.logger.Warn("IDトークンのクレームを読み取れませんでした", slog.String("error", err.Error()))
		return p
	}
	if claims.Name != "" {
		p.DisplayName = claims.Name
	}
	if claims.Firebase.SignInProvider != "" {
		p.ProviderID = claims.Firebase.SignInProvider
	}
	return p
}

// mapFirebaseError はIdentity ToolkitのエラーメッセージをSDKと同じ形式のエラーに変換する。
// メッセージは "WEAK_PASSWORD : Password should be at least 6 characters" のように詳細を伴う場合がある。
func mapFirebaseError(message string) *Error {
	code, detail, _ := strings.Cut(message, " : ")
	code = strings.TrimSpace(code)

	entry, ok := firebaseErrorCodes[code]
	if !ok {
		return &Error{Kind: KindUnclassified, Message: "Firebase: Error (auth/internal-error)."}
	}
	if detail != "" {
		return &Error{Kind: entry.kind, Message: fmt.Sprintf("Firebase: %s (%s).", strings.TrimSpace(detail), entry.authCode)}
	}
	return &Error{Kind: entry.kind, Message: fmt.Sprintf("Firebase: Error (%s).", entry.authCode)}
}

// compile-time interface check
var _ Authenticator = (*FirebaseAuthenticator)(nil)
