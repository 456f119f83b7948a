package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// IdPの種別
const (
	IdentityProviderLocal    = "local"
	IdentityProviderFirebase = "firebase"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity Provider
	IdentityProvider    string
	FirebaseAPIKey      string
	FirebaseIdentityURL string
	FirebaseTimeout     time.Duration

	// Data source
	DataSourceURL     string
	DataSourceTimeout time.Duration

	// Session
	SessionMaxAge         int
	SessionResolveTimeout time.Duration
	HolderIdleTTL         time.Duration

	// View
	ViewRenderWait time.Duration

	// Rate Limit
	RateLimitAuth int

	// Cleanup
	CleanupInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// LoadDotEnv はカレントディレクトリの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	var existing []string
	for _, name := range filenames {
		if _, err := os.Stat(name); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.IdentityProvider = strings.ToLower(getEnvString("IDENTITY_PROVIDER", IdentityProviderLocal))
	switch cfg.IdentityProvider {
	case IdentityProviderLocal:
	case IdentityProviderFirebase:
		cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
		if cfg.FirebaseAPIKey == "" {
			missing = append(missing, "FIREBASE_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_PROVIDER: %q", cfg.IdentityProvider)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FirebaseIdentityURL = getEnvString("FIREBASE_IDENTITY_URL", "")
	cfg.FirebaseTimeout = getEnvDuration("FIREBASE_TIMEOUT", 10*time.Second)
	cfg.DataSourceURL = strings.TrimRight(getEnvString("DATA_SOURCE_URL", "http://localhost:5000"), "/")
	cfg.DataSourceTimeout = getEnvDuration("DATA_SOURCE_TIMEOUT", 10*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionResolveTimeout = getEnvDuration("SESSION_RESOLVE_TIMEOUT", 3*time.Second)
	cfg.HolderIdleTTL = getEnvDuration("HOLDER_IDLE_TTL", 30*time.Minute)
	cfg.ViewRenderWait = getEnvDuration("VIEW_RENDER_WAIT", 5*time.Second)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

// MockAPIConfig はモックデータソースの起動に必要な設定。
// DATABASE_URL等のサーバー用必須項目は要求しない。
type MockAPIConfig struct {
	Port              string
	DataFile          string
	CORSAllowedOrigin string
}

// LoadMockAPI は環境変数からモックデータソースの設定を読み込む。
func LoadMockAPI() *MockAPIConfig {
	return &MockAPIConfig{
		Port:              getEnvString("MOCKAPI_PORT", "5000"),
		DataFile:          getEnvString("MOCKAPI_DATA_FILE", ""),
		CORSAllowedOrigin: getEnvString("CORS_ALLOWED_ORIGIN", ""),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
