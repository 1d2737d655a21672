package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// bcryptが受け付けるコストの範囲
	minBcryptCost = 4
	maxBcryptCost = 31

	maxDirectoryPageSize = 1000
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Password
	BcryptCost int

	// Rate Limit（req/min）
	RateLimitGeneral    int
	RateLimitCredential int

	// Directory
	DirectoryPageSize int

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数は未設定のものをまとめてエラーにする。
// 任意項目は解釈できない値のとき既定値を使う。
func Load() (*Config, error) {
	cfg := &Config{}

	required := []struct {
		key  string
		dest *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"GOOGLE_CLIENT_ID", &cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL},
		{"SESSION_SECRET", &cfg.SessionSecret},
		{"BASE_URL", &cfg.BaseURL},
	}
	var missing []string
	for _, r := range required {
		*r.dest = os.Getenv(r.key)
		if *r.dest == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute http(s) URL: %q", cfg.BaseURL)
	}
	cfg.CookieSecure = base.Scheme == "https"

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.BcryptCost = getEnvIntInRange("BCRYPT_COST", 10, minBcryptCost, maxBcryptCost)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCredential = getEnvInt("RATE_LIMIT_CREDENTIAL", 10)
	cfg.DirectoryPageSize = getEnvIntInRange("DIRECTORY_PAGE_SIZE", maxDirectoryPageSize, 1, maxDirectoryPageSize)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LoadDotEnv は指定された.envファイルを環境変数として読み込む。
// 存在しないファイルは無視する。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
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

// getEnvIntInRange は[lo, hi]外の値を既定値に置き換える。
func getEnvIntInRange(key string, defaultVal, lo, hi int) int {
	v := getEnvInt(key, defaultVal)
	if v < lo || v > hi {
		return defaultVal
	}
	return v
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
