package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL string

	// Timeout
	// RequestTimeoutは一覧取得・トグル等の軽量リクエスト用、
	// UploadTimeoutは画像アップロードを伴うmultipartリクエスト用。
	// 操作クラスごとに1つのタイムアウトポリシーを明示的に適用する。
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// Pagination
	PageSize        int
	ScrollThreshold int           // コンテンツ下端から何px以内で次ページ取得をトリガーするか
	ScrollDebounce  time.Duration // 連続スクロールイベントのデバウンス間隔

	// Generation polling
	PollInterval time.Duration

	// Notification
	ToastDuration time.Duration

	// Session
	SessionFile string

	// Logging
	LogLevel string

	// Devserver
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがあれば先に読み込む（未存在は無視）。
// API_BASE_URLが不正なURLの場合はエラーを返す。
func Load() (*Config, error) {
	// .envファイルの読み込み（存在しない場合は何もしない）
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.APIBaseURL = getEnvString("API_BASE_URL", "http://localhost:8080")
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("API_BASE_URL のパースに失敗しました: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("API_BASE_URL のスキームが不正です: %q (http/httpsのみ許可)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL にホストが含まれていません: %q", cfg.APIBaseURL)
	}

	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 8*time.Second)
	cfg.UploadTimeout = getEnvDuration("UPLOAD_TIMEOUT", 60*time.Second)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 10)
	cfg.ScrollThreshold = getEnvInt("SCROLL_THRESHOLD", 150)
	cfg.ScrollDebounce = getEnvDuration("SCROLL_DEBOUNCE", 300*time.Millisecond)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 10*time.Second)
	cfg.ToastDuration = getEnvDuration("TOAST_DURATION", 2*time.Second)
	cfg.SessionFile = getEnvString("SESSION_FILE", ".onthetop-session.json")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
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
