// Package api はOnTheTop REST APIのクライアントを提供する。
// 全リクエストへの認証ヘッダー付与、操作クラス別のタイムアウトポリシー、
// 401応答のグローバル通知チャネルへの変換を一箇所で行う。
package api

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
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
)

// TokenSource はリクエスト構築時にアクセストークンを提供する。
// session.Storeが実装する。
type TokenSource interface {
	Token() string
}

// ClientConfig はClientの設定パラメータ。
type ClientConfig struct {
	// BaseURL はAPIサーバーのベースURL（末尾スラッシュなし）。
	BaseURL string
	// RequestTimeout は一覧取得・トグル等の軽量リクエストのタイムアウト。
	RequestTimeout time.Duration
	// UploadTimeout は画像アップロードを伴うリクエストのタイムアウト。
	UploadTimeout time.Duration
	// OnLoginRequired は401応答時のログインモーダルの主ボタンで実行される。
	// 通常はログイン画面への遷移を行う。
	OnLoginRequired func()
}

// Client はOnTheTop REST APIのクライアント。
// 軽量リクエスト用とアップロード用で別のhttp.Clientを保持し、
// 操作クラスごとに一貫したタイムアウトを適用する。
type Client struct {
	baseURL         string
	httpClient      *http.Client
	uploadClient    *http.Client
	tokens          TokenSource
	notifier        *notify.Channel
	metrics         metrics.MetricsCollector
	logger          *slog.Logger
	onLoginRequired func()
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	cfg ClientConfig,
	tokens TokenSource,
	notifier *notify.Channel,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Client {
	return &Client{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		uploadClient:    &http.Client{Timeout: cfg.UploadTimeout},
		tokens:          tokens,
		notifier:        notifier,
		metrics:         collector,
		logger:          logger,
		onLoginRequired: cfg.OnLoginRequired,
	}
}

// envelope はAPIレスポンスの共通ラッパー。全レスポンスは{"data": ...}形式。
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// errorBody はAPIエラーレスポンスの統一フォーマット。
type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusError はHTTPステータス分類のセンチネルエラーとサーバー返却の
// APIErrorを束ねる。errors.Isで分類を、errors.Asで詳細を取り出せる。
type statusError struct {
	sentinel error
	apiErr   *model.APIError
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %s", e.sentinel, e.apiErr.Message)
}

func (e *statusError) Unwrap() []error {
	return []error{e.sentinel, e.apiErr}
}

// do はHTTPリクエストを実行し、成功時はレスポンスのdataフィールドをoutにデコードする。
// 401応答はグローバル通知チャネルへのログインプロンプト発火に変換した上で
// model.ErrUnauthorizedとして呼び出し元に返す。リトライは行わないため、
// 1リクエストにつきプロンプトの発火は最大1回となる。
func (c *Client) do(ctx context.Context, client *http.Client, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// トークンはリクエスト構築時に1回読み取り、リクエスト中は不変として扱う
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	c.metrics.RecordAPILatency(time.Since(start))
	if err != nil {
		c.metrics.RecordAPIRequest(method, 0)
		c.logger.Error("APIリクエストの実行に失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("APIリクエストの実行に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest(method, resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("レスポンスdataフィールドのパースに失敗しました: %w", err)
		}
		return nil
	}

	return c.handleErrorStatus(method, path, resp)
}

// handleErrorStatus はエラーステータスをエラー分類に変換する。
func (c *Client) handleErrorStatus(method, path string, resp *http.Response) error {
	apiErr := parseErrorBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		// インターセプタ経路: コンポーネント状態に触れられないコードからでも
		// 通知チャネル経由でログインプロンプトを表示できる
		c.notifier.Trigger(notify.LoginPrompt(c.onLoginRequired))
		if apiErr == nil {
			apiErr = model.NewLoginRequiredError()
		}
		return &statusError{sentinel: model.ErrUnauthorized, apiErr: apiErr}
	case http.StatusForbidden:
		if apiErr == nil {
			apiErr = model.NewMembershipRequiredError()
		}
		return &statusError{sentinel: model.ErrForbidden, apiErr: apiErr}
	case http.StatusNotFound:
		if apiErr == nil {
			apiErr = model.NewInvalidRequestError("対象が見つかりません")
		}
		return &statusError{sentinel: model.ErrNotFound, apiErr: apiErr}
	case http.StatusBadRequest:
		if apiErr == nil {
			apiErr = model.NewInvalidRequestError("リクエスト形式が不正です")
		}
		return &statusError{sentinel: model.ErrBadRequest, apiErr: apiErr}
	default:
		c.logger.Error("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("APIがステータス %d を返しました", resp.StatusCode)
	}
}

// parseErrorBody はエラーレスポンスボディをAPIErrorに変換する。
// パースできない場合はnilを返す。
func parseErrorBody(r io.Reader) *model.APIError {
	var body errorBody
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Code == "" {
		return nil
	}
	return &model.APIError{
		Code:     body.Code,
		Message:  body.Message,
		Category: body.Category,
		Action:   body.Action,
	}
}

// get はGETリクエストを実行する。
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, c.httpClient, http.MethodGet, path, query, nil, "", out)
}

// postJSON はJSONボディ付きのPOSTリクエストを実行する。
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
	}
	return c.do(ctx, c.httpClient, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", out)
}

// patchJSON はJSONボディ付きのPATCHリクエストを実行する。
func (c *Client) patchJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
	}
	return c.do(ctx, c.httpClient, http.MethodPatch, path, nil, bytes.NewReader(data), "application/json", out)
}

// deleteJSON はJSONボディ付きのDELETEリクエストを実行する。
// いいね・スクラップ解除はDELETEにボディを伴う（サーバー側の契約）。
func (c *Client) deleteJSON(ctx context.Context, path string, body any) error {
	var r io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, c.httpClient, http.MethodDelete, path, nil, r, contentType, nil)
}
