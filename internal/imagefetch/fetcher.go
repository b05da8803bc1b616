// Package imagefetch は生成済みデスク画像の安全なダウンロードを提供する。
// 画像URLはサーバー返却値とはいえ外部CDNを指すため、safeurlにより
// プライベートIP・ループバック・メタデータIPへのアクセスをブロックする。
package imagefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// defaultMaxSize はダウンロードする画像の最大サイズ（10MiB）。
const defaultMaxSize = 10 << 20

// Fetcher は生成画像のダウンロードを行う。
// 完成画像のプリフェッチ（結果画面への遷移前の先読み）に使用する。
type Fetcher struct {
	client  *http.Client
	logger  *slog.Logger
	maxSize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// safeurlのDialer検証により、DNS解決後のIPアドレスもブロック対象と照合される。
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Fetcher{
		client:  safeurl.Client(config).Client,
		logger:  logger,
		maxSize: defaultMaxSize,
	}
}

// Fetch は画像URLからバイト列をダウンロードする。
// 最大サイズを超える画像はエラーを返す。
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("画像のダウンロードに失敗しました",
			slog.String("url", imageURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("画像サーバーがステータス %d を返しました", resp.StatusCode)
	}

	// maxSize+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("画像データの読み取りに失敗しました: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("画像サイズが上限を超えています: %d バイト超", f.maxSize)
	}

	return data, nil
}
