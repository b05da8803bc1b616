// Package pagination はカーソル方式の無限スクロール一覧取得を制御する。
// 各ページで重複実装されていたパターンを、取得関数・ページサイズ・カーソル型で
// パラメータ化した1つの汎用コントローラに集約する。
package pagination

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/onthetop/internal/metrics"
)

// Page は1回の取得結果。Cursorはサーバーが発行した次ページ位置で、
// クライアントは内容を解釈せず次回リクエストにそのまま渡す。
type Page[T any, C any] struct {
	Items   []T
	Cursor  *C
	HasNext bool
}

// FetchFunc は1ページ分の取得を行う。cursorがnilの場合は先頭ページを要求する。
type FetchFunc[T any, C any] func(ctx context.Context, cursor *C) (*Page[T, C], error)

// Config はControllerの設定パラメータ。
type Config struct {
	// ScrollThreshold はコンテンツ下端から何px以内で次ページ取得をトリガーするか。
	ScrollThreshold int
	// ScrollDebounce は連続スクロールイベントのデバウンス間隔。
	ScrollDebounce time.Duration
}

// DefaultConfig はデフォルトのコントローラ設定を返す。
func DefaultConfig() Config {
	return Config{
		ScrollThreshold: 150,
		ScrollDebounce:  300 * time.Millisecond,
	}
}

// Controller は1つのリストインスタンスのカーソルページングを制御する。
//
// 不変条件:
//   - 同一世代では取得は常に直列化される（in-flightフラグによる再入防止）
//   - HasNext=falseはResetまで終端であり、以後の次ページ取得は発行されない
//   - 取得失敗時は既存のシーケンスとカーソルに触れない（同じトリガーから再試行可能）
//   - Reset後に届いた古い応答は世代カウンタにより破棄される
type Controller[T any, C any] struct {
	mu       sync.Mutex
	name     string
	fetch    FetchFunc[T, C]
	items    []T
	cursor   *C
	hasNext  bool
	inFlight bool
	gen      uint64

	threshold int
	limiter   *rate.Limiter

	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewController はControllerの新しいインスタンスを生成する。
// nameはログ・メトリクスのラベルに使用するリスト名。
func NewController[T any, C any](
	name string,
	fetch FetchFunc[T, C],
	cfg Config,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Controller[T, C] {
	if cfg.ScrollThreshold <= 0 {
		cfg.ScrollThreshold = DefaultConfig().ScrollThreshold
	}
	if cfg.ScrollDebounce <= 0 {
		cfg.ScrollDebounce = DefaultConfig().ScrollDebounce
	}
	return &Controller[T, C]{
		name:      name,
		fetch:     fetch,
		hasNext:   true,
		threshold: cfg.ScrollThreshold,
		limiter:   rate.NewLimiter(rate.Every(cfg.ScrollDebounce), 1),
		metrics:   collector,
		logger:    logger,
	}
}

// FetchPage は1ページ分を取得してシーケンスに反映する。
//
// first=trueの場合はカーソルなしで先頭ページを取得し、シーケンス全体を置き換える。
// first=falseの場合は保存済みカーソルで次ページを取得し、シーケンス末尾に追記する。
// 取得が既に実行中の場合、またはfirst=falseでカーソルが終端の場合はno-op。
// 失敗時は既存状態に触れずエラーを返す。
func (c *Controller[T, C]) FetchPage(ctx context.Context, first bool) error {
	c.mu.Lock()
	if c.inFlight {
		c.logger.Debug("取得実行中のためページ取得をスキップしました",
			slog.String("list", c.name),
		)
		c.mu.Unlock()
		return nil
	}
	if !first && !c.hasNext {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	gen := c.gen
	var cursor *C
	if !first {
		cursor = c.cursor
	}
	c.mu.Unlock()

	page, err := c.fetch(ctx, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if err != nil {
		// シーケンスとカーソルは据え置き（同じトリガーからの再試行を可能にする）
		c.logger.Error("ページ取得に失敗しました",
			slog.String("list", c.name),
			slog.Bool("first", first),
			slog.String("error", err.Error()),
		)
		return err
	}

	// Resetを跨いで届いた古い応答は破棄する（アンマウント・条件変更後の混入防止）
	if gen != c.gen {
		c.logger.Debug("世代の異なる応答を破棄しました",
			slog.String("list", c.name),
		)
		return nil
	}

	if first {
		c.items = append([]T(nil), page.Items...)
	} else {
		c.items = append(c.items, page.Items...)
	}
	c.cursor = page.Cursor
	c.hasNext = page.HasNext
	c.metrics.RecordPageFetch(c.name, first)

	c.logger.Info("ページを取得しました",
		slog.String("list", c.name),
		slog.Bool("first", first),
		slog.Int("page_items", len(page.Items)),
		slog.Int("total_items", len(c.items)),
		slog.Bool("has_next", page.HasNext),
	)
	return nil
}

// OnScroll はスクロールイベントからの次ページ取得トリガー。
// コンテンツ下端までの距離が閾値を超えている場合、またはデバウンス間隔内の
// 連続イベントの場合は何もしない。
func (c *Controller[T, C]) OnScroll(ctx context.Context, distanceFromBottom int) error {
	if distanceFromBottom > c.threshold {
		return nil
	}
	if !c.limiter.Allow() {
		return nil
	}
	return c.FetchPage(ctx, false)
}

// Reset はフィルタ・ソート条件の変更時にシーケンスとカーソルを破棄する。
// 実行中の取得があればその応答は世代カウンタにより破棄されるため、
// 直後の先頭ページ取得を妨げない。
func (c *Controller[T, C]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items = nil
	c.cursor = nil
	c.hasNext = true
	c.inFlight = false
}

// Items は現在のシーケンスのコピーを返す。
// 要素がポインタ型の場合、呼び出し側によるインプレース更新（楽観的トグル）は
// コントローラ保持のシーケンスにも反映される。
func (c *Controller[T, C]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Remove は条件に一致する要素をシーケンスから取り除く。
// ユーザーの明示的な削除操作後に呼び、その後の全面再取得までの表示を整える。
func (c *Controller[T, C]) Remove(match func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, item := range c.items {
		if !match(item) {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// Len は現在のシーケンス長を返す。
func (c *Controller[T, C]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HasNext はさらにページが存在するかを返す。
func (c *Controller[T, C]) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasNext
}

// InFlight は取得が実行中かを返す。
func (c *Controller[T, C]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
