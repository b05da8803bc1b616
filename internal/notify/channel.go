// Package notify はグローバル通知チャネルを提供する。
// コンポーネントツリー外のコード（HTTPインターセプタ等）からモーダル・トーストの
// 表示を要求するための、プロセス全体で共有する単一リスナーのチャネル。
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/onthetop/internal/metrics"
)

// Kind は通知の種別。
type Kind string

const (
	// KindModal はユーザーの明示的な操作を要求するブロッキングモーダル。
	KindModal Kind = "modal"
	// KindToast は一定時間で自動消滅する一時的なトースト。
	KindToast Kind = "toast"
)

// Request はモーダル・トースト表示の要求。
// 左ボタンが副次操作（閉じる等）、右ボタンが主操作。
type Request struct {
	Kind            Kind
	Open            bool
	Message         string
	LeftButtonText  string
	RightButtonText string
	OnLeft          func()
	OnRight         func()
}

// Listener は通知要求を受け取る単一の消費者。
// 常時マウントされるモーダルホストがマウント時に1回登録する。
type Listener func(Request)

// Channel はプロセス全体で共有する通知チャネル。
// リスナーは常に1つであり、再登録は前のリスナーを上書きする。
// 要求のキューイングは行わず、最後の要求が勝つ。
type Channel struct {
	mu       sync.Mutex
	listener Listener
	seq      uint64
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewChannel はChannelの新しいインスタンスを生成する。
// アプリケーション起動時に1つだけ生成し、発火側と消費側の両方に注入する。
func NewChannel(collector metrics.MetricsCollector, logger *slog.Logger) *Channel {
	return &Channel{metrics: collector, logger: logger}
}

// Register はリスナーを登録する。既存のリスナーは上書きされる。
func (c *Channel) Register(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		c.logger.Warn("通知リスナーが再登録されました（前のリスナーを上書きします）")
	}
	c.listener = l
}

// Unregister はリスナーの登録を解除する。
// モーダルホストのアンマウント時に呼ぶ。
func (c *Channel) Unregister() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = nil
}

// Trigger は通知要求をリスナーに配送する。
// リスナー未登録の場合は安全なno-opとしてfalseを返す。
// リスナーの呼び出しはロック外で行う（リスナーが閉じる際に再度Triggerを呼ぶため）。
func (c *Channel) Trigger(req Request) bool {
	c.mu.Lock()
	c.seq++
	l := c.listener
	c.mu.Unlock()

	if l == nil {
		c.logger.Debug("通知リスナー未登録のため要求を破棄しました",
			slog.String("kind", string(req.Kind)),
			slog.String("message", req.Message),
		)
		return false
	}
	if req.Open {
		c.metrics.RecordNotification(string(req.Kind))
	}
	l(req)
	return true
}

// ShowToast はトーストを表示し、durationの経過後に自動で閉じる。
// 自動クローズは、その間に別の通知が発火していない場合のみ行う
// （後から来た要求を古いタイマーが消してしまわないようにするため）。
func (c *Channel) ShowToast(message string, duration time.Duration) {
	delivered := c.Trigger(Request{
		Kind:    KindToast,
		Open:    true,
		Message: message,
	})
	if !delivered {
		return
	}

	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()

	time.AfterFunc(duration, func() {
		c.mu.Lock()
		stillCurrent := c.seq == seq
		c.mu.Unlock()
		if stillCurrent {
			c.Trigger(Request{Kind: KindToast, Open: false})
		}
	})
}

// Dismiss は現在表示中の通知を閉じる要求を配送する。
func (c *Channel) Dismiss() {
	c.Trigger(Request{Open: false})
}
