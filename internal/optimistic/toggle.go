// Package optimistic はいいね・スクラップ等の可逆なトグル操作を扱う。
// リモート確認後にローカル状態を反映するconfirm-then-update方式に統一し、
// ロールバックを不要にしている（失敗時はそもそも状態に触れない）。
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
)

// Toggle は1回のトグル操作の記述。
// Currentの値によりAddとRemoveのどちらを呼ぶかが決まる。
type Toggle struct {
	Target   model.TargetType
	TargetID int64
	// Current は操作前のフラグ値。falseならAdd、trueならRemoveを呼ぶ。
	Current bool
	Add     func(ctx context.Context) error
	Remove  func(ctx context.Context) error
	// Apply はリモート確認成功後にローカル状態を反映する。
	// 引数は反転後のフラグ値。シーケンス内の該当要素のフラグとカウントを更新する。
	Apply func(on bool)
	// SuccessMessage が空でない場合、成功時にトーストを表示する。
	SuccessMessage string
	// FailureMessage が空の場合はデフォルトの失敗メッセージを使う。
	FailureMessage string
}

// Toggler はトグル操作の実行器。
// 同一対象への連打は対象キー単位のin-flight集合で無視する
// （商品スクラップのみ実装されていた無効化を全呼び出し箇所に標準化）。
type Toggler struct {
	mu       sync.Mutex
	inFlight map[string]struct{}

	notifier      *notify.Channel
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	toastDuration time.Duration
}

// NewToggler はTogglerの新しいインスタンスを生成する。
func NewToggler(
	notifier *notify.Channel,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	toastDuration time.Duration,
) *Toggler {
	return &Toggler{
		inFlight:      make(map[string]struct{}),
		notifier:      notifier,
		metrics:       collector,
		logger:        logger,
		toastDuration: toastDuration,
	}
}

// Do はトグル操作を実行する。
//
//   - 同一対象への操作が実行中の場合はno-op
//   - リモート成功時のみApplyでローカル状態を反映し、成功トーストを表示する
//   - 401の場合は状態に触れずトーストも出さない（グローバルのログイン
//     プロンプトが既に発火しているため）。エラーも返さない
//   - それ以外の失敗時は状態に触れず、失敗トーストを表示してエラーを返す
func (t *Toggler) Do(ctx context.Context, tg Toggle) error {
	key := fmt.Sprintf("%s:%d", tg.Target, tg.TargetID)

	t.mu.Lock()
	if _, running := t.inFlight[key]; running {
		t.mu.Unlock()
		t.logger.Debug("同一対象のトグル実行中のため操作を無視しました",
			slog.String("target", key),
		)
		return nil
	}
	t.inFlight[key] = struct{}{}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.inFlight, key)
		t.mu.Unlock()
	}()

	action := tg.Add
	if tg.Current {
		action = tg.Remove
	}

	if err := action(ctx); err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			return nil
		}

		t.metrics.RecordToggleFailure(string(tg.Target))
		t.logger.Error("トグル操作に失敗しました",
			slog.String("target", key),
			slog.Bool("current", tg.Current),
			slog.String("error", err.Error()),
		)

		msg := tg.FailureMessage
		if msg == "" {
			msg = "操作に失敗しました。しばらく待ってから再度お試しください。"
		}
		t.notifier.ShowToast(msg, t.toastDuration)
		return err
	}

	tg.Apply(!tg.Current)
	if tg.SuccessMessage != "" {
		t.notifier.ShowToast(tg.SuccessMessage, t.toastDuration)
	}
	return nil
}
