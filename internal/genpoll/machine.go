// Package genpoll はAI画像生成ジョブのポーリング状態機械を提供する。
// 同時に追跡するジョブは1つのみで、どのページからでもプロセス全体の
// 共有状態として観測できる。散在するフラグではなく明示的な有限状態機械として
// idle → generating → {done | failed} → idle の遷移を管理する。
package genpoll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
)

// Status はクライアント側の生成ジョブ状態。
type Status string

const (
	// StatusIdle はジョブ未追跡の状態。
	StatusIdle Status = "idle"
	// StatusGenerating は生成中（ポーリング対象）の状態。
	StatusGenerating Status = "generating"
	// StatusDone は生成成功の終端状態。ユーザーの確認操作でidleに戻る。
	StatusDone Status = "done"
	// StatusFailed は生成失敗の終端状態。ユーザーの確認操作でidleに戻る。
	StatusFailed Status = "failed"
)

// StatusFetcher は生成ジョブ状態の取得インターフェース。api.Clientが実装する。
type StatusFetcher interface {
	GetGeneration(ctx context.Context, imageID int64) (*model.AIImage, error)
}

// Config はMachineの設定パラメータ。
type Config struct {
	// Interval はポーリング間隔（デフォルト: 10秒）。
	Interval time.Duration
	// ToastDuration は完了・失敗トーストの自動消滅までの時間（デフォルト: 2秒）。
	ToastDuration time.Duration
}

// DefaultConfig はデフォルトのポーリング設定を返す。
func DefaultConfig() Config {
	return Config{
		Interval:      10 * time.Second,
		ToastDuration: 2 * time.Second,
	}
}

// Machine は単一の生成ジョブを追跡する状態機械。
//
// 不変条件:
//   - 追跡するジョブは常に最大1つ。新しいStartは前のジョブの追跡を上書きする
//   - 終端状態（done/failed）からの遷移はAcknowledgeによる明示的な確認のみ
//   - Pauseはポーリングを止めるだけで状態とジョブIDは保持する（再開可能）
//   - 前のティックの状態取得が未完了の間、次のティックはスキップされる
type Machine struct {
	mu           sync.Mutex
	status       Status
	imageID      int64
	polling      bool
	tickInFlight bool
	cancel       context.CancelFunc

	config   Config
	fetcher  StatusFetcher
	notifier *notify.Channel
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewMachine はMachineの新しいインスタンスを生成する。
// 設定値が0以下の場合はデフォルト値を使用する。
func NewMachine(
	fetcher StatusFetcher,
	notifier *notify.Channel,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg Config,
) *Machine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = DefaultConfig().ToastDuration
	}
	return &Machine{
		status:   StatusIdle,
		config:   cfg,
		fetcher:  fetcher,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
	}
}

// Start は生成リクエスト送信後にジョブの追跡を開始する。
// 既に別ジョブを追跡中の場合は上書きする（多重生成の防止は上流の
// クォータチェックが担い、この状態機械では行わない）。
func (m *Machine) Start(imageID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLoopLocked()
	m.status = StatusGenerating
	m.imageID = imageID
	m.startLoopLocked()

	m.logger.Info("生成ジョブの追跡を開始しました",
		slog.Int64("image_id", imageID),
		slog.Duration("interval", m.config.Interval),
	)
}

// Pause はポーリングタイマーを停止する。状態とジョブIDは保持されるため、
// 観測コンポーネントのアンマウント時に呼んでもジョブの追跡自体は失われない。
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLoopLocked()
}

// Resume は生成中のジョブのポーリングを再開する。
// generating以外の状態、または既にポーリング中の場合はno-op。
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusGenerating || m.polling {
		return
	}
	m.startLoopLocked()
}

// Acknowledge は終端状態のジョブをユーザー確認済みとしてidleに戻す。
// 終端状態以外ではno-op。
func (m *Machine) Acknowledge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusDone && m.status != StatusFailed {
		return
	}
	m.status = StatusIdle
	m.imageID = 0
}

// Status は現在の状態を返す。
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ImageID は追跡中のジョブIDを返す。未追跡の場合は0。
func (m *Machine) ImageID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageID
}

// Polling はポーリングタイマーが動作中かを返す。
func (m *Machine) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polling
}

// startLoopLocked はポーリングループを起動する。呼び出し元でロックを取得していること。
func (m *Machine) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.polling = true
	go m.loop(ctx)
}

// stopLoopLocked はポーリングループを停止する。呼び出し元でロックを取得していること。
func (m *Machine) stopLoopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.polling = false
}

// loop は固定間隔でジョブ状態を照会する。
// コンテキストのキャンセル（Pause・終端到達・上書きStart）で終了する。
func (m *Machine) loop(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

// pollOnce は1回のポーリングを実行し、結果に応じて状態遷移する。
// 前回の照会が未完了の場合はこのティックをスキップする（重複照会の防止）。
func (m *Machine) pollOnce(ctx context.Context) {
	m.mu.Lock()
	if m.tickInFlight {
		m.mu.Unlock()
		m.metrics.RecordPollTick("skipped")
		return
	}
	if m.status != StatusGenerating {
		m.mu.Unlock()
		return
	}
	m.tickInFlight = true
	imageID := m.imageID
	m.mu.Unlock()

	image, err := m.fetcher.GetGeneration(ctx, imageID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickInFlight = false

	// 照会中にPause・Acknowledge・上書きStartが起きていたら結果を捨てる
	if m.status != StatusGenerating || m.imageID != imageID {
		return
	}

	// 照会自体の失敗は報告された失敗と同一に扱う（区別せず、リトライしない）
	if err != nil {
		m.logger.Error("生成ジョブの状態照会に失敗しました",
			slog.Int64("image_id", imageID),
			slog.String("error", err.Error()),
		)
		m.transitionToFailedLocked()
		return
	}

	switch image.State {
	case model.AIImageStateSuccess:
		m.status = StatusDone
		m.stopLoopLocked()
		m.metrics.RecordPollTick("done")
		m.logger.Info("生成ジョブが完了しました", slog.Int64("image_id", imageID))
		m.notifier.ShowToast("デスクセットアップ画像が完成しました。", m.config.ToastDuration)
	case model.AIImageStateFailed:
		m.transitionToFailedLocked()
	default:
		// 処理中: 状態変化なし
		m.metrics.RecordPollTick("pending")
	}
}

// transitionToFailedLocked はfailed終端への遷移を行う。呼び出し元でロックを取得していること。
// 失敗トーストは一定時間で自動消滅するが、状態はAcknowledgeまでfailedのまま残る。
func (m *Machine) transitionToFailedLocked() {
	m.status = StatusFailed
	m.stopLoopLocked()
	m.metrics.RecordPollTick("failed")
	m.logger.Warn("生成ジョブが失敗しました", slog.Int64("image_id", m.imageID))
	m.notifier.ShowToast("画像の生成に失敗しました。もう一度お試しください。", m.config.ToastDuration)
}
