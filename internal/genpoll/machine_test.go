package genpoll

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// mockFetcher はStatusFetcherのテスト用モック。
type mockFetcher struct {
	getGenerationFunc func(ctx context.Context, imageID int64) (*model.AIImage, error)
	calls             atomic.Int32
}

func (m *mockFetcher) GetGeneration(ctx context.Context, imageID int64) (*model.AIImage, error) {
	m.calls.Add(1)
	if m.getGenerationFunc != nil {
		return m.getGenerationFunc(ctx, imageID)
	}
	return &model.AIImage{ID: imageID, State: model.AIImageStateGenerating}, nil
}

// toastRecorder は配送されたトーストのメッセージを記録する。
type toastRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *toastRecorder) listen(req notify.Request) {
	if req.Kind != notify.KindToast || !req.Open {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, req.Message)
}

func (r *toastRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func newTestMachine(fetcher StatusFetcher, interval time.Duration) (*Machine, *toastRecorder) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	channel := notify.NewChannel(metrics.Noop{}, logger)
	rec := &toastRecorder{}
	channel.Register(rec.listen)

	m := NewMachine(fetcher, channel, metrics.Noop{}, logger, Config{
		Interval:      interval,
		ToastDuration: 10 * time.Second,
	})
	return m, rec
}

// waitFor は条件が成立するまで待つ。タイムアウトでテストを失敗させる。
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("条件が成立しなかった: %s", msg)
}

func TestNewMachine_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	channel := notify.NewChannel(metrics.Noop{}, logger)

	m := NewMachine(&mockFetcher{}, channel, metrics.Noop{}, logger, Config{})
	if m.config.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s (default)", m.config.Interval)
	}
	if m.Status() != StatusIdle {
		t.Errorf("初期Status() = %v, want idle", m.Status())
	}
	if m.Polling() {
		t.Error("初期状態でPolling() = true")
	}
}

func TestMachine_Start_BeginsTracking(t *testing.T) {
	fetcher := &mockFetcher{}
	m, _ := newTestMachine(fetcher, time.Hour)
	defer m.Pause()

	m.Start(42)

	if m.Status() != StatusGenerating {
		t.Errorf("Start後のStatus() = %v, want generating", m.Status())
	}
	if m.ImageID() != 42 {
		t.Errorf("ImageID() = %d, want 42", m.ImageID())
	}
	if !m.Polling() {
		t.Error("Start後のPolling() = false")
	}
}

func TestMachine_Start_OverwritesPreviousJob(t *testing.T) {
	fetcher := &mockFetcher{}
	m, _ := newTestMachine(fetcher, time.Hour)
	defer m.Pause()

	m.Start(1)
	m.Start(2)

	if m.ImageID() != 2 {
		t.Errorf("上書きStart後のImageID() = %d, want 2", m.ImageID())
	}
	if m.Status() != StatusGenerating {
		t.Errorf("Status() = %v, want generating", m.Status())
	}
}

func TestMachine_PendingKeepsPolling(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return &model.AIImage{ID: imageID, State: model.AIImageStateGenerating}, nil
		},
	}
	m, rec := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	waitFor(t, func() bool { return fetcher.calls.Load() >= 3 }, "3回以上のポーリング")

	if m.Status() != StatusGenerating {
		t.Errorf("処理中応答後のStatus() = %v, want generating", m.Status())
	}
	if !m.Polling() {
		t.Error("処理中応答後のPolling() = false")
	}
	if msgs := rec.all(); len(msgs) != 0 {
		t.Errorf("処理中のトースト = %v, want なし", msgs)
	}
}

func TestMachine_SuccessTransitionsToDoneAndStopsTimer(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return &model.AIImage{ID: imageID, State: model.AIImageStateSuccess}, nil
		},
	}
	m, rec := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	waitFor(t, func() bool { return m.Status() == StatusDone }, "doneへの遷移")

	if m.Polling() {
		t.Error("done到達後もポーリングタイマーが動いている")
	}

	// タイマーが止まった後の追加照会がないことを確認する
	calls := fetcher.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if fetcher.calls.Load() != calls {
		t.Errorf("done到達後に照会が続いた: %d -> %d", calls, fetcher.calls.Load())
	}

	msgs := rec.all()
	if len(msgs) != 1 {
		t.Fatalf("完了トースト数 = %d, want 1", len(msgs))
	}
}

func TestMachine_ReportedFailureTransitionsToFailed(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return &model.AIImage{ID: imageID, State: model.AIImageStateFailed}, nil
		},
	}
	m, rec := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	waitFor(t, func() bool { return m.Status() == StatusFailed }, "failedへの遷移")

	if m.Polling() {
		t.Error("failed到達後もポーリングタイマーが動いている")
	}
	if msgs := rec.all(); len(msgs) != 1 {
		t.Errorf("失敗トースト数 = %d, want 1", len(msgs))
	}
}

func TestMachine_TransportErrorTreatedAsFailure(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return nil, errors.New("connection refused")
		},
	}
	m, rec := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	// 照会自体の失敗はリトライせず、報告された失敗と同じ終端に落とす
	m.Start(1)
	waitFor(t, func() bool { return m.Status() == StatusFailed }, "failedへの遷移")

	if msgs := rec.all(); len(msgs) != 1 {
		t.Errorf("失敗トースト数 = %d, want 1", len(msgs))
	}
}

func TestMachine_TerminalUntilAcknowledge(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return &model.AIImage{ID: imageID, State: model.AIImageStateFailed}, nil
		},
	}
	m, _ := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	waitFor(t, func() bool { return m.Status() == StatusFailed }, "failedへの遷移")

	// トーストの自動消滅とは無関係に、状態は確認操作までfailedのまま
	time.Sleep(50 * time.Millisecond)
	if m.Status() != StatusFailed {
		t.Errorf("確認前のStatus() = %v, want failed", m.Status())
	}

	m.Acknowledge()
	if m.Status() != StatusIdle {
		t.Errorf("Acknowledge後のStatus() = %v, want idle", m.Status())
	}
	if m.ImageID() != 0 {
		t.Errorf("Acknowledge後のImageID() = %d, want 0", m.ImageID())
	}
}

func TestMachine_Acknowledge_NoOpWhileGenerating(t *testing.T) {
	m, _ := newTestMachine(&mockFetcher{}, time.Hour)
	defer m.Pause()

	m.Start(1)
	m.Acknowledge()

	if m.Status() != StatusGenerating {
		t.Errorf("生成中のAcknowledge後のStatus() = %v, want generating", m.Status())
	}
}

func TestMachine_PauseKeepsStateAndStopsPolling(t *testing.T) {
	fetcher := &mockFetcher{}
	m, _ := newTestMachine(fetcher, 10*time.Millisecond)

	m.Start(7)
	waitFor(t, func() bool { return fetcher.calls.Load() >= 1 }, "最初のポーリング")

	m.Pause()

	if m.Polling() {
		t.Error("Pause後のPolling() = true")
	}
	// 状態とジョブIDはアンマウント後も保持される
	if m.Status() != StatusGenerating {
		t.Errorf("Pause後のStatus() = %v, want generating", m.Status())
	}
	if m.ImageID() != 7 {
		t.Errorf("Pause後のImageID() = %d, want 7", m.ImageID())
	}

	calls := fetcher.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if fetcher.calls.Load() != calls {
		t.Errorf("Pause後も照会が続いた: %d -> %d", calls, fetcher.calls.Load())
	}
}

func TestMachine_ResumeContinuesToTerminal(t *testing.T) {
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			return &model.AIImage{ID: imageID, State: model.AIImageStateSuccess}, nil
		},
	}
	m, _ := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	m.Pause()

	m.Resume()
	if !m.Polling() {
		t.Fatal("Resume後のPolling() = false")
	}
	waitFor(t, func() bool { return m.Status() == StatusDone }, "再開後のdone到達")
}

func TestMachine_Resume_NoOpWhenIdle(t *testing.T) {
	m, _ := newTestMachine(&mockFetcher{}, 10*time.Millisecond)

	m.Resume()

	if m.Polling() {
		t.Error("idle状態のResumeでポーリングが開始された")
	}
}

func TestMachine_SlowFetchSkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	fetcher := &mockFetcher{
		getGenerationFunc: func(ctx context.Context, imageID int64) (*model.AIImage, error) {
			<-release
			return &model.AIImage{ID: imageID, State: model.AIImageStateSuccess}, nil
		},
	}
	m, _ := newTestMachine(fetcher, 10*time.Millisecond)
	defer m.Pause()

	m.Start(1)
	waitFor(t, func() bool { return fetcher.calls.Load() >= 1 }, "最初のポーリング開始")

	// 照会が間隔より長くかかる間、次のティックはスキップされる
	time.Sleep(80 * time.Millisecond)
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("照会中の重複呼び出し数 = %d, want 1", got)
	}

	close(release)
	waitFor(t, func() bool { return m.Status() == StatusDone }, "done到達")
}
