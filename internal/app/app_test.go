package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/onthetop/internal/api"
	"github.com/hitoshi/onthetop/internal/devserver"
	"github.com/hitoshi/onthetop/internal/genpoll"
	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
	"github.com/hitoshi/onthetop/internal/optimistic"
	"github.com/hitoshi/onthetop/internal/pagination"
	"github.com/hitoshi/onthetop/internal/session"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestStack はスタブサーバーと、それに接続したクライアント一式を構築する。
func newTestStack(t *testing.T, postCount int) (*api.Client, *notify.Channel) {
	t.Helper()
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	srv := devserver.NewServer(devserver.NewStore(postCount), logger)
	ts := httptest.NewServer(srv.Router(nil))
	t.Cleanup(ts.Close)

	store, err := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetToken("test-token"); err != nil {
		t.Fatal(err)
	}

	channel := notify.NewChannel(metrics.Noop{}, logger)
	client := api.NewClient(api.ClientConfig{
		BaseURL:        ts.URL,
		RequestTimeout: 5 * time.Second,
		UploadTimeout:  5 * time.Second,
	}, store, channel, metrics.Noop{}, logger)

	return client, channel
}

func TestInit_LoadsConfigAndSetsUpLogging(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Init(io.Discard)
	if err != nil {
		t.Fatalf("Init() がエラーを返した: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestInit_InvalidBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "ftp://example.com")

	if _, err := Init(io.Discard); err == nil {
		t.Fatal("不正なAPI_BASE_URLでエラーが返らなかった")
	}
}

// 投稿一覧: スタブサーバーを相手にスクロール追記と条件変更のResetを通しで確認する。
func TestIntegration_PostListPagination(t *testing.T) {
	client, _ := newTestStack(t, 25)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	newFetch := func(sort model.PostSort) pagination.FetchFunc[*model.Post, model.PostCursor] {
		return func(ctx context.Context, cursor *model.PostCursor) (*pagination.Page[*model.Post, model.PostCursor], error) {
			page, err := client.ListPosts(ctx, api.ListPostsParams{
				Sort:   sort,
				Size:   10,
				Cursor: cursor,
			})
			if err != nil {
				return nil, err
			}
			return &pagination.Page[*model.Post, model.PostCursor]{
				Items:   page.Posts,
				Cursor:  &page.Pagination,
				HasNext: page.Pagination.HasNext,
			}, nil
		}
	}

	cfg := pagination.Config{ScrollThreshold: 150, ScrollDebounce: time.Millisecond}
	c := pagination.NewController("posts", newFetch(model.PostSortLatest), cfg, metrics.Noop{}, logger)

	ctx := context.Background()
	if err := c.FetchPage(ctx, true); err != nil {
		t.Fatalf("先頭ページの取得に失敗した: %v", err)
	}
	if c.Len() != 10 {
		t.Fatalf("先頭ページの件数 = %d, want 10", c.Len())
	}

	// スクロールで2ページ目・3ページ目を追記して終端へ
	for i := 0; i < 2; i++ {
		time.Sleep(5 * time.Millisecond) // デバウンス間隔を跨ぐ
		if err := c.OnScroll(ctx, 100); err != nil {
			t.Fatalf("スクロール追記に失敗した: %v", err)
		}
	}
	if c.Len() != 25 {
		t.Errorf("全ページ取得後の件数 = %d, want 25", c.Len())
	}
	if c.HasNext() {
		t.Error("終端到達後のHasNext() = true")
	}

	// 終端後のスクロールはリクエストを発行しない
	time.Sleep(5 * time.Millisecond)
	if err := c.OnScroll(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 25 {
		t.Errorf("終端後のスクロールで件数が変わった: %d", c.Len())
	}
}

// いいねトグル: スタブサーバーへの確認後にローカル状態へ反映されることを確認する。
func TestIntegration_LikeToggleConfirmThenUpdate(t *testing.T) {
	client, channel := newTestStack(t, 5)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	post, err := client.GetPost(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}

	toggler := optimistic.NewToggler(channel, metrics.Noop{}, logger, 10*time.Second)
	err = toggler.Do(context.Background(), optimistic.Toggle{
		Target:   model.TargetTypePost,
		TargetID: post.ID,
		Current:  post.Liked,
		Add: func(ctx context.Context) error {
			return client.AddLike(ctx, model.TargetTypePost, post.ID)
		},
		Remove: func(ctx context.Context) error {
			return client.RemoveLike(ctx, model.TargetTypePost, post.ID)
		},
		Apply: func(on bool) {
			post.Liked = on
			if on {
				post.LikeCount++
			} else {
				post.LikeCount--
			}
		},
	})
	if err != nil {
		t.Fatalf("トグルに失敗した: %v", err)
	}

	if !post.Liked {
		t.Error("トグル後のliked = false")
	}

	// サーバー側にも反映されている
	refetched, err := client.GetPost(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if !refetched.Liked {
		t.Error("サーバー側のliked = false")
	}
	if refetched.LikeCount != post.LikeCount {
		t.Errorf("サーバー側のlikeCount = %d, want %d", refetched.LikeCount, post.LikeCount)
	}
}

// 画像生成: 送信からポーリング終端までをスタブサーバー相手に通しで確認する。
func TestIntegration_GenerationPollToTerminal(t *testing.T) {
	client, channel := newTestStack(t, 1)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	imageID, err := client.SubmitGeneration(context.Background(), bytes.NewReader([]byte("img")), "desk.jpg", "MODERN")
	if err != nil {
		t.Fatalf("生成リクエストの送信に失敗した: %v", err)
	}

	machine := genpoll.NewMachine(client, channel, metrics.Noop{}, logger, genpoll.Config{
		Interval:      10 * time.Millisecond,
		ToastDuration: 10 * time.Second,
	})
	machine.Start(imageID)
	defer machine.Pause()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && machine.Status() != genpoll.StatusDone {
		time.Sleep(10 * time.Millisecond)
	}
	if machine.Status() != genpoll.StatusDone {
		t.Fatalf("終端に達しなかった: status = %v", machine.Status())
	}

	// 完成画像のURLが取得できる
	image, err := client.GetGeneration(context.Background(), imageID)
	if err != nil {
		t.Fatal(err)
	}
	if image.AfterImageURL == "" {
		t.Error("完成画像のafterImageUrlが空")
	}

	machine.Acknowledge()
	if machine.Status() != genpoll.StatusIdle {
		t.Errorf("Acknowledge後のstatus = %v, want idle", machine.Status())
	}
}

func TestRunHealthcheck_AgainstDevserver(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	srv := devserver.NewServer(devserver.NewStore(1), logger)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := &http.Server{Handler: srv.Router(nil)}
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	if err := runHealthcheck(port); err != nil {
		t.Errorf("runHealthcheck() がエラーを返した: %v", err)
	}
}

func TestRunHealthcheck_ServerDown(t *testing.T) {
	// 誰もlistenしていないポート
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	listener.Close()

	if err := runHealthcheck(port); err == nil {
		t.Error("停止中のサーバーでrunHealthcheck() がエラーを返さなかった")
	}
}
