// Package app はアプリケーションの起動とワイヤリングを行う。
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/onthetop/internal/api"
	"github.com/hitoshi/onthetop/internal/config"
	"github.com/hitoshi/onthetop/internal/content"
	"github.com/hitoshi/onthetop/internal/devserver"
	"github.com/hitoshi/onthetop/internal/genpoll"
	"github.com/hitoshi/onthetop/internal/imagefetch"
	"github.com/hitoshi/onthetop/internal/logger"
	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
	"github.com/hitoshi/onthetop/internal/optimistic"
	"github.com/hitoshi/onthetop/internal/pagination"
	"github.com/hitoshi/onthetop/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandDevserver:
		return runDevserver(cfg)
	case CommandDemo:
		return runDemo(cfg)
	default:
		return runDemo(cfg)
	}
}

// runDevserver はスタブAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runDevserver(cfg *config.Config) error {
	registry := prometheus.NewRegistry()

	store := devserver.NewStore(25)
	srv := devserver.NewServer(store, slog.Default())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Router(registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("devserver starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down devserver...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("devserver stopped gracefully")
	return nil
}

// runDemo はAPIサーバーに対してクライアントフローを一通り実行する。
// 投稿一覧の先頭ページ取得、スクロールによる次ページ追記、いいねトグル、
// 画像生成の送信とポーリングを順に行い、各段階の結果をログに出力する。
func runDemo(cfg *config.Config) error {
	// 1. セッションの読み込み（未ログインならデモ用トークンを保存する）
	store, err := session.NewStore(cfg.SessionFile)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !store.IsAuthenticated() {
		if err := store.SetToken("demo-token"); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}

	// 2. メトリクスと通知チャネル（モーダル・トーストはログ出力で代替する）
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	channel := notify.NewChannel(collector, slog.Default())
	channel.Register(func(req notify.Request) {
		slog.Info("notification",
			slog.String("kind", string(req.Kind)),
			slog.Bool("open", req.Open),
			slog.String("message", req.Message),
		)
	})
	defer channel.Unregister()

	// 3. APIクライアント
	client := api.NewClient(api.ClientConfig{
		BaseURL:        cfg.APIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
		OnLoginRequired: func() {
			slog.Info("login requested from prompt")
		},
	}, store, channel, collector, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 4. 投稿一覧のカーソルページング
	sanitizer := content.NewSanitizer()
	controller := pagination.NewController(
		"posts",
		func(ctx context.Context, cursor *model.PostCursor) (*pagination.Page[*model.Post, model.PostCursor], error) {
			page, err := client.ListPosts(ctx, api.ListPostsParams{
				Category: model.PostCategoryAll,
				Sort:     model.PostSortLatest,
				Size:     cfg.PageSize,
				Cursor:   cursor,
			})
			if err != nil {
				return nil, err
			}
			return &pagination.Page[*model.Post, model.PostCursor]{
				Items:   page.Posts,
				Cursor:  &page.Pagination,
				HasNext: page.Pagination.HasNext,
			}, nil
		},
		pagination.Config{
			ScrollThreshold: cfg.ScrollThreshold,
			ScrollDebounce:  cfg.ScrollDebounce,
		},
		collector,
		slog.Default(),
	)

	if err := controller.FetchPage(ctx, true); err != nil {
		return fmt.Errorf("failed to fetch first page: %w", err)
	}
	slog.Info("first page loaded", slog.Int("count", controller.Len()))

	// 下端到達を模してスクロールイベントを発火する
	if err := controller.OnScroll(ctx, cfg.ScrollThreshold/2); err != nil {
		return fmt.Errorf("failed to fetch next page: %w", err)
	}
	slog.Info("next page appended",
		slog.Int("count", controller.Len()),
		slog.Bool("has_next", controller.HasNext()),
	)

	posts := controller.Items()
	if len(posts) == 0 {
		return errors.New("no posts returned from server")
	}
	for _, p := range posts[:min(3, len(posts))] {
		slog.Info("post",
			slog.Int64("post_id", p.ID),
			slog.String("title", p.Title),
			slog.String("preview", content.Preview(sanitizer.Sanitize(p.Content), 40)),
		)
	}

	// 5. 先頭の投稿にいいねを付ける（確認後更新）
	toggler := optimistic.NewToggler(channel, collector, slog.Default(), cfg.ToastDuration)
	target := posts[0]
	err = toggler.Do(ctx, optimistic.Toggle{
		Target:   model.TargetTypePost,
		TargetID: target.ID,
		Current:  target.Liked,
		Add: func(ctx context.Context) error {
			return client.AddLike(ctx, model.TargetTypePost, target.ID)
		},
		Remove: func(ctx context.Context) error {
			return client.RemoveLike(ctx, model.TargetTypePost, target.ID)
		},
		Apply: func(on bool) {
			target.Liked = on
			if on {
				target.LikeCount++
			} else {
				target.LikeCount--
			}
		},
		SuccessMessage: "いいねしました。",
	})
	if err != nil {
		return fmt.Errorf("failed to toggle like: %w", err)
	}
	slog.Info("like toggled",
		slog.Int64("post_id", target.ID),
		slog.Bool("liked", target.Liked),
		slog.Int("like_count", target.LikeCount),
	)

	// 6. AI画像生成の送信とポーリング
	imageID, err := client.SubmitGeneration(ctx, bytes.NewReader(demoImage()), "desk.png", "MODERN")
	if err != nil {
		return fmt.Errorf("failed to submit generation: %w", err)
	}
	slog.Info("generation submitted", slog.Int64("ai_image_id", imageID))

	machine := genpoll.NewMachine(client, channel, collector, slog.Default(), genpoll.Config{
		Interval:      cfg.PollInterval,
		ToastDuration: cfg.ToastDuration,
	})
	machine.Start(imageID)
	defer machine.Pause()

	status, err := waitForTerminal(ctx, machine)
	if err != nil {
		return err
	}
	slog.Info("generation finished", slog.String("status", string(status)))

	// 完成画像を先読みしてから結果確認を通知する
	if status == genpoll.StatusDone {
		image, err := client.GetGeneration(ctx, imageID)
		if err != nil {
			return fmt.Errorf("failed to load generation result: %w", err)
		}
		fetcher := imagefetch.NewFetcher(cfg.RequestTimeout, slog.Default())
		if data, err := fetcher.Fetch(ctx, image.AfterImageURL); err != nil {
			// デモ環境のCDN URLはダミーのため、先読み失敗は致命的でない
			slog.Warn("image prefetch failed",
				slog.String("url", image.AfterImageURL),
				slog.String("error", err.Error()),
			)
		} else {
			slog.Info("image prefetched", slog.Int("bytes", len(data)))
		}
	}
	machine.Acknowledge()

	slog.Info("demo completed")
	return nil
}

// waitForTerminal は生成ポーリングが終端状態に達するまで待つ。
func waitForTerminal(ctx context.Context, machine *genpoll.Machine) (genpoll.Status, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return machine.Status(), fmt.Errorf("generation polling did not finish: %w", ctx.Err())
		case <-ticker.C:
			switch status := machine.Status(); status {
			case genpoll.StatusDone, genpoll.StatusFailed:
				return status, nil
			}
		}
	}
}

// demoImage は生成リクエストに添付する最小のPNGバイト列を返す。
func demoImage() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// devserverの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
