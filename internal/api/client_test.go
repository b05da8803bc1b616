package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
	"github.com/hitoshi/onthetop/internal/notify"
)

// --- モック定義 ---

// mockTokenSource はTokenSourceのテスト用モック。
type mockTokenSource struct {
	token string
}

func (m *mockTokenSource) Token() string {
	return m.token
}

// modalRecorder は通知チャネルに配送されたモーダル要求を記録する。
type modalRecorder struct {
	mu       sync.Mutex
	requests []notify.Request
}

func (r *modalRecorder) listen(req notify.Request) {
	if req.Kind != notify.KindModal {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *modalRecorder) all() []notify.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Request(nil), r.requests...)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestClient(t *testing.T, serverURL, token string, onLogin func()) (*Client, *modalRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	channel := notify.NewChannel(metrics.Noop{}, logger)
	rec := &modalRecorder{}
	channel.Register(rec.listen)

	client := NewClient(ClientConfig{
		BaseURL:         serverURL,
		RequestTimeout:  5 * time.Second,
		UploadTimeout:   5 * time.Second,
		OnLoginRequired: onLogin,
	}, &mockTokenSource{token: token}, channel, metrics.Noop{}, logger)

	return client, rec
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// --- リクエスト構築 ---

func TestClient_AttachesRequestHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		writeData(w, map[string]any{"user": &model.User{ID: 1}})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token-abc", nil)
	if _, err := client.GetMe(context.Background()); err != nil {
		t.Fatalf("GetMe() がエラーを返した: %v", err)
	}

	if gotAuth != "Bearer token-abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token-abc")
	}
	if gotRequestID == "" {
		t.Error("X-Request-IDが付与されていない")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
}

func TestClient_NoTokenOmitsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	hasHeader := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hasHeader = r.Header["Authorization"]
		writeData(w, map[string]any{"user": &model.User{ID: 1}})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "", nil)
	if _, err := client.GetMe(context.Background()); err != nil {
		t.Fatalf("GetMe() がエラーを返した: %v", err)
	}

	if hasHeader {
		t.Errorf("未ログイン時にAuthorizationヘッダーが付与された: %q", gotAuth)
	}
}

// --- レスポンスのデコード ---

func TestClient_ListPosts_DecodesDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" {
			t.Errorf("path = %q, want /posts", r.URL.Path)
		}
		if got := r.URL.Query().Get("sort"); got != "LATEST" {
			t.Errorf("sort = %q, want LATEST", got)
		}
		writeData(w, model.PostPage{
			Posts: []*model.Post{{ID: 10, Title: "デスク紹介"}},
			Pagination: model.PostCursor{
				LastPostID: 10,
				HasNext:    true,
				Size:       1,
			},
		})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token", nil)
	page, err := client.ListPosts(context.Background(), ListPostsParams{
		Sort: model.PostSortLatest,
		Size: 1,
	})
	if err != nil {
		t.Fatalf("ListPosts() がエラーを返した: %v", err)
	}

	if len(page.Posts) != 1 || page.Posts[0].ID != 10 {
		t.Errorf("Posts = %+v, want ID=10が1件", page.Posts)
	}
	if !page.Pagination.HasNext {
		t.Error("Pagination.HasNext = false, want true")
	}
}

func TestClient_ListPosts_ForwardsAuxiliaryCursorFields(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"lastPostId":    r.URL.Query().Get("lastPostId"),
			"lastLikeCount": r.URL.Query().Get("lastLikeCount"),
		}
		writeData(w, model.PostPage{})
	}))
	defer server.Close()

	likeCount := int64(42)
	client, _ := newTestClient(t, server.URL, "token", nil)
	_, err := client.ListPosts(context.Background(), ListPostsParams{
		Sort: model.PostSortPopular,
		Size: 10,
		Cursor: &model.PostCursor{
			LastPostID:    99,
			LastLikeCount: &likeCount,
			HasNext:       true,
		},
	})
	if err != nil {
		t.Fatalf("ListPosts() がエラーを返した: %v", err)
	}

	// サーバー返却の補助カーソルがそのままクエリに載る
	if gotQuery["lastPostId"] != "99" {
		t.Errorf("lastPostId = %q, want 99", gotQuery["lastPostId"])
	}
	if gotQuery["lastLikeCount"] != "42" {
		t.Errorf("lastLikeCount = %q, want 42", gotQuery["lastLikeCount"])
	}
}

// --- エラー分類 ---

func TestClient_Unauthorized_TriggersLoginPromptOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"code":     "LOGIN_REQUIRED",
			"message":  "ログインが必要です。",
			"category": "auth",
		})
	}))
	defer server.Close()

	loginCalled := false
	client, rec := newTestClient(t, server.URL, "expired", func() { loginCalled = true })

	_, err := client.GetMe(context.Background())
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	// 1リクエストにつきプロンプトは1回だけ発火する
	prompts := rec.all()
	if len(prompts) != 1 {
		t.Fatalf("ログインプロンプト数 = %d, want 1", len(prompts))
	}
	if prompts[0].OnRight == nil {
		t.Fatal("プロンプトの主ボタンにコールバックが設定されていない")
	}
	prompts[0].OnRight()
	if !loginCalled {
		t.Error("主ボタンからOnLoginRequiredが呼ばれなかった")
	}
}

func TestClient_Forbidden_MapsToSentinelAndAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"code":     "MEMBERSHIP_REQUIRED",
			"message":  "この機能は認証済み会員のみ利用できます。",
			"category": "auth",
			"action":   "会員認証を完了してください。",
		})
	}))
	defer server.Close()

	client, rec := newTestClient(t, server.URL, "token", nil)
	_, err := client.GetMe(context.Background())

	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// errors.Asでサーバー返却の詳細も取り出せる
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.AsでAPIErrorを取り出せない")
	}
	if apiErr.Code != "MEMBERSHIP_REQUIRED" {
		t.Errorf("Code = %q, want MEMBERSHIP_REQUIRED", apiErr.Code)
	}

	// 403はログインプロンプトを発火しない（ページローカルで処理する）
	if len(rec.all()) != 0 {
		t.Errorf("403でモーダルが発火した: %d件", len(rec.all()))
	}
}

func TestClient_NotFound_MapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token", nil)
	_, err := client.GetPost(context.Background(), 123)

	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// ボディなしでもデフォルトのAPIErrorが補われる
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.AsでAPIErrorを取り出せない")
	}
}

func TestClient_BadRequest_MapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code":     "INVALID_REQUEST",
			"message":  "リクエストが不正です。",
			"category": "validation",
		})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token", nil)
	_, err := client.CreateComment(context.Background(), 1, "")

	if !errors.Is(err, model.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestClient_ServerError_IsNotClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, rec := newTestClient(t, server.URL, "token", nil)
	_, err := client.GetMe(context.Background())

	if err == nil {
		t.Fatal("500でエラーが返らなかった")
	}
	for _, sentinel := range []error{model.ErrUnauthorized, model.ErrForbidden, model.ErrNotFound, model.ErrBadRequest} {
		if errors.Is(err, sentinel) {
			t.Errorf("500が %v に分類された", sentinel)
		}
	}
	if len(rec.all()) != 0 {
		t.Errorf("500でモーダルが発火した: %d件", len(rec.all()))
	}
}

// --- 書き込み系リクエスト ---

func TestClient_RemoveLike_SendsDeleteWithBody(t *testing.T) {
	var gotMethod string
	var gotBody model.ToggleRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token", nil)
	if err := client.RemoveLike(context.Background(), model.TargetTypePost, 5); err != nil {
		t.Fatalf("RemoveLike() がエラーを返した: %v", err)
	}

	// いいね解除はDELETEにボディを伴う
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
	if gotBody.Type != model.TargetTypePost || gotBody.TargetID != 5 {
		t.Errorf("body = %+v, want type=POST targetId=5", gotBody)
	}
}

func TestClient_SubmitGeneration_SendsMultipart(t *testing.T) {
	var gotConcept, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipartのパースに失敗した: %v", err)
		}
		gotConcept = r.FormValue("concept")
		file, _, err := r.FormFile("beforeImagePath")
		if err != nil {
			t.Errorf("ファイルパートの取得に失敗した: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			gotFile = string(data)
			file.Close()
		}
		w.WriteHeader(http.StatusCreated)
		writeData(w, map[string]int64{"aiImageId": 77})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, "token", nil)
	id, err := client.SubmitGeneration(context.Background(), strings.NewReader("image-bytes"), "desk.jpg", "MODERN")
	if err != nil {
		t.Fatalf("SubmitGeneration() がエラーを返した: %v", err)
	}

	if id != 77 {
		t.Errorf("aiImageId = %d, want 77", id)
	}
	if gotConcept != "MODERN" {
		t.Errorf("concept = %q, want MODERN", gotConcept)
	}
	if gotFile != "image-bytes" {
		t.Errorf("file = %q, want image-bytes", gotFile)
	}
}

func TestClient_NetworkErrorIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続エラーを起こす

	client, rec := newTestClient(t, server.URL, "token", nil)
	_, err := client.GetMe(context.Background())

	if err == nil {
		t.Fatal("接続エラーでerrが返らなかった")
	}
	// 通信エラーはステータス分類されず、モーダルも発火しない
	if errors.Is(err, model.ErrUnauthorized) {
		t.Error("通信エラーがErrUnauthorizedに分類された")
	}
	if len(rec.all()) != 0 {
		t.Errorf("通信エラーでモーダルが発火した: %d件", len(rec.all()))
	}
}
