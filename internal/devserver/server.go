package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/onthetop/internal/metrics"
	"github.com/hitoshi/onthetop/internal/model"
)

// defaultPageSize はsizeパラメータ未指定時のページサイズ。
const defaultPageSize = 10

// Server はスタブAPIサーバー。
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer はServerの新しいインスタンスを生成する。
func NewServer(store *Store, logger *slog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Router は全エンドポイントのルーティングを構成したchi.Routerを返す。
// gathererが非nilの場合は/metricsでPrometheusスクレイプを提供する。
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	// --- 認証不要のルート ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.listPosts)
			r.Post("/", s.createPost)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getPost)
				r.Delete("/", s.deletePost)
				r.Get("/comments", s.listComments)
				r.Post("/comments", s.createComment)
			})
		})

		r.Delete("/comments/{id}", s.deleteComment)

		r.Post("/likes", s.addLike)
		r.Delete("/likes", s.removeLike)
		r.Post("/scraps", s.addScrap)
		r.Delete("/scraps", s.removeScrap)
		r.Get("/scraps", s.listScraps)

		r.Get("/products", s.listProducts)

		r.Route("/ai-images", func(r chi.Router) {
			r.Get("/", s.listDeskImages)
			r.Post("/", s.submitGeneration)
			r.Get("/{id}", s.getGeneration)
		})

		r.Get("/orders", s.listOrders)
		r.Post("/orders/{id}/cancel", s.cancelOrder)
		r.Post("/refunds", s.requestRefund)

		r.Get("/points", s.listPoints)

		r.Get("/me", s.getMe)
		r.Patch("/me", s.updateMe)
	})

	return r
}

// requireAuth はBearerトークンの存在のみを検証する。
// スタブのため内容は検証しない（空でなければ有効とみなす）。
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") == "" {
			s.logger.Debug("認証ヘッダーなしのリクエストを拒否しました",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			writeError(w, http.StatusUnauthorized, model.NewLoginRequiredError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- レスポンスヘルパー ---

func writeData(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"code":     apiErr.Code,
		"message":  apiErr.Message,
		"category": apiErr.Category,
		"action":   apiErr.Action,
	})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func queryInt64(r *http.Request, key string) int64 {
	i, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return i
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

// --- 投稿 ---

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	sortKey := model.PostSort(r.URL.Query().Get("sort"))
	size := queryInt(r, "size", defaultPageSize)
	lastPostID := queryInt64(r, "lastPostId")

	s.store.mu.Lock()
	sorted := s.store.sortedPostsLocked(category, sortKey)
	page, hasNext := paginate(sorted, lastPostID, size, func(p *model.Post) int64 { return p.ID })

	// デモユーザー視点のフラグを合成したコピーを返す
	out := make([]*model.Post, 0, len(page))
	for _, p := range page {
		copied := *p
		copied.Liked = s.store.likes[toggleKey(model.TargetTypePost, p.ID)]
		copied.Scrapped = s.store.scraps[toggleKey(model.TargetTypePost, p.ID)]
		out = append(out, &copied)
	}
	s.store.mu.Unlock()

	cursor := model.PostCursor{HasNext: hasNext, Size: size}
	if len(out) > 0 {
		last := out[len(out)-1]
		cursor.LastPostID = last.ID
		switch sortKey {
		case model.PostSortPopular:
			v := int64(last.LikeCount)
			cursor.LastLikeCount = &v
		case model.PostSortView:
			v := int64(last.ViewCount)
			cursor.LastViewCount = &v
		case model.PostSortWeight:
			v := int64(last.LikeCount*2 + last.ViewCount)
			cursor.LastWeightCount = &v
		}
	}

	writeData(w, http.StatusOK, model.PostPage{Posts: out, Pagination: cursor})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, p := range s.store.posts {
		if p.ID == id {
			p.ViewCount++
			copied := *p
			copied.Liked = s.store.likes[toggleKey(model.TargetTypePost, id)]
			copied.Scrapped = s.store.scraps[toggleKey(model.TargetTypePost, id)]
			writeData(w, http.StatusOK, map[string]any{"post": &copied})
			return
		}
	}
	writeError(w, http.StatusNotFound, model.NewPostNotFoundError(id))
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("titleは必須です"))
		return
	}

	s.store.mu.Lock()
	s.store.nextPostID++
	post := &model.Post{
		ID:         s.store.nextPostID,
		Title:      req.Title,
		Content:    req.Content,
		Category:   req.Category,
		AuthorName: s.store.user.Nickname,
	}
	s.store.posts = append(s.store.posts, post)
	s.store.mu.Unlock()

	writeData(w, http.StatusCreated, map[string]any{"post": post})
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for i, p := range s.store.posts {
		if p.ID == id {
			s.store.posts = append(s.store.posts[:i], s.store.posts[i+1:]...)
			delete(s.store.comments, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, model.NewPostNotFoundError(id))
}

// --- コメント ---

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	postID := pathID(r)
	size := queryInt(r, "size", defaultPageSize)
	lastCommentID := queryInt64(r, "lastCommentId")

	s.store.mu.Lock()
	all := append([]*model.Comment(nil), s.store.comments[postID]...)
	s.store.mu.Unlock()

	page, hasNext := paginate(all, lastCommentID, size, func(c *model.Comment) int64 { return c.ID })

	cursor := model.CommentCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastCommentID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.CommentPage{Comments: page, PageInfo: cursor})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	postID := pathID(r)
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("contentは必須です"))
		return
	}

	s.store.mu.Lock()
	s.store.nextCommentID++
	comment := &model.Comment{
		ID:         s.store.nextCommentID,
		PostID:     postID,
		AuthorName: s.store.user.Nickname,
		Content:    req.Content,
	}
	s.store.comments[postID] = append(s.store.comments[postID], comment)
	for _, p := range s.store.posts {
		if p.ID == postID {
			p.CommentCount++
		}
	}
	s.store.mu.Unlock()

	writeData(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for postID, comments := range s.store.comments {
		for i, c := range comments {
			if c.ID == id {
				s.store.comments[postID] = append(comments[:i], comments[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, model.NewInvalidRequestError("コメントが見つかりません"))
}

// --- いいね・スクラップ ---

func (s *Server) decodeToggle(w http.ResponseWriter, r *http.Request) (*model.ToggleRequest, bool) {
	var req model.ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetID == 0 {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("typeとtargetIdは必須です"))
		return nil, false
	}
	return &req, true
}

func (s *Server) setLike(w http.ResponseWriter, r *http.Request, on bool) {
	req, ok := s.decodeToggle(w, r)
	if !ok {
		return
	}

	s.store.mu.Lock()
	key := toggleKey(req.Type, req.TargetID)
	changed := s.store.likes[key] != on
	s.store.likes[key] = on
	if changed && req.Type == model.TargetTypePost {
		delta := 1
		if !on {
			delta = -1
		}
		for _, p := range s.store.posts {
			if p.ID == req.TargetID {
				p.LikeCount += delta
			}
		}
	}
	s.store.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) addLike(w http.ResponseWriter, r *http.Request)    { s.setLike(w, r, true) }
func (s *Server) removeLike(w http.ResponseWriter, r *http.Request) { s.setLike(w, r, false) }

func (s *Server) setScrap(w http.ResponseWriter, r *http.Request, on bool) {
	req, ok := s.decodeToggle(w, r)
	if !ok {
		return
	}

	s.store.mu.Lock()
	s.store.scraps[toggleKey(req.Type, req.TargetID)] = on
	s.store.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) addScrap(w http.ResponseWriter, r *http.Request)    { s.setScrap(w, r, true) }
func (s *Server) removeScrap(w http.ResponseWriter, r *http.Request) { s.setScrap(w, r, false) }

func (s *Server) listScraps(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultPageSize)
	lastScrapID := queryInt64(r, "lastScrapId")

	s.store.mu.Lock()
	var items []*model.ScrapItem
	var scrapID int64
	for _, p := range s.store.posts {
		if s.store.scraps[toggleKey(model.TargetTypePost, p.ID)] {
			scrapID++
			items = append(items, &model.ScrapItem{ID: scrapID, Type: model.TargetTypePost, TargetID: p.ID, Title: p.Title})
		}
	}
	for _, p := range s.store.products {
		if s.store.scraps[toggleKey(model.TargetTypeProduct, p.ID)] {
			scrapID++
			items = append(items, &model.ScrapItem{ID: scrapID, Type: model.TargetTypeProduct, TargetID: p.ID, Title: p.Name, ImageURL: p.ImageURL})
		}
	}
	s.store.mu.Unlock()

	page, hasNext := paginate(items, lastScrapID, size, func(i *model.ScrapItem) int64 { return i.ID })

	cursor := model.ScrapCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastScrapID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.ScrapPage{Scraps: page, Pagination: cursor})
}

// --- 商品 ---

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	concept := r.URL.Query().Get("concept")
	size := queryInt(r, "size", defaultPageSize)
	lastProductID := queryInt64(r, "lastProductId")

	s.store.mu.Lock()
	var filtered []*model.Product
	for _, p := range s.store.products {
		if concept != "" && p.Concept != concept {
			continue
		}
		copied := *p
		copied.Scrapped = s.store.scraps[toggleKey(model.TargetTypeProduct, p.ID)]
		filtered = append(filtered, &copied)
	}
	s.store.mu.Unlock()

	page, hasNext := paginate(filtered, lastProductID, size, func(p *model.Product) int64 { return p.ID })

	cursor := model.ProductCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastProductID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.ProductPage{Products: page, Pagination: cursor})
}

// --- AI画像生成 ---

func (s *Server) submitGeneration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("multipart形式が不正です"))
		return
	}

	concept := r.FormValue("concept")
	file, _, err := r.FormFile("beforeImagePath")
	if err != nil {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("beforeImagePathは必須です"))
		return
	}
	file.Close()

	id := s.store.submitGeneration(concept)
	writeData(w, http.StatusCreated, map[string]any{"aiImageId": id})
}

func (s *Server) getGeneration(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	image, ok := s.store.pollGeneration(id)
	if !ok {
		writeError(w, http.StatusNotFound, model.NewImageNotFoundError(id))
		return
	}
	writeData(w, http.StatusOK, map[string]any{"image": image})
}

func (s *Server) listDeskImages(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultPageSize)
	lastImageID := queryInt64(r, "lastImageId")

	s.store.mu.Lock()
	var images []*model.AIImage
	for _, g := range s.store.images {
		if g.image.State == model.AIImageStateSuccess {
			copied := *g.image
			images = append(images, &copied)
		}
	}
	s.store.mu.Unlock()

	page, hasNext := paginate(images, lastImageID, size, func(i *model.AIImage) int64 { return i.ID })

	cursor := model.DeskImageCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastImageID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.DeskImagePage{Images: page, Pagination: cursor})
}

// --- 注文・返金 ---

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultPageSize)
	lastOrderID := queryInt64(r, "lastOrderId")

	s.store.mu.Lock()
	all := append([]*model.Order(nil), s.store.orders...)
	s.store.mu.Unlock()

	page, hasNext := paginate(all, lastOrderID, size, func(o *model.Order) int64 { return o.ID })

	cursor := model.OrderCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastOrderID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.OrderPage{Orders: page, Pagination: cursor})
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, o := range s.store.orders {
		if o.ID == id {
			if !o.CanCancel() {
				writeError(w, http.StatusBadRequest, model.NewRefundNotAllowedError("発送済みの注文はキャンセルできません"))
				return
			}
			o.Status = model.OrderStatusCancelled
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeError(w, http.StatusNotFound, model.NewInvalidRequestError("注文が見つかりません"))
}

func (s *Server) requestRefund(w http.ResponseWriter, r *http.Request) {
	var req model.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == 0 {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("orderIdは必須です"))
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, o := range s.store.orders {
		if o.ID == req.OrderID {
			if !o.CanRequestRefund() {
				writeError(w, http.StatusBadRequest, model.NewRefundNotAllowedError("配送完了前の注文です"))
				return
			}
			o.Status = model.OrderStatusRefundPending
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	writeError(w, http.StatusNotFound, model.NewInvalidRequestError("注文が見つかりません"))
}

// --- ポイント・プロフィール ---

func (s *Server) listPoints(w http.ResponseWriter, r *http.Request) {
	size := queryInt(r, "size", defaultPageSize)
	lastPointID := queryInt64(r, "lastPointId")

	s.store.mu.Lock()
	all := append([]*model.PointEntry(nil), s.store.points...)
	s.store.mu.Unlock()

	page, hasNext := paginate(all, lastPointID, size, func(p *model.PointEntry) int64 { return p.ID })

	cursor := model.PointCursor{Size: size, HasNext: hasNext}
	if len(page) > 0 {
		cursor.LastPointID = page[len(page)-1].ID
	}

	writeData(w, http.StatusOK, model.PointPage{Points: page, Pagination: cursor})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	copied := *s.store.user
	s.store.mu.Unlock()
	writeData(w, http.StatusOK, map[string]any{"user": &copied})
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nickname == "" {
		writeError(w, http.StatusBadRequest, model.NewInvalidRequestError("nicknameは必須です"))
		return
	}

	s.store.mu.Lock()
	s.store.user.Nickname = req.Nickname
	if req.ProfileImageURL != "" {
		s.store.user.ProfileImageURL = req.ProfileImageURL
	}
	copied := *s.store.user
	s.store.mu.Unlock()

	writeData(w, http.StatusOK, map[string]any{"user": &copied})
}
