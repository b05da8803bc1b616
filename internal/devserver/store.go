// Package devserver はOnTheTop APIのローカル開発用スタブサーバーを提供する。
// 本番バックエンドと同じエンドポイント形状・レスポンス形状をインメモリストアで
// 模倣し、デモコマンドと結合テストの相手方として動作する。
package devserver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/onthetop/internal/model"
)

// generationPollCount は生成ジョブが終端状態に達するまでのポーリング回数。
const generationPollCount = 2

// generatedImage はスタブ上の生成ジョブ。pollsRemainingが0になった照会で終端状態に遷移する。
type generatedImage struct {
	image          *model.AIImage
	pollsRemaining int
	willFail       bool
}

// Store はスタブサーバーのインメモリ状態。
// いいね・スクラップは単一のデモユーザー視点で保持する。
type Store struct {
	mu sync.Mutex

	posts    []*model.Post
	comments map[int64][]*model.Comment
	products []*model.Product
	orders   []*model.Order
	points   []*model.PointEntry
	images   map[int64]*generatedImage
	user     *model.User

	likes  map[string]bool
	scraps map[string]bool

	nextPostID    int64
	nextCommentID int64
	nextImageID   int64
}

// NewStore はシードデータ入りのStoreを生成する。
// postCountは投稿シード数。テストでページ境界を制御するために指定可能にしている。
func NewStore(postCount int) *Store {
	s := &Store{
		comments: make(map[int64][]*model.Comment),
		images:   make(map[int64]*generatedImage),
		likes:    make(map[string]bool),
		scraps:   make(map[string]bool),
	}
	s.seed(postCount)
	return s
}

// seed はデモ・テスト用の初期データを投入する。
func (s *Store) seed(postCount int) {
	categories := []string{
		model.PostCategorySetup,
		model.PostCategoryReview,
		model.PostCategoryFree,
		model.PostCategoryWelcome,
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= postCount; i++ {
		s.nextPostID = int64(i)
		s.posts = append(s.posts, &model.Post{
			ID:           int64(i),
			Title:        fmt.Sprintf("デスクセットアップ紹介 #%d", i),
			Content:      fmt.Sprintf("<p>%d番目の投稿です。</p>", i),
			Category:     categories[i%len(categories)],
			AuthorName:   fmt.Sprintf("user%d", i%7),
			LikeCount:    (i * 3) % 50,
			ViewCount:    (i * 17) % 300,
			CommentCount: 2,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})

		for j := 1; j <= 2; j++ {
			s.nextCommentID++
			s.comments[int64(i)] = append(s.comments[int64(i)], &model.Comment{
				ID:         s.nextCommentID,
				PostID:     int64(i),
				AuthorName: fmt.Sprintf("commenter%d", j),
				Content:    fmt.Sprintf("コメント %d-%d", i, j),
				CreatedAt:  base.Add(time.Duration(i)*time.Hour + time.Duration(j)*time.Minute),
			})
		}
	}

	concepts := []string{"MODERN", "COZY", "MINIMAL", "GAMING"}
	for i := 1; i <= 12; i++ {
		s.products = append(s.products, &model.Product{
			ID:          int64(i),
			Name:        fmt.Sprintf("デスクアイテム #%d", i),
			BrandName:   fmt.Sprintf("brand%d", i%3),
			Price:       int64(i) * 10000,
			ImageURL:    fmt.Sprintf("https://cdn.example.com/products/%d.jpg", i),
			PurchaseURL: fmt.Sprintf("https://shop.example.com/items/%d", i),
			Concept:     concepts[i%len(concepts)],
			CreatedAt:   base,
		})
	}

	s.orders = []*model.Order{
		{ID: 1, ProductID: 1, ProductName: "デスクアイテム #1", Price: 10000, Quantity: 1, Status: model.OrderStatusPaid, OrderedAt: base},
		{ID: 2, ProductID: 2, ProductName: "デスクアイテム #2", Price: 20000, Quantity: 1, Status: model.OrderStatusDelivered, OrderedAt: base},
		{ID: 3, ProductID: 3, ProductName: "デスクアイテム #3", Price: 30000, Quantity: 2, Status: model.OrderStatusShipped, OrderedAt: base},
	}

	s.points = []*model.PointEntry{
		{ID: 1, Amount: 1000, Reason: "新規登録ボーナス", CreatedAt: base},
		{ID: 2, Amount: -300, Reason: "商品購入", CreatedAt: base.Add(24 * time.Hour)},
		{ID: 3, Amount: 500, Reason: "レビュー投稿", CreatedAt: base.Add(48 * time.Hour)},
	}

	s.user = &model.User{
		ID:       1,
		Nickname: "デモユーザー",
		Email:    "demo@example.com",
		Point:    1200,
		Verified: true,
		JoinedAt: base,
	}
}

func toggleKey(t model.TargetType, id int64) string {
	return fmt.Sprintf("%s:%d", t, id)
}

// sortedPostsLocked はソート順を適用した投稿のコピー列を返す。呼び出し元でロックを取得していること。
func (s *Store) sortedPostsLocked(category string, sortKey model.PostSort) []*model.Post {
	var filtered []*model.Post
	for _, p := range s.posts {
		if category != "" && category != model.PostCategoryAll && p.Category != category {
			continue
		}
		filtered = append(filtered, p)
	}

	sorted := append([]*model.Post(nil), filtered...)
	switch sortKey {
	case model.PostSortPopular:
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].LikeCount != sorted[j].LikeCount {
				return sorted[i].LikeCount > sorted[j].LikeCount
			}
			return sorted[i].ID > sorted[j].ID
		})
	case model.PostSortView:
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].ViewCount != sorted[j].ViewCount {
				return sorted[i].ViewCount > sorted[j].ViewCount
			}
			return sorted[i].ID > sorted[j].ID
		})
	case model.PostSortWeight:
		weight := func(p *model.Post) int {
			return p.LikeCount*2 + p.ViewCount
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			if weight(sorted[i]) != weight(sorted[j]) {
				return weight(sorted[i]) > weight(sorted[j])
			}
			return sorted[i].ID > sorted[j].ID
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].ID > sorted[j].ID
		})
	}
	return sorted
}

// paginate はソート済み列からlastIDの次の位置からsize件を切り出す。
// lastID=0は先頭ページを意味する。
func paginate[T any](sorted []T, lastID int64, size int, idOf func(T) int64) (page []T, hasNext bool) {
	start := 0
	if lastID != 0 {
		for i, item := range sorted {
			if idOf(item) == lastID {
				start = i + 1
				break
			}
		}
	}

	end := start + size
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end], end < len(sorted)
}

// submitGeneration は生成ジョブを登録する。conceptに"FAIL"を含むジョブは
// 終端状態で失敗する（テスト・デモで失敗経路を確認するためのノブ）。
func (s *Store) submitGeneration(concept string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextImageID++
	id := s.nextImageID
	s.images[id] = &generatedImage{
		image: &model.AIImage{
			ID:        id,
			State:     model.AIImageStatePending,
			Concept:   concept,
			CreatedAt: time.Now(),
		},
		pollsRemaining: generationPollCount,
		willFail:       strings.Contains(strings.ToUpper(concept), "FAIL"),
	}
	return id
}

// pollGeneration は生成ジョブの現在状態を返す。
// 規定回数の照会後に終端状態（SUCCESSまたはFAILED）へ遷移する。
func (s *Store) pollGeneration(id int64) (*model.AIImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.images[id]
	if !ok {
		return nil, false
	}

	if !g.image.IsTerminal() {
		if g.pollsRemaining > 0 {
			g.pollsRemaining--
			g.image.State = model.AIImageStateGenerating
		}
		if g.pollsRemaining == 0 {
			if g.willFail {
				g.image.State = model.AIImageStateFailed
			} else {
				g.image.State = model.AIImageStateSuccess
				g.image.AfterImageURL = fmt.Sprintf("https://cdn.example.com/generated/%d.jpg", id)
			}
		}
	}

	copied := *g.image
	return &copied, true
}
