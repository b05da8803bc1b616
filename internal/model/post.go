package model

import "time"

// PostSort は投稿一覧のソート順。サーバーのカーソル補助フィールドと対応する。
type PostSort string

const (
	// PostSortLatest は新着順。lastPostIdのみでページングする。
	PostSortLatest PostSort = "LATEST"
	// PostSortPopular は人気順。lastLikeCountを補助カーソルに使う。
	PostSortPopular PostSort = "POPULAR"
	// PostSortView は閲覧数順。lastViewCountを補助カーソルに使う。
	PostSortView PostSort = "VIEW"
	// PostSortWeight は重み付きスコア順。lastWeightCountを補助カーソルに使う。
	PostSortWeight PostSort = "WEIGHT"
)

// 投稿カテゴリ
const (
	PostCategoryAll     = "ALL"
	PostCategorySetup   = "SETUP"
	PostCategoryReview  = "REVIEW"
	PostCategoryFree    = "FREE"
	PostCategoryWelcome = "WELCOME"
)

// Post はコミュニティ投稿の1行分のビューモデル。
// LikedとScrappedは楽観的トグルの対象となるミュータブルなフラグ。
type Post struct {
	ID           int64     `json:"postId"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	AuthorName   string    `json:"authorName"`
	LikeCount    int       `json:"likeCount"`
	ViewCount    int       `json:"viewCount"`
	CommentCount int       `json:"commentCount"`
	Liked        bool      `json:"liked"`
	Scrapped     bool      `json:"scrapped"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PostCursor は投稿一覧のページング位置。
// サーバーが返したものをそのまま次のリクエストに渡す不透明なカーソル。
// ソート順に応じて補助フィールドのいずれかが設定される。
type PostCursor struct {
	LastPostID      int64  `json:"lastPostId"`
	HasNext         bool   `json:"hasNext"`
	Size            int    `json:"size"`
	LastLikeCount   *int64 `json:"lastLikeCount,omitempty"`
	LastViewCount   *int64 `json:"lastViewCount,omitempty"`
	LastWeightCount *int64 `json:"lastWeightCount,omitempty"`
}

// PostPage は投稿一覧取得レスポンスの1ページ分。
type PostPage struct {
	Posts      []*Post    `json:"posts"`
	Pagination PostCursor `json:"pagination"`
}
