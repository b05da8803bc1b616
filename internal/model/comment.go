package model

import "time"

// Comment は投稿に対するコメントのビューモデル。
type Comment struct {
	ID         int64     `json:"commentId"`
	PostID     int64     `json:"postId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	Liked      bool      `json:"liked"`
	LikeCount  int       `json:"likeCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CommentCursor はコメント一覧のページング位置。
// 投稿一覧と異なりpageInfoキーで返される（サーバー側の歴史的経緯）。
type CommentCursor struct {
	Size          int   `json:"size"`
	HasNext       bool  `json:"hasNext"`
	LastCommentID int64 `json:"lastCommentId"`
}

// CommentPage はコメント一覧取得レスポンスの1ページ分。
type CommentPage struct {
	Comments []*Comment    `json:"comments"`
	PageInfo CommentCursor `json:"pageInfo"`
}
