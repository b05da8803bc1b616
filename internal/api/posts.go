package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// ListPostsParams は投稿一覧取得のパラメータ。
// Cursorがnilの場合は先頭ページを取得する。
type ListPostsParams struct {
	Category string
	Sort     model.PostSort
	Size     int
	Cursor   *model.PostCursor
}

// ListPosts は投稿一覧を1ページ分取得する。
// カーソルの補助フィールド（lastLikeCount等）はサーバーが返したものを
// そのままクエリに載せ替える。クライアント側で解釈しない。
func (c *Client) ListPosts(ctx context.Context, p ListPostsParams) (*model.PostPage, error) {
	q := url.Values{}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Sort != "" {
		q.Set("sort", string(p.Sort))
	}
	q.Set("size", strconv.Itoa(p.Size))
	if p.Cursor != nil {
		q.Set("lastPostId", strconv.FormatInt(p.Cursor.LastPostID, 10))
		if p.Cursor.LastLikeCount != nil {
			q.Set("lastLikeCount", strconv.FormatInt(*p.Cursor.LastLikeCount, 10))
		}
		if p.Cursor.LastViewCount != nil {
			q.Set("lastViewCount", strconv.FormatInt(*p.Cursor.LastViewCount, 10))
		}
		if p.Cursor.LastWeightCount != nil {
			q.Set("lastWeightCount", strconv.FormatInt(*p.Cursor.LastWeightCount, 10))
		}
	}

	var page model.PostPage
	if err := c.get(ctx, "/posts", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPost は投稿の詳細を取得する。
func (c *Client) GetPost(ctx context.Context, postID int64) (*model.Post, error) {
	var out struct {
		Post *model.Post `json:"post"`
	}
	if err := c.get(ctx, fmt.Sprintf("/posts/%d", postID), nil, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// CreatePostRequest は投稿作成のリクエストボディ。
type CreatePostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CreatePost は投稿を作成する。
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*model.Post, error) {
	var out struct {
		Post *model.Post `json:"post"`
	}
	if err := c.postJSON(ctx, "/posts", req, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

// DeletePost は投稿を削除する。
// 削除成功後、呼び出し側は一覧の再取得（カーソルリセット）を行う。
func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	return c.deleteJSON(ctx, fmt.Sprintf("/posts/%d", postID), nil)
}
