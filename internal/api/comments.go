package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// ListComments は投稿のコメント一覧を1ページ分取得する。
// cursorがnilの場合は先頭ページを取得する。
func (c *Client) ListComments(ctx context.Context, postID int64, size int, cursor *model.CommentCursor) (*model.CommentPage, error) {
	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastCommentId", strconv.FormatInt(cursor.LastCommentID, 10))
	}

	var page model.CommentPage
	if err := c.get(ctx, fmt.Sprintf("/posts/%d/comments", postID), q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateComment は投稿にコメントを作成する。
func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (*model.Comment, error) {
	body := struct {
		Content string `json:"content"`
	}{Content: content}

	var out struct {
		Comment *model.Comment `json:"comment"`
	}
	if err := c.postJSON(ctx, fmt.Sprintf("/posts/%d/comments", postID), body, &out); err != nil {
		return nil, err
	}
	return out.Comment, nil
}

// DeleteComment はコメントを削除する。
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return c.deleteJSON(ctx, fmt.Sprintf("/comments/%d", commentID), nil)
}
