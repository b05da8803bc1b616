package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// AddScrap は対象をスクラップに追加する。冪等な操作であり、レスポンスボディは持たない。
func (c *Client) AddScrap(ctx context.Context, targetType model.TargetType, targetID int64) error {
	return c.postJSON(ctx, "/scraps", model.ToggleRequest{Type: targetType, TargetID: targetID}, nil)
}

// RemoveScrap は対象をスクラップから削除する。
func (c *Client) RemoveScrap(ctx context.Context, targetType model.TargetType, targetID int64) error {
	return c.deleteJSON(ctx, "/scraps", model.ToggleRequest{Type: targetType, TargetID: targetID})
}

// ListScraps はマイページのスクラップ一覧を1ページ分取得する。
func (c *Client) ListScraps(ctx context.Context, size int, cursor *model.ScrapCursor) (*model.ScrapPage, error) {
	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastScrapId", strconv.FormatInt(cursor.LastScrapID, 10))
	}

	var page model.ScrapPage
	if err := c.get(ctx, "/scraps", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
