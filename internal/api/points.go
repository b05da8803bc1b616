package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// ListPoints はポイント履歴を1ページ分取得する。
func (c *Client) ListPoints(ctx context.Context, size int, cursor *model.PointCursor) (*model.PointPage, error) {
	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastPointId", strconv.FormatInt(cursor.LastPointID, 10))
	}

	var page model.PointPage
	if err := c.get(ctx, "/points", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
