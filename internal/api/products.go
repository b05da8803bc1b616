package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// ListProducts はおすすめ商品一覧を1ページ分取得する。
// conceptを指定するとコンセプト別のおすすめに絞り込む。
func (c *Client) ListProducts(ctx context.Context, concept string, size int, cursor *model.ProductCursor) (*model.ProductPage, error) {
	q := url.Values{}
	if concept != "" {
		q.Set("concept", concept)
	}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastProductId", strconv.FormatInt(cursor.LastProductID, 10))
	}

	var page model.ProductPage
	if err := c.get(ctx, "/products", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
