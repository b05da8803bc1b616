package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// ListOrders は注文履歴を1ページ分取得する。
func (c *Client) ListOrders(ctx context.Context, size int, cursor *model.OrderCursor) (*model.OrderPage, error) {
	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastOrderId", strconv.FormatInt(cursor.LastOrderID, 10))
	}

	var page model.OrderPage
	if err := c.get(ctx, "/orders", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CancelOrder は注文のキャンセルを要求する。
// 可否の最終判定はサーバー側の注文状態遷移ルールに従う。
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	return c.postJSON(ctx, fmt.Sprintf("/orders/%d/cancel", orderID), nil, nil)
}

// RequestRefund は返金申請を送信する。
func (c *Client) RequestRefund(ctx context.Context, req model.RefundRequest) error {
	return c.postJSON(ctx, "/refunds", req, nil)
}
