package model

import "time"

// 注文状態。遷移ルールはサーバー側が強制するため、クライアントは表示と
// 操作可否の判定（キャンセル・返金申請ボタンの活性）にのみ使用する。
const (
	OrderStatusPaid           = "PAID"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusShipped        = "SHIPPED"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
	OrderStatusRefundPending  = "REFUND_PENDING"
	OrderStatusRefundApproved = "REFUND_APPROVED"
)

// Order は注文履歴の1行分のビューモデル。
type Order struct {
	ID          int64     `json:"orderId"`
	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName"`
	ImageURL    string    `json:"imageUrl"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	OrderedAt   time.Time `json:"orderedAt"`
}

// CanCancel は注文キャンセル操作が可能な状態かを返す。
// 最終判定はサーバー側で行われ、クライアントはボタン活性の目安にのみ使う。
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusPreparing
}

// CanRequestRefund は返金申請操作が可能な状態かを返す。
func (o *Order) CanRequestRefund() bool {
	return o.Status == OrderStatusDelivered
}

// OrderCursor は注文履歴一覧のページング位置。
type OrderCursor struct {
	LastOrderID int64 `json:"lastOrderId"`
	HasNext     bool  `json:"hasNext"`
	Size        int   `json:"size"`
}

// OrderPage は注文履歴取得レスポンスの1ページ分。
type OrderPage struct {
	Orders     []*Order    `json:"orders"`
	Pagination OrderCursor `json:"pagination"`
}

// RefundRequest は返金申請のリクエストボディ。
type RefundRequest struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason"`
}
