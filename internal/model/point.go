package model

import "time"

// PointEntry はポイント履歴の1行分のビューモデル。
// Amountは付与が正、使用が負。
type PointEntry struct {
	ID        int64     `json:"pointId"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// PointCursor はポイント履歴一覧のページング位置。
type PointCursor struct {
	LastPointID int64 `json:"lastPointId"`
	HasNext     bool  `json:"hasNext"`
	Size        int   `json:"size"`
}

// PointPage はポイント履歴取得レスポンスの1ページ分。
type PointPage struct {
	Points     []*PointEntry `json:"points"`
	Pagination PointCursor   `json:"pagination"`
}
