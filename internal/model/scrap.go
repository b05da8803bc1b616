package model

// TargetType はいいね・スクラップの対象種別。
// POST /likes等のリクエストボディのtypeフィールドに対応する。
type TargetType string

const (
	// TargetTypePost は投稿を対象とする。
	TargetTypePost TargetType = "POST"
	// TargetTypeComment はコメントを対象とする。
	TargetTypeComment TargetType = "COMMENT"
	// TargetTypeProduct は商品を対象とする。
	TargetTypeProduct TargetType = "PRODUCT"
)

// ToggleRequest はいいね・スクラップ追加/削除のリクエストボディ。
// 冪等なトグル操作であり、成功ステータス以外のレスポンスボディは要求しない。
type ToggleRequest struct {
	Type     TargetType `json:"type"`
	TargetID int64      `json:"targetId"`
}

// ScrapCursor はスクラップ一覧のページング位置。
type ScrapCursor struct {
	LastScrapID int64 `json:"lastScrapId"`
	HasNext     bool  `json:"hasNext"`
	Size        int   `json:"size"`
}

// ScrapItem はマイページのスクラップ一覧の1行分。
// 対象種別に応じて投稿か商品のどちらかが埋まる。
type ScrapItem struct {
	ID       int64      `json:"scrapId"`
	Type     TargetType `json:"type"`
	TargetID int64      `json:"targetId"`
	Title    string     `json:"title"`
	ImageURL string     `json:"imageUrl"`
}

// ScrapPage はスクラップ一覧取得レスポンスの1ページ分。
type ScrapPage struct {
	Scraps     []*ScrapItem `json:"scraps"`
	Pagination ScrapCursor  `json:"pagination"`
}
