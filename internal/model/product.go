package model

import "time"

// Product はおすすめ商品のビューモデル。
// Scrappedは楽観的トグルの対象となるミュータブルなフラグ。
type Product struct {
	ID          int64     `json:"productId"`
	Name        string    `json:"name"`
	BrandName   string    `json:"brandName"`
	Price       int64     `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	PurchaseURL string    `json:"purchaseUrl"`
	Concept     string    `json:"concept"`
	Scrapped    bool      `json:"scrapped"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductCursor は商品一覧のページング位置。
type ProductCursor struct {
	LastProductID int64 `json:"lastProductId"`
	HasNext       bool  `json:"hasNext"`
	Size          int   `json:"size"`
}

// ProductPage は商品一覧取得レスポンスの1ページ分。
type ProductPage struct {
	Products   []*Product    `json:"products"`
	Pagination ProductCursor `json:"pagination"`
}
