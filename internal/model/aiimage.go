package model

import "time"

// AI画像生成ジョブのサーバー側状態。
// SUCCESSとFAILEDが終端状態であり、それ以外はすべて処理中として扱う。
const (
	AIImageStatePending    = "PENDING"
	AIImageStateGenerating = "GENERATING"
	AIImageStateSuccess    = "SUCCESS"
	AIImageStateFailed     = "FAILED"
)

// AIImage はAIデスクセットアップ画像生成ジョブのビューモデル。
// GET /ai-images/{id} のポーリング対象。
type AIImage struct {
	ID              int64     `json:"aiImageId"`
	State           string    `json:"state"`
	Concept         string    `json:"concept"`
	BeforeImagePath string    `json:"beforeImagePath"`
	AfterImageURL   string    `json:"afterImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IsTerminal はジョブが終端状態（成功または失敗）かを返す。
func (a *AIImage) IsTerminal() bool {
	return a.State == AIImageStateSuccess || a.State == AIImageStateFailed
}

// DeskImageCursor は生成済みデスク画像一覧のページング位置。
type DeskImageCursor struct {
	LastImageID int64 `json:"lastImageId"`
	HasNext     bool  `json:"hasNext"`
	Size        int   `json:"size"`
}

// DeskImagePage はデスク画像一覧取得レスポンスの1ページ分。
type DeskImagePage struct {
	Images     []*AIImage      `json:"images"`
	Pagination DeskImageCursor `json:"pagination"`
}
