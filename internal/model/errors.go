// Package model はクライアント側ビューモデルを定義する。
// サーバーレスポンスを写した一時的なデータ構造であり、セッションを超えて永続化されない。
package model

import (
	"errors"
	"fmt"
)

// HTTPステータス分類のセンチネルエラー。
// 呼び出し側はerrors.Isで分類を判定し、ページローカルのエラー表示を決定する。
var (
	// ErrUnauthorized は認証エラー（401）。グローバルのログインプロンプトが
	// 既に発火しているため、呼び出し側はトーストを出さずに黙って戻る。
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden は認可エラー（403）。ページローカルのブロッキングモーダルで表示する。
	ErrForbidden = errors.New("access forbidden")
	// ErrNotFound はリソース未検出（404）。
	ErrNotFound = errors.New("resource not found")
	// ErrBadRequest はリクエスト不正（400）。
	ErrBadRequest = errors.New("bad request")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, order, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginRequired      = "LOGIN_REQUIRED"
	ErrCodeMembershipRequired = "MEMBERSHIP_REQUIRED"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeImageNotFound      = "IMAGE_NOT_FOUND"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeRefundNotAllowed   = "REFUND_NOT_ALLOWED"
	ErrCodeNetworkFailure     = "NETWORK_FAILURE"
)

// NewLoginRequiredError はログイン要求エラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログイン後にもう一度お試しください。",
	}
}

// NewMembershipRequiredError は会員資格不足エラーを生成する。
func NewMembershipRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeMembershipRequired,
		Message:  "この機能は認証済み会員のみ利用できます。",
		Category: "auth",
		Action:   "会員認証を完了してから再度アクセスしてください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %d", postID),
		Category: "system",
		Action:   "投稿が削除された可能性があります。一覧に戻ってください。",
	}
}

// NewImageNotFoundError は生成画像未検出エラーを生成する。
func NewImageNotFoundError(imageID int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("指定された生成画像が見つかりません: %d", imageID),
		Category: "system",
		Action:   "画像IDを確認してください。",
	}
}

// NewQuotaExceededError は生成回数上限エラーを生成する。
func NewQuotaExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  "本日の画像生成回数の上限に達しています。",
		Category: "validation",
		Action:   "明日以降に再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewRefundNotAllowedError は返金不可エラーを生成する。
func NewRefundNotAllowedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRefundNotAllowed,
		Message:  fmt.Sprintf("この注文は返金申請できません: %s", reason),
		Category: "order",
		Action:   "注文の状態を確認してください。",
	}
}

// NewNetworkFailureError は一時的な通信エラーを生成する。
func NewNetworkFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailure,
		Message:  fmt.Sprintf("通信に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
