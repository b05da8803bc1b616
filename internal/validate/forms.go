// Package validate はクライアント側のフォーム検証を提供する。
// 検証失敗はフィールド単位のインラインメッセージとして返し、サーバーには送信しない。
package validate

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// PostForm は投稿作成フォームの入力値。
type PostForm struct {
	Title    string `validate:"required,min=2,max=100"`
	Content  string `validate:"required,max=5000"`
	Category string `validate:"required,oneof=SETUP REVIEW FREE WELCOME"`
}

// CommentForm はコメント入力フォームの入力値。
type CommentForm struct {
	Content string `validate:"required,max=1000"`
}

// RefundForm は返金申請フォームの入力値。
type RefundForm struct {
	OrderID int64  `validate:"required,gt=0"`
	Reason  string `validate:"required,min=10,max=500"`
}

// ProfileForm はプロフィール編集フォームの入力値。
type ProfileForm struct {
	Nickname        string `validate:"required,min=2,max=20"`
	ProfileImageURL string `validate:"omitempty,url"`
}

// Validator はフォーム検証器。スレッドセーフに再利用できる。
type Validator struct {
	validate *validator.Validate
}

// NewValidator はValidatorの新しいインスタンスを生成する。
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Struct はフォームを検証し、フィールド名からユーザー向けメッセージへのマップを返す。
// 検証成功時はnilを返す。
func (v *Validator) Struct(form any) map[string]string {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_form": "入力内容を確認してください。"}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = messageFor(fe)
	}
	return fields
}

// messageFor は検証タグをユーザー向けメッセージに変換する。
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です。"
	case "min":
		return fe.Param() + "文字以上で入力してください。"
	case "max":
		return fe.Param() + "文字以内で入力してください。"
	case "oneof":
		return "選択肢から選んでください。"
	case "url":
		return "URLの形式が正しくありません。"
	case "gt":
		return "値が不正です。"
	default:
		return "入力内容を確認してください。"
	}
}
