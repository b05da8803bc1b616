package model

import "time"

// User はログインユーザーのプロフィールのビューモデル。
type User struct {
	ID              int64     `json:"userId"`
	Nickname        string    `json:"nickname"`
	Email           string    `json:"email"`
	ProfileImageURL string    `json:"profileImageUrl"`
	Point           int64     `json:"point"`
	Verified        bool      `json:"verified"`
	JoinedAt        time.Time `json:"joinedAt"`
}

// ProfileUpdateRequest はプロフィール更新のリクエストボディ。
type ProfileUpdateRequest struct {
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}
