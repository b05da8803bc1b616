package api

import (
	"context"

	"github.com/hitoshi/onthetop/internal/model"
)

// GetMe はログインユーザーのプロフィールを取得する。
func (c *Client) GetMe(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.get(ctx, "/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// UpdateProfile はプロフィールを更新する。
func (c *Client) UpdateProfile(ctx context.Context, req model.ProfileUpdateRequest) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.patchJSON(ctx, "/me", req, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}
