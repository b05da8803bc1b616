package api

import (
	"context"

	"github.com/hitoshi/onthetop/internal/model"
)

// AddLike は対象にいいねを付与する。冪等な操作であり、レスポンスボディは持たない。
func (c *Client) AddLike(ctx context.Context, targetType model.TargetType, targetID int64) error {
	return c.postJSON(ctx, "/likes", model.ToggleRequest{Type: targetType, TargetID: targetID}, nil)
}

// RemoveLike は対象のいいねを解除する。
func (c *Client) RemoveLike(ctx context.Context, targetType model.TargetType, targetID int64) error {
	return c.deleteJSON(ctx, "/likes", model.ToggleRequest{Type: targetType, TargetID: targetID})
}
