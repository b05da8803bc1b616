package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/onthetop/internal/model"
)

// SubmitGeneration はデスク写真とコンセプトを送信してAI画像生成を開始する。
// multipart形式のアップロードのため、アップロード用タイムアウトポリシーを適用する。
// 返却されたaiImageIdが以後のポーリング対象となる。
func (c *Client) SubmitGeneration(ctx context.Context, beforeImage io.Reader, filename, concept string) (int64, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// ボディの構築はストリーミングで行う（画像全体をメモリに載せない）
	go func() {
		part, err := mw.CreateFormFile("beforeImagePath", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, beforeImage); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("concept", concept); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	var out struct {
		AIImageID int64 `json:"aiImageId"`
	}
	err := c.do(ctx, c.uploadClient, http.MethodPost, "/ai-images", nil, pr, mw.FormDataContentType(), &out)
	if err != nil {
		return 0, fmt.Errorf("画像生成リクエストの送信に失敗しました: %w", err)
	}
	return out.AIImageID, nil
}

// GetGeneration は生成ジョブの現在状態を取得する。ポーリングで繰り返し呼ばれる。
func (c *Client) GetGeneration(ctx context.Context, imageID int64) (*model.AIImage, error) {
	var out struct {
		Image *model.AIImage `json:"image"`
	}
	if err := c.get(ctx, fmt.Sprintf("/ai-images/%d", imageID), nil, &out); err != nil {
		return nil, err
	}
	return out.Image, nil
}

// ListDeskImages は生成済みデスク画像の一覧を1ページ分取得する。
func (c *Client) ListDeskImages(ctx context.Context, size int, cursor *model.DeskImageCursor) (*model.DeskImagePage, error) {
	q := url.Values{}
	q.Set("size", strconv.Itoa(size))
	if cursor != nil {
		q.Set("lastImageId", strconv.FormatInt(cursor.LastImageID, 10))
	}

	var page model.DeskImagePage
	if err := c.get(ctx, "/ai-images", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
