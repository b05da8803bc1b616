// Package session はクライアントが保持する認証状態を管理する。
// ブラウザの永続ストレージに相当するファイルにアクセストークンと
// ログイン後リダイレクトURLのみを保存する。それ以外の状態は永続化しない。
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// persistedState はファイルに保存する状態。
type persistedState struct {
	AccessToken      string `json:"accessToken,omitempty"`
	LoginRedirectURL string `json:"loginRedirectUrl,omitempty"`
}

// Store はアクセストークンとワンショットのリダイレクトURLを保持する。
// すべての送信リクエストがリクエスト構築時にトークンを読み取るため、
// 並行アクセスに対してmutexで保護する。
type Store struct {
	mu    sync.RWMutex
	path  string
	state persistedState
}

// NewStore は指定パスのファイルを読み込んでStoreを生成する。
// ファイルが存在しない場合は空のセッションとして開始する。
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		// 壊れたファイルは空セッションとして扱う（ログイン状態の喪失のみで復旧可能）
		s.state = persistedState{}
	}

	return s, nil
}

// Token は保存されているアクセストークンを返す。未ログインの場合は空文字列。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// IsAuthenticated はアクセストークンを保持しているかを返す。
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// SetToken はOAuthコールバック成功時にアクセストークンを保存する。
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = token
	return s.persistLocked()
}

// Clear は明示的なログアウト時にトークンを破棄する。
// 401応答ではトークンを破棄しない（再ログインプロンプトのみ表示する）。
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = ""
	return s.persistLocked()
}

// SetLoginRedirectURL はログイン後に戻るURLを保存する。
func (s *Store) SetLoginRedirectURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LoginRedirectURL = url
	return s.persistLocked()
}

// ConsumeLoginRedirectURL は保存されたリダイレクトURLを返し、同時に消去する。
// OAuthコールバック後に1回だけ消費されるワンショット値。
func (s *Store) ConsumeLoginRedirectURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url := s.state.LoginRedirectURL
	s.state.LoginRedirectURL = ""
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return url, nil
}

// persistLocked は現在の状態をファイルに書き込む。呼び出し元でロックを取得していること。
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("セッション状態のシリアライズに失敗しました: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("セッションファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}
