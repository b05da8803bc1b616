// Package content はコミュニティ投稿・コメント本文の表示前処理を提供する。
// HTMLのサニタイズと、一覧行に表示するプレーンテキストプレビューの抽出を含む。
package content

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はユーザー投稿HTMLをサニタイズする。
// 許可リストベースのポリシーで安全なタグと属性のみを通過させ、
// script・iframe・on*イベント属性を除去する。スレッドセーフ。
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer はSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - aタグ: href許可、target="_blank"とrel="noopener noreferrer"を強制付与
//   - imgタグ: src許可（https URLのみ）
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https", "http")
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	return &Sanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
func (s *Sanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
