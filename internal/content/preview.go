package content

import (
	"strings"

	"golang.org/x/net/html"
)

// Preview はHTML本文からタグを除いたプレーンテキストを抽出し、
// maxRunes文字に切り詰めて返す。一覧行のプレビュー表示に使う。
// 切り詰めが発生した場合は末尾に省略記号を付ける。
func Preview(rawHTML string, maxRunes int) string {
	text := extractText(rawHTML)

	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}

// extractText はHTMLのテキストノードを走査して連結し、連続する空白を1つにまとめる。
// パースに失敗した場合は入力をそのまま返す（プレビューは表示補助であり致命的でない）。
func extractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return strings.TrimSpace(rawHTML)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		// script・style内のテキストはプレビューに含めない
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}
