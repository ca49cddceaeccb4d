package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は貼り付けテキストや取得した見出しからHTMLを除去する。
// 評価器のヒューリスティックはプレーンテキストに対して動作する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するbluemondayのStrictPolicyで初期化する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去し、エンティティを復元して空白を1つにまとめる。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは&などをエスケープするため元の文字に戻す
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}
