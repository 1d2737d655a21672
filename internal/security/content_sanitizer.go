// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は目標のタイトルや理由など、ユーザーが入力した
// プレーンテキストからHTMLを取り除く。
// bluemondayのStrictPolicyで全タグを除去した上でエンティティを戻すため、
// 保存される値は常にマークアップを含まないテキストになる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// SanitizeText は入力からHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, styleタグは内容ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からHTMLタグを除去したテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
