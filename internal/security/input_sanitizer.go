// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はユーザーが入力したタスクのタイトル・説明文から
// HTMLタグを除去し、保存データを常にプレーンテキストに保つ。
// フロントエンドがどのようにレンダリングしてもXSSが成立しないことを
// 保存時点で保証する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// タスクの作成・更新時、保存前に使用される。
type InputSanitizerService interface {
	// Sanitize は入力文字列からすべてのHTMLタグを除去し、前後の空白を取り除く。
	// タスクの内容はプレーンテキストとして扱うため、許可タグは存在しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全タグ・全属性を除去し、テキストのみを残す。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力文字列からすべてのHTMLタグを除去し、前後の空白を取り除く。
func (s *inputSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}
