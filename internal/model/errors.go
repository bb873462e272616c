// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Fieldsはバリデーションエラー時のみ設定され、フィールド名をキーとする
// 項目別のエラーメッセージを保持する。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, task, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド別エラー（バリデーション時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeConfirmRequired    = "CONFIRM_REQUIRED"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
)

// NewValidationError はフィールド別メッセージ付きのバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各フィールドのエラーメッセージを確認して修正してください。",
		Fields:   fields,
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 存在しないIDと他ユーザー所有のIDを区別しない（所有探りの防止）。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスク一覧から対象のタスクを確認してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
		Fields:   map[string]string{"username": "このユーザー名は既に使用されています。"},
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名が存在しない場合とパスワードが誤っている場合で同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗のエラーを生成する。
// トークンの欠落と不一致を区別しない。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みして再度お試しください。",
	}
}

// NewConfirmRequiredError は削除確認が未指定の場合のエラーを生成する。
// 削除は破壊的操作のため、確認ステップを経ずに実行されることはない。
func NewConfirmRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmRequired,
		Message:  "削除には確認が必要です。",
		Category: "validation",
		Action:   "confirm=true を指定して再度リクエストしてください。",
	}
}
