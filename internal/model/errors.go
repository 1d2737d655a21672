// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, goal, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeStoreUnavailable    = "STORE_UNAVAILABLE"
	ErrCodeProviderError       = "PROVIDER_ERROR"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeOrphanNotFound      = "ORPHAN_NOT_FOUND"
	ErrCodeMergeFailed         = "MERGE_FAILED"
	ErrCodeDirectoryListFailed = "DIRECTORY_LIST_FAILED"
	ErrCodeGoalNotFound        = "GOAL_NOT_FOUND"
	ErrCodeInvalidGoal         = "INVALID_GOAL"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidSignUp       = "INVALID_SIGN_UP"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeOAuthFailed         = "OAUTH_FAILED"
)

// NewAuthRequiredError は未認証エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewStoreUnavailableError はストアの読み書き失敗エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データの取得または保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderError はOAuth認証URLの発行失敗エラーを生成する。
func NewProviderError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderError,
		Message:  "Googleサインインを開始できませんでした。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証情報が不正な場合のエラーを生成する。
// messageには認証プロバイダーが返したメッセージをそのまま渡す。
func NewInvalidCredentialsError(message string) *APIError {
	if message == "" {
		message = "メールアドレスまたはパスワードが正しくありません。"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewOrphanNotFoundError はリンク対象のGoogleアカウントが見つからない場合のエラーを生成する。
func NewOrphanNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeOrphanNotFound,
		Message:  "リンクするGoogleアカウントが見つかりません。",
		Category: "auth",
		Action:   "もう一度Googleでサインインしてください。",
	}
}

// NewMergeFailedError はアカウント統合時のメタデータ更新失敗エラーを生成する。
func NewMergeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeMergeFailed,
		Message:  "Googleアカウントをプロフィールにリンクできませんでした。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDirectoryListFailedError はアカウント一覧の取得失敗エラーを生成する。
func NewDirectoryListFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDirectoryListFailed,
		Message:  "既存アカウントの確認に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewGoalNotFoundError は目標が見つからない場合のエラーを生成する。
func NewGoalNotFoundError(goalID string) *APIError {
	return &APIError{
		Code:     ErrCodeGoalNotFound,
		Message:  fmt.Sprintf("指定された目標が見つかりません: %s", goalID),
		Category: "goal",
		Action:   "目標一覧を再読み込みしてください。",
	}
}

// NewInvalidGoalError は目標の入力値が不正な場合のエラーを生成する。
func NewInvalidGoalError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGoal,
		Message:  fmt.Sprintf("目標の入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailTakenError は同じメールアドレスのアカウントが既に存在する場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "サインインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidSignUpError はサインアップ入力が不正な場合のエラーを生成する。
func NewInvalidSignUpError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignUp,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "Super Adminに依頼してください。",
	}
}

// NewInvalidRoleError は未定義のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "Super Admin、User Admin、User のいずれかを指定してください。",
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

// NewOAuthFailedError はOAuthコールバック処理の失敗エラーを生成する。
func NewOAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  "Googleでサインインできませんでした。もう一度お試しください。",
		Category: "auth",
		Action:   "もう一度Googleでサインインしてください。",
	}
}
