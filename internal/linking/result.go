package linking

import "github.com/hitoshi/habitstreak/internal/model"

// Status はリンク処理の終端状態。
type Status string

const (
	// StatusLinked はパスワードアカウントにGoogleがリンク済みの状態。
	StatusLinked Status = "linked"
	// StatusNewUser は同じメールアドレスのパスワードアカウントが存在しない新規ユーザー。
	StatusNewUser Status = "new_user"
	// StatusNeedsLinking はパスワードでの確認が必要な状態。セッションは発行されない。
	StatusNeedsLinking Status = "needs_linking"
	// StatusError は処理に失敗した状態。
	StatusError Status = "error"
)

// Result はリンク処理の結果。Statusによって有効なフィールドが決まる。
//
//	linked:        Session（ConfirmLinkでは新規発行したセッション）
//	new_user:      Session
//	needs_linking: Email
//	error:         Err, Message
type Result struct {
	Status  Status
	Email   string
	Message string
	Err     *model.APIError
	Session *model.Session
}

func linked(email string, session *model.Session) Result {
	return Result{Status: StatusLinked, Email: email, Session: session}
}

func newUser(email string, session *model.Session) Result {
	return Result{Status: StatusNewUser, Email: email, Session: session}
}

func needsLinking(email string) Result {
	return Result{
		Status:  StatusNeedsLinking,
		Email:   email,
		Message: "このメールアドレスのアカウントが既に存在します。パスワードを入力してGoogleアカウントをリンクしてください。",
	}
}

func failed(err *model.APIError) Result {
	return Result{Status: StatusError, Message: err.Message, Err: err}
}

// failedWithMessage はAPIErrorのメッセージを差し替えたエラー結果を返す。
func failedWithMessage(err *model.APIError, message string) Result {
	e := *err
	e.Message = message
	return failed(&e)
}
