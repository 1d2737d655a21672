// Package linking はGoogleサインインと既存のパスワードアカウントを統合する状態遷移を提供する。
//
// 状態遷移:
//
//	Unauthenticated → OAuthPending → {Linked, NewUser, NeedsLinking, Error}
//	NeedsLinking --ConfirmLink--> {Linked, Error}
//
// 公開メソッドはerrorを返さず、すべての失敗をResultのStatusErrorで表す。
//
// ConfirmLinkの統合はメタデータ更新とGoogle側identityの削除からなる。
// ディレクトリがTransactionalMergerを実装していれば両方を1トランザクションで行う。
// 実装していない場合は2段階で行い、更新後・削除前に停止しても
// 再度ConfirmLinkを呼ぶとリンク済みとして成功する。残ったidentityは
// クリーンアップワーカーが削除する。
package linking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/habitstreak/internal/model"
)

// Directory はリンク処理に必要なアカウントディレクトリの操作。
type Directory interface {
	FindByEmail(ctx context.Context, email string) ([]*model.Identity, error)
	UpdateMetadata(ctx context.Context, id string, metadata model.IdentityMetadata) error
	Delete(ctx context.Context, id string) error
}

// TransactionalMerger はメタデータ更新とGoogle側identityの削除を
// 1トランザクションで行えるディレクトリが実装する。
// 失敗時はどちらも反映されない。orphanが既に無い場合も成功とする。
type TransactionalMerger interface {
	MergeGoogleIdentity(ctx context.Context, primaryID string, metadata model.IdentityMetadata, orphanID string) error
}

// Authenticator はパスワードアカウントの認証を行う。
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.Identity, error)
}

// SessionManager はセッションの発行と破棄を行う。
type SessionManager interface {
	IssueSession(ctx context.Context, userID string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// LoginURLProvider はOAuth認可URLを生成する。
type LoginURLProvider interface {
	GetLoginURL(state string) string
}

// OutcomeRecorder はリンク処理の結果をメトリクスに記録する。
type OutcomeRecorder interface {
	RecordLinkOutcome(status string)
	RecordOrphanDeleteFailure()
}

// Service はアカウントリンクの状態遷移を実行する。
type Service struct {
	oauth    LoginURLProvider
	auth     Authenticator
	sessions SessionManager
	dir      Directory
	recorder OutcomeRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	oauth LoginURLProvider,
	auth Authenticator,
	sessions SessionManager,
	dir Directory,
	recorder OutcomeRecorder,
) *Service {
	return &Service{
		oauth:    oauth,
		auth:     auth,
		sessions: sessions,
		dir:      dir,
		recorder: recorder,
	}
}

// InitiateOAuth はGoogleの認可URLを返す。URLを生成できない場合はPROVIDER_ERROR。
func (s *Service) InitiateOAuth(state string) (string, *model.APIError) {
	url := s.oauth.GetLoginURL(state)
	if url == "" {
		slog.Error("oauth provider returned empty authorization url")
		return "", model.NewProviderError()
	}
	return url, nil
}

// CompleteOAuthCallback はGoogleサインイン直後のidentityとセッションを受け取り、
// 既存のパスワードアカウントとの関係から終端状態を決める。
// NeedsLinkingとDIRECTORY_LIST_FAILEDの場合、渡されたセッションは破棄される。
func (s *Service) CompleteOAuthCallback(ctx context.Context, identity *model.Identity, session *model.Session) Result {
	return s.record(s.completeOAuthCallback(ctx, identity, session))
}

func (s *Service) completeOAuthCallback(ctx context.Context, identity *model.Identity, session *model.Session) Result {
	if identity == nil || session == nil {
		return failedWithMessage(model.NewOAuthFailedError(), "サインインセッションがありません。もう一度お試しください。")
	}
	if identity.Email == "" {
		return failedWithMessage(model.NewOAuthFailedError(), "Googleアカウントからメールアドレスを取得できませんでした。")
	}

	if identity.Metadata.HasLinkedProvider(model.ProviderGoogle) {
		return linked(identity.Email, session)
	}

	identities, err := s.dir.FindByEmail(ctx, identity.Email)
	if err != nil {
		slog.Error("failed to look up identities by email",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)
		s.signOut(ctx, session)
		return failed(model.NewDirectoryListFailedError())
	}

	for _, other := range identities {
		if other.ID != identity.ID && other.Provider == model.ProviderEmail {
			s.signOut(ctx, session)
			slog.Info("google sign-in requires linking",
				slog.String("user_id", identity.ID),
				slog.String("primary_id", other.ID),
			)
			return needsLinking(identity.Email)
		}
	}

	return newUser(identity.Email, session)
}

// ConfirmLink はパスワードで本人確認した上で、同じメールアドレスの
// Googleのidentityをパスワードアカウントに統合する。
func (s *Service) ConfirmLink(ctx context.Context, email, password string) Result {
	return s.record(s.confirmLink(ctx, email, password))
}

func (s *Service) confirmLink(ctx context.Context, email, password string) Result {
	primary, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return failed(apiErr)
		}
		return failed(model.NewInvalidCredentialsError(""))
	}

	identities, err := s.dir.FindByEmail(ctx, primary.Email)
	if err != nil {
		slog.Error("failed to look up identities for linking",
			slog.String("user_id", primary.ID),
			slog.String("error", err.Error()),
		)
		return failed(model.NewDirectoryListFailedError())
	}

	var orphan *model.Identity
	for _, candidate := range identities {
		if candidate.ID != primary.ID && candidate.Provider == model.ProviderGoogle {
			orphan = candidate
			break
		}
	}

	if orphan == nil {
		if primary.Metadata.HasLinkedProvider(model.ProviderGoogle) {
			// 以前の統合が完了済み
			return s.issuePrimarySession(ctx, primary)
		}
		return failed(model.NewOrphanNotFoundError())
	}

	merged := primary.Metadata.WithLinkedProvider(model.ProviderGoogle)
	merged.GoogleID = orphan.ID
	merged.GoogleSub = orphan.ProviderUserID
	if apiErr := s.merge(ctx, primary, orphan, merged); apiErr != nil {
		return failed(apiErr)
	}

	slog.Info("google account linked",
		slog.String("user_id", primary.ID),
		slog.String("orphan_id", orphan.ID),
	)

	primary.Metadata = merged
	return s.issuePrimarySession(ctx, primary)
}

// merge はorphanをprimaryに統合する。
func (s *Service) merge(ctx context.Context, primary, orphan *model.Identity, merged model.IdentityMetadata) *model.APIError {
	if tx, ok := s.dir.(TransactionalMerger); ok {
		if err := tx.MergeGoogleIdentity(ctx, primary.ID, merged, orphan.ID); err != nil {
			slog.Error("failed to merge google identity into primary",
				slog.String("user_id", primary.ID),
				slog.String("orphan_id", orphan.ID),
				slog.String("error", err.Error()),
			)
			return model.NewMergeFailedError()
		}
		return nil
	}

	if err := s.dir.UpdateMetadata(ctx, primary.ID, merged); err != nil {
		slog.Error("failed to merge google identity into primary",
			slog.String("user_id", primary.ID),
			slog.String("orphan_id", orphan.ID),
			slog.String("error", err.Error()),
		)
		return model.NewMergeFailedError()
	}

	if err := s.dir.Delete(ctx, orphan.ID); err != nil {
		// 統合自体は完了しているため結果はlinkedのまま
		slog.Error("failed to delete merged google identity",
			slog.String("user_id", primary.ID),
			slog.String("orphan_id", orphan.ID),
			slog.String("error", err.Error()),
		)
		if s.recorder != nil {
			s.recorder.RecordOrphanDeleteFailure()
		}
	}
	return nil
}

func (s *Service) issuePrimarySession(ctx context.Context, primary *model.Identity) Result {
	session, err := s.sessions.IssueSession(ctx, primary.ID)
	if err != nil {
		slog.Error("failed to issue session after linking",
			slog.String("user_id", primary.ID),
			slog.String("error", err.Error()),
		)
		return failed(model.NewStoreUnavailableError())
	}
	return linked(primary.Email, session)
}

// signOut はセッションを破棄する。失敗はログのみ。
func (s *Service) signOut(ctx context.Context, session *model.Session) {
	if err := s.sessions.SignOut(ctx, session.ID); err != nil {
		slog.Warn("failed to sign out oauth session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) record(r Result) Result {
	if s.recorder != nil {
		s.recorder.RecordLinkOutcome(string(r.Status))
	}
	return r
}
