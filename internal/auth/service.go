// Package auth はパスワード認証、Google OAuth認証、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/repository"
)

// defaultMinPasswordLength はパスワードの最小文字数のデフォルト値。
const defaultMinPasswordLength = 6

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。生成できない場合は空文字を返す。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int // セッション有効期間（秒）
	MinPasswordLength int
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = defaultMinPasswordLength
	}
	return &Service{
		oauth:       oauth,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// SignUp はメールアドレスとパスワードでアカウントを作成し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if len([]rune(password)) < s.config.MinPasswordLength {
		return nil, nil, model.NewInvalidSignUpError(fmt.Sprintf("パスワードは%d文字以上で入力してください。", s.config.MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return nil, nil, model.NewInvalidSignUpError("パスワードが長すぎます。")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	identity := &model.Identity{
		ID:           uuid.New().String(),
		Email:        email,
		Provider:     model.ProviderEmail,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identRepo.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, model.NewEmailTakenError()
		}
		return nil, nil, fmt.Errorf("failed to create identity: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", identity.ID),
		slog.String("provider", identity.Provider),
	)

	session, err := s.IssueSession(ctx, identity.ID)
	if err != nil {
		return nil, nil, err
	}
	return identity, session, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	identity, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.IssueSession(ctx, identity.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user signed in",
		slog.String("user_id", identity.ID),
		slog.String("provider", identity.Provider),
	)
	return identity, session, nil
}

// Authenticate はパスワードアカウントを認証する。セッションは発行しない。
// アカウントが存在しない場合とパスワード不一致の場合は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	email = CanonicalEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError("")
	}

	identities, err := s.identRepo.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to look up identity for authentication",
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError()
	}

	for _, identity := range identities {
		if identity.Provider != model.ProviderEmail || identity.PasswordHash == "" {
			continue
		}
		if err := s.hasher.Compare(identity.PasswordHash, password); err != nil {
			if !errors.Is(err, ErrPasswordMismatch) {
				slog.Error("password comparison failed",
					slog.String("user_id", identity.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil, model.NewInvalidCredentialsError("")
		}
		return identity, nil
	}

	return nil, model.NewInvalidCredentialsError("")
}

// SignInWithGoogle は認可コードを交換し、Googleのidentityを解決してセッションを発行する。
// 解決順序: (google, sub) のidentity → metadata.google_subが一致するリンク済みアカウント → 新規作成。
func (s *Service) SignInWithGoogle(ctx context.Context, code string) (*model.Identity, *model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("google code exchange failed", slog.String("error", err.Error()))
		return nil, nil, model.NewOAuthFailedError()
	}

	identity, err := s.resolveGoogleIdentity(ctx, userInfo)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.IssueSession(ctx, identity.ID)
	if err != nil {
		return nil, nil, err
	}
	return identity, session, nil
}

func (s *Service) resolveGoogleIdentity(ctx context.Context, userInfo *OAuthUserInfo) (*model.Identity, error) {
	identity, err := s.identRepo.FindByProviderUserID(ctx, model.ProviderGoogle, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		slog.Info("existing google identity signed in", slog.String("user_id", identity.ID))
		return identity, nil
	}

	// リンク済みのパスワードアカウント
	identity, err = s.identRepo.FindByGoogleSub(ctx, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked identity: %w", err)
	}
	if identity != nil {
		slog.Info("linked account signed in with google", slog.String("user_id", identity.ID))
		return identity, nil
	}

	if userInfo.Email == "" {
		slog.Warn("google account has no email", slog.String("provider_user_id", userInfo.ProviderUserID))
		return nil, model.NewOAuthFailedError()
	}

	now := s.now()
	identity = &model.Identity{
		ID:             uuid.New().String(),
		Email:          CanonicalEmail(userInfo.Email),
		Provider:       model.ProviderGoogle,
		ProviderUserID: userInfo.ProviderUserID,
		Role:           model.RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.identRepo.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// 同時コールバックで先に作成された
			existing, findErr := s.identRepo.FindByProviderUserID(ctx, model.ProviderGoogle, userInfo.ProviderUserID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create google identity: %w", err)
	}

	slog.Info("new google identity created",
		slog.String("user_id", identity.ID),
		slog.String("provider", identity.Provider),
	)
	return identity, nil
}

// IssueSession は指定identityのセッションを作成し永続化する。
func (s *Service) IssueSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// ResolveSession はセッションIDから認証コンテキストを解決する。
// セッションが存在しない、期限切れ、identityが削除済みの場合は(nil, nil)を返す。
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (*model.Principal, error) {
	session, identity, err := s.lookupSession(ctx, sessionID)
	if err != nil || identity == nil {
		return nil, err
	}

	return &model.Principal{
		UserID:    identity.ID,
		Email:     identity.Email,
		Role:      identity.Role,
		SessionID: session.ID,
	}, nil
}

// GetCurrentUser はセッションから現在のidentityを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.Identity, error) {
	_, identity, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, model.NewAuthRequiredError()
	}
	return identity, nil
}

func (s *Service) lookupSession(ctx context.Context, sessionID string) (*model.Session, *model.Identity, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	identity, err := s.identRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return session, identity, nil
}

// normalizeEmail はメールアドレスを検証して正規形にする。
func normalizeEmail(email string) (string, error) {
	email = CanonicalEmail(email)
	if email == "" {
		return "", model.NewInvalidSignUpError("メールアドレスを入力してください。")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewInvalidSignUpError("メールアドレスの形式が正しくありません。")
	}
	return email, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
