// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/habitstreak/internal/linking"
	"github.com/hitoshi/habitstreak/internal/middleware"
	"github.com/hitoshi/habitstreak/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieAge   = 600 // 10分

	linkAccountPath = "/auth/link-account"
	authErrorPath   = "/auth/auth-error"
)

// AuthServiceInterface は認証ハンドラーが必要とする認証サービスのインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	SignInWithGoogle(ctx context.Context, code string) (*model.Identity, *model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.Identity, error)
}

// LinkingServiceInterface はアカウントリンクの状態遷移を提供するインターフェース。
type LinkingServiceInterface interface {
	InitiateOAuth(state string) (string, *model.APIError)
	CompleteOAuthCallback(ctx context.Context, identity *model.Identity, session *model.Session) linking.Result
	ConfirmLink(ctx context.Context, email, password string) linking.Result
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	linking LinkingServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, linkingService LinkingServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		linking: linkingService,
		config:  config,
	}
}

// credentialsRequest はメールアドレスとパスワードのリクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はログインユーザーのAPIレスポンス。
type userResponse struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Provider        string   `json:"provider"`
	Role            string   `json:"role"`
	LinkedProviders []string `json:"linked_providers"`
}

// linkResponse はリンク確認のAPIレスポンス。
type linkResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
	Code    string `json:"code,omitempty"`
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login?next=/path
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.redirectAuthError(w, r, model.NewProviderError().Message)
		return
	}

	authURL, apiErr := h.linking.InitiateOAuth(state)
	if apiErr != nil {
		h.redirectAuthError(w, r, apiErr.Message)
		return
	}

	// stateとnextをCookieに保存（CSRF対策）
	h.setShortLivedCookie(w, oauthStateCookie, state)
	h.setShortLivedCookie(w, oauthNextCookie, safeNextPath(r.URL.Query().Get("next")))

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// 結果はすべてフロントエンドへのリダイレクトで返す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.redirectAuthError(w, r, "サインインの有効期限が切れました。もう一度お試しください。")
		return
	}

	next := "/"
	if c, err := r.Cookie(oauthNextCookie); err == nil {
		next = safeNextPath(c.Value)
	}
	h.clearCookie(w, oauthStateCookie)
	h.clearCookie(w, oauthNextCookie)

	// 2. プロバイダーからのエラー
	if providerErr := query.Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error", slog.String("error", providerErr))
		h.redirectAuthError(w, r, model.NewOAuthFailedError().Message)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectAuthError(w, r, model.NewOAuthFailedError().Message)
		return
	}

	// 3. 認可コードの交換とidentityの解決
	identity, session, err := h.service.SignInWithGoogle(r.Context(), code)
	if err != nil {
		h.redirectAuthError(w, r, errorMessage(err, model.NewOAuthFailedError()))
		return
	}

	// 4. 既存アカウントとの関係を判定
	result := h.linking.CompleteOAuthCallback(r.Context(), identity, session)
	switch result.Status {
	case linking.StatusLinked, linking.StatusNewUser:
		h.setSessionCookie(w, result.Session)
		http.Redirect(w, r, h.config.BaseURL+next, http.StatusFound)
	case linking.StatusNeedsLinking:
		clearSessionCookie(w, h.config)
		http.Redirect(w, r, h.config.BaseURL+linkAccountPath+"?email="+url.QueryEscape(result.Email), http.StatusFound)
	case linking.StatusError:
		h.redirectAuthError(w, r, result.Message)
	default:
		slog.Error("unknown linking status", slog.String("status", string(result.Status)))
		h.redirectAuthError(w, r, model.NewOAuthFailedError().Message)
	}
}

// Link はパスワードで本人確認してGoogleアカウントをリンクする。
// POST /auth/link
func (h *AuthHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCredentialsError("メールアドレスとパスワードを入力してください。"))
		return
	}

	result := h.linking.ConfirmLink(r.Context(), req.Email, req.Password)
	switch result.Status {
	case linking.StatusLinked:
		h.setSessionCookie(w, result.Session)
		writeJSON(w, http.StatusOK, linkResponse{
			Status:  string(result.Status),
			Message: "Googleアカウントをリンクしました。",
			Email:   result.Email,
		})
	case linking.StatusError:
		apiErr := result.Err
		if apiErr == nil {
			apiErr = model.NewMergeFailedError()
		}
		writeJSON(w, mapAPIErrorToHTTPStatus(apiErr), linkResponse{
			Status:  string(result.Status),
			Message: result.Message,
			Code:    apiErr.Code,
		})
	default:
		slog.Error("unexpected linking status", slog.String("status", string(result.Status)))
		middleware.WriteInternalServerError(w)
	}
}

// SignUp はメールアドレスとパスワードでアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	identity, session, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, toUserResponse(identity))
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	identity, session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, toUserResponse(identity))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.SignOut(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	identity, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(identity))
}

// --- ヘルパー関数 ---

func toUserResponse(identity *model.Identity) userResponse {
	linked := identity.Metadata.LinkedProviders
	if linked == nil {
		linked = []string{}
	}
	return userResponse{
		ID:              identity.ID,
		Email:           identity.Email,
		Provider:        identity.Provider,
		Role:            identity.Role,
		LinkedProviders: linked,
	}
}

func (h *AuthHandler) redirectAuthError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.config.BaseURL+authErrorPath+"?message="+url.QueryEscape(message), http.StatusFound)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	if session == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) setShortLivedCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   oauthCookieAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie はOAuthフロー用のCookieを削除する。
func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func clearSessionCookie(w http.ResponseWriter, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNextPath はオープンリダイレクトを防ぐため、同一オリジンの相対パスのみを許可する。
func safeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}

// errorMessage はAPIErrorならそのメッセージを、それ以外はfallbackのメッセージを返す。
func errorMessage(err error, fallback *model.APIError) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	slog.Error("unexpected auth error", slog.String("error", err.Error()))
	return fallback.Message
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
