// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/habitstreak/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey はリクエストコンテキストにPrincipalを格納するためのキー。
	principalContextKey = contextKey("principal")
	// requestStateContextKey はロギングミドルウェアと共有するリクエスト状態のキー。
	requestStateContextKey = contextKey("request_state")
)

// PrincipalResolver はセッションIDから認証コンテキストを解決する。
// セッションが無効な場合は (nil, nil) を返す。
type PrincipalResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.Principal, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 1リクエストにつき1回だけPrincipalを解決してコンテキストに注入する。
// 未認証リクエストには401 AUTH_REQUIREDを返す。
func NewSessionMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			// 2. セッションの有効性を検証
			principal, err := resolver.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewStoreUnavailableError())
				return
			}
			if principal == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			// 3. Principalをコンテキストに注入
			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストからPrincipalを取得する。
// セッションミドルウェアを通過していない場合はnilを返す。
func PrincipalFromContext(ctx context.Context) *model.Principal {
	principal, _ := ctx.Value(principalContextKey).(*model.Principal)
	return principal
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	principal := PrincipalFromContext(ctx)
	if principal == nil || principal.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return principal.UserID, nil
}

// ContextWithPrincipal はコンテキストにPrincipalを注入する。
// ロギングミドルウェアが先に動いている場合はログ用のユーザーIDも記録する。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	if state, ok := ctx.Value(requestStateContextKey).(*requestState); ok && principal != nil {
		state.userID = principal.UserID
	}
	return context.WithValue(ctx, principalContextKey, principal)
}

// ContextWithUserID はUser権限のPrincipalをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithPrincipal(ctx, &model.Principal{UserID: userID, Role: model.RoleUser})
}
