package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// セッションとidentityを削除し、目標とチェックインはCASCADE削除される。
	Withdraw(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, principal *model.Principal, page, perPage int) (*user.Page, error)
	UpdateRole(ctx context.Context, principal *model.Principal, userID, role string) (*model.Identity, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// 退会時にセッションCookieを削除するためCookie設定を受け取る。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		config:  config,
	}
}

// updateRoleRequest はロール変更リクエストのボディ。
type updateRoleRequest struct {
	Role string `json:"role"`
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	if err := h.service.Withdraw(r.Context(), principal.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	clearSessionCookie(w, h.config)
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers はディレクトリのユーザー一覧を返す。Super Adminのみ。
// GET /api/admin/users?page=1&per_page=100
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	page := queryInt(r, "page")
	perPage := queryInt(r, "per_page")

	result, err := h.service.ListUsers(r.Context(), principal, page, perPage)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(result))
}

// UpdateRole はユーザーのロールを変更する。Super Adminのみ。
// PUT /api/admin/users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req updateRoleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	identity, err := h.service.UpdateRole(r.Context(), principal, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(identity))
}

// queryInt はクエリパラメータを整数として読む。未指定や不正な値は0。
func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
