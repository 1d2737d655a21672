// Package model はドメインモデルを定義する。
package model

import (
	"slices"
	"time"
)

// プロバイダー種別
const (
	// ProviderEmail はメールアドレス+パスワードによるidentity。
	ProviderEmail = "email"
	// ProviderGoogle はGoogle OAuthによるidentity。
	ProviderGoogle = "google"
)

// ロール
const (
	RoleSuperAdmin = "Super Admin"
	RoleUserAdmin  = "User Admin"
	RoleUser       = "User"
)

// IsValidRole は定義済みのロールかどうかを判定する。
func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleUserAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// Identity はディレクトリ上のアカウントを表す。
// 同じメールアドレスに対してプロバイダーごとに1行ずつ存在しうる。
// Googleのidentityはリンク完了までの間だけ一時的に共存する。
type Identity struct {
	ID             string
	Email          string
	Provider       string
	ProviderUserID string // Googleのsub。emailプロバイダーでは空
	PasswordHash   string // emailプロバイダーのみ
	Metadata       IdentityMetadata
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IdentityMetadata はidentityのプロフィールメタデータ。
// JSONBカラムとして保存される。
type IdentityMetadata struct {
	LinkedProviders []string `json:"linked_providers,omitempty"`
	GoogleID        string   `json:"google_id,omitempty"`
	GoogleSub       string   `json:"google_sub,omitempty"`
}

// HasLinkedProvider は指定プロバイダーがリンク済みかどうかを返す。
func (m IdentityMetadata) HasLinkedProvider(provider string) bool {
	return slices.Contains(m.LinkedProviders, provider)
}

// WithLinkedProvider はlinked_providersにproviderを和集合で追加したコピーを返す。
// 既に含まれている場合は元の順序のまま返す（冪等）。
func (m IdentityMetadata) WithLinkedProvider(provider string) IdentityMetadata {
	out := m
	out.LinkedProviders = slices.Clone(m.LinkedProviders)
	if !slices.Contains(out.LinkedProviders, provider) {
		out.LinkedProviders = append(out.LinkedProviders, provider)
	}
	return out
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal はリクエスト単位で解決された認証コンテキスト。
// セッションミドルウェアが1リクエストにつき1回だけ解決する。
type Principal struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// IsSuperAdmin はSuper Adminロールかどうかを返す。
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}
