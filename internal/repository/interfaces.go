// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/habitstreak/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約違反で挿入できなかった場合に返される。
var ErrDuplicate = errors.New("duplicate record")

// IdentityRepository はアカウントディレクトリの永続化インターフェース。
type IdentityRepository interface {
	// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Identity, error)

	// FindByEmail は同じメールアドレスを持つ全プロバイダーのidentityを返す。
	// idx_identities_email による索引検索で、ページングは不要。
	FindByEmail(ctx context.Context, email string) ([]*model.Identity, error)

	// FindByProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// FindByGoogleSub はmetadata.google_subが一致するリンク済みidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByGoogleSub(ctx context.Context, sub string) (*model.Identity, error)

	// Create はidentityを作成する。一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, identity *model.Identity) error

	// UpdateMetadata はidentityのメタデータを置き換える。
	UpdateMetadata(ctx context.Context, id string, metadata model.IdentityMetadata) error

	// UpdateRole はidentityのロールを更新する。
	UpdateRole(ctx context.Context, id, role string) error

	// Delete は指定IDのidentityを削除する。
	// セッション・目標・チェックインはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// List はidentityを作成日時順にページ単位で返す。pageは1始まり。
	List(ctx context.Context, page, perPage int) ([]*model.Identity, int, error)

	// DeleteReferencedOrphans はパスワードアカウントのmetadata.google_idから
	// 参照されているGoogleのidentityを削除し、削除件数を返す。
	DeleteReferencedOrphans(ctx context.Context) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// GoalRepository は目標データの永続化インターフェース。
// すべての操作は (id, user_id) でスコープされる。
type GoalRepository interface {
	// ListActiveByUser はユーザーの有効な目標を作成日時の新しい順に返す。
	ListActiveByUser(ctx context.Context, userID string) ([]*model.Goal, error)

	// FindByIDAndUser は所有者が一致する目標を取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Goal, error)

	// Create は目標を作成する。
	Create(ctx context.Context, goal *model.Goal) error

	// Update は目標のタイトル・理由・リマインダー時刻を更新する。
	// 所有者が一致する目標がない場合はErrNotFoundを返す。
	Update(ctx context.Context, goal *model.Goal) error

	// Delete は所有者が一致する目標を削除する。チェックインはCASCADE削除される。
	// 該当する目標がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, userID string) error
}

// CheckinRepository はチェックインデータの永続化インターフェース。
type CheckinRepository interface {
	// Create はチェックインを追加する。
	// (user_id, goal_id, checked_on) が既に存在する場合は何もせずfalseを返す。
	Create(ctx context.Context, checkin *model.CheckIn) (bool, error)

	// ListByUser はユーザーの全チェックインを返す。
	ListByUser(ctx context.Context, userID string) ([]*model.CheckIn, error)

	// ListByGoal は目標のチェックインを日付の新しい順に返す。
	ListByGoal(ctx context.Context, goalID, userID string) ([]*model.CheckIn, error)
}
