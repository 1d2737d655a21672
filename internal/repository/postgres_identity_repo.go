package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/habitstreak/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id, email, provider, provider_user_id, password_hash, metadata, role, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(s rowScanner) (*model.Identity, error) {
	var (
		identity       model.Identity
		providerUserID sql.NullString
		passwordHash   sql.NullString
		metadata       []byte
	)
	err := s.Scan(
		&identity.ID, &identity.Email, &identity.Provider, &providerUserID, &passwordHash,
		&metadata, &identity.Role, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	identity.ProviderUserID = providerUserID.String
	identity.PasswordHash = passwordHash.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &identity.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode identity metadata: %w", err)
		}
	}
	return &identity, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by ID: %w", err)
	}
	return identity, nil
}

// FindByEmail は同じメールアドレスを持つ全プロバイダーのidentityを返す。
func (r *PostgresIdentityRepo) FindByEmail(ctx context.Context, email string) ([]*model.Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1 ORDER BY created_at, id`,
		strings.ToLower(email),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find identities by email: %w", err)
	}
	defer rows.Close()

	var identities []*model.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identities: %w", err)
	}
	return identities, nil
}

// FindByProviderUserID はproviderとprovider_user_idでidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return identity, nil
}

// FindByGoogleSub はmetadata.google_subが一致するリンク済みidentityを検索する。
func (r *PostgresIdentityRepo) FindByGoogleSub(ctx context.Context, sub string) (*model.Identity, error) {
	identity, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE metadata ? 'google_sub' AND metadata->>'google_sub' = $1
		 ORDER BY created_at
		 LIMIT 1`,
		sub,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by google sub: %w", err)
	}
	return identity, nil
}

// Create はidentityを作成する。一意制約違反の場合はErrDuplicateを返す。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	metadata, err := json.Marshal(identity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode identity metadata: %w", err)
	}
	if identity.Role == "" {
		identity.Role = model.RoleUser
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, provider, provider_user_id, password_hash, metadata, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		identity.ID, strings.ToLower(identity.Email), identity.Provider,
		nullIfEmpty(identity.ProviderUserID), nullIfEmpty(identity.PasswordHash),
		metadata, identity.Role, identity.CreatedAt, identity.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// UpdateMetadata はidentityのメタデータを置き換える。
func (r *PostgresIdentityRepo) UpdateMetadata(ctx context.Context, id string, metadata model.IdentityMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode identity metadata: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET metadata = $2, updated_at = now() WHERE id = $1`,
		id, data,
	)
	if err != nil {
		return fmt.Errorf("failed to update identity metadata: %w", err)
	}
	return expectAffected(result)
}

// MergeGoogleIdentity はprimaryのメタデータ更新とGoogle側identityの削除を
// 1トランザクションで行う。primaryが無ければErrNotFound。
// orphanが既に削除済みでも成功とする。
func (r *PostgresIdentityRepo) MergeGoogleIdentity(ctx context.Context, primaryID string, metadata model.IdentityMetadata, orphanID string) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode identity metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE identities SET metadata = $2, updated_at = now() WHERE id = $1 AND provider = 'email'`,
		primaryID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to update identity metadata: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM identities WHERE id = $1 AND provider = 'google'`, orphanID,
	); err != nil {
		return fmt.Errorf("failed to delete merged identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}

// UpdateRole はidentityのロールを更新する。
func (r *PostgresIdentityRepo) UpdateRole(ctx context.Context, id, role string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE identities SET role = $2, updated_at = now() WHERE id = $1`,
		id, role,
	)
	if err != nil {
		return fmt.Errorf("failed to update identity role: %w", err)
	}
	return expectAffected(result)
}

// Delete は指定IDのidentityを削除する。
func (r *PostgresIdentityRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM identities WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return expectAffected(result)
}

// List はidentityを作成日時順にページ単位で返す。
// 2つ目の戻り値は全件数。
func (r *PostgresIdentityRepo) List(ctx context.Context, page, perPage int) ([]*model.Identity, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM identities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count identities: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		perPage, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	identities := make([]*model.Identity, 0, perPage)
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate identities: %w", err)
	}
	return identities, total, nil
}

// DeleteReferencedOrphans はリンク済みで残存したGoogleのidentityを削除する。
func (r *PostgresIdentityRepo) DeleteReferencedOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM identities o
		 USING identities p
		 WHERE o.provider = 'google'
		   AND p.provider = 'email'
		   AND p.id <> o.id
		   AND p.metadata->>'google_id' = o.id::text`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan identities: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// expectAffected は1行以上更新されたことを確認し、0行ならErrNotFoundを返す。
func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
