package repository

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hitoshi/habitstreak/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// Cookieに載るトークンは保存せず、secretをキーにしたダイジェストで行を引く。
// secretを変更すると既存セッションはすべて無効になる。
type PostgresSessionRepo struct {
	db     *sql.DB
	secret []byte
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB, secret string) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db, secret: []byte(secret)}
}

// digest はセッショントークンのHMAC-SHA256を16進で返す。
func (r *PostgresSessionRepo) digest(token string) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token_digest, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		r.digest(session.ID), session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID はトークンに対応する有効なセッションを返す。
// 未登録または期限切れの場合は (nil, nil)。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, created_at
		 FROM sessions
		 WHERE token_digest = $1 AND expires_at > now()`,
		r.digest(id),
	).Scan(&session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DeleteByID はトークンに対応するセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token_digest = $1`, r.digest(id),
	); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は退会時などにユーザーの全セッションを失効させる。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
