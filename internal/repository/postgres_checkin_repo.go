package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/habitstreak/internal/model"
)

// PostgresCheckinRepo はPostgreSQLを使用したチェックインリポジトリ。
type PostgresCheckinRepo struct {
	db *sql.DB
}

// NewPostgresCheckinRepo はPostgresCheckinRepoを生成する。
func NewPostgresCheckinRepo(db *sql.DB) *PostgresCheckinRepo {
	return &PostgresCheckinRepo{db: db}
}

// Create はチェックインを追加する。
// goalsテーブルから (id, user_id) で選択して挿入するため、
// 他ユーザーの目標へのチェックインは0行となる。
// 同日のチェックインが既に存在する場合もfalseを返す。
func (r *PostgresCheckinRepo) Create(ctx context.Context, checkin *model.CheckIn) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO checkins (id, user_id, goal_id, checked_on, created_at)
		 SELECT $1, g.user_id, g.id, $4::date, $5
		 FROM goals g
		 WHERE g.id = $3 AND g.user_id = $2
		 ON CONFLICT ON CONSTRAINT checkins_user_goal_day_unique DO NOTHING`,
		checkin.ID, checkin.UserID, checkin.GoalID, checkin.CheckedOn, checkin.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert checkin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByUser はユーザーの全チェックインを返す。
func (r *PostgresCheckinRepo) ListByUser(ctx context.Context, userID string) ([]*model.CheckIn, error) {
	return r.list(ctx,
		`SELECT id, user_id, goal_id, to_char(checked_on, 'YYYY-MM-DD'), created_at
		 FROM checkins
		 WHERE user_id = $1`,
		userID,
	)
}

// ListByGoal は目標のチェックインを日付の新しい順に返す。
func (r *PostgresCheckinRepo) ListByGoal(ctx context.Context, goalID, userID string) ([]*model.CheckIn, error) {
	return r.list(ctx,
		`SELECT id, user_id, goal_id, to_char(checked_on, 'YYYY-MM-DD'), created_at
		 FROM checkins
		 WHERE goal_id = $1 AND user_id = $2
		 ORDER BY checked_on DESC`,
		goalID, userID,
	)
}

func (r *PostgresCheckinRepo) list(ctx context.Context, query string, args ...any) ([]*model.CheckIn, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer rows.Close()

	checkins := []*model.CheckIn{}
	for rows.Next() {
		var c model.CheckIn
		if err := rows.Scan(&c.ID, &c.UserID, &c.GoalID, &c.CheckedOn, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		checkins = append(checkins, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkins: %w", err)
	}
	return checkins, nil
}

// compile-time interface check
var _ CheckinRepository = (*PostgresCheckinRepo)(nil)
