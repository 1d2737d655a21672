package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/habitstreak/internal/model"
)

// PostgresGoalRepo はPostgreSQLを使用した目標リポジトリ。
type PostgresGoalRepo struct {
	db *sql.DB
}

// NewPostgresGoalRepo はPostgresGoalRepoを生成する。
func NewPostgresGoalRepo(db *sql.DB) *PostgresGoalRepo {
	return &PostgresGoalRepo{db: db}
}

const goalColumns = `id, user_id, title, reasons, time1, time2, time3, is_active, created_at, updated_at`

func scanGoal(s rowScanner) (*model.Goal, error) {
	var (
		goal                model.Goal
		reasons             pq.StringArray
		time1, time2, time3 sql.NullString
	)
	err := s.Scan(
		&goal.ID, &goal.UserID, &goal.Title, &reasons, &time1, &time2, &time3,
		&goal.IsActive, &goal.CreatedAt, &goal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Reasons = []string(reasons)
	if goal.Reasons == nil {
		goal.Reasons = []string{}
	}
	goal.Time1 = nullStringPtr(time1)
	goal.Time2 = nullStringPtr(time2)
	goal.Time3 = nullStringPtr(time3)
	return &goal, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func stringPtrValue(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// ListActiveByUser はユーザーの有効な目標を作成日時の新しい順に返す。
func (r *PostgresGoalRepo) ListActiveByUser(ctx context.Context, userID string) ([]*model.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals
		 WHERE user_id = $1 AND is_active = true
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := []*model.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// FindByIDAndUser は所有者が一致する目標を取得する。見つからない場合はnilを返す。
func (r *PostgresGoalRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Goal, error) {
	goal, err := scanGoal(r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	return goal, nil
}

// Create は目標を作成する。
func (r *PostgresGoalRepo) Create(ctx context.Context, goal *model.Goal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, reasons, time1, time2, time3, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		goal.ID, goal.UserID, goal.Title, pq.Array(goal.Reasons),
		stringPtrValue(goal.Time1), stringPtrValue(goal.Time2), stringPtrValue(goal.Time3),
		goal.IsActive, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// Update は目標のタイトル・理由・リマインダー時刻を更新する。
func (r *PostgresGoalRepo) Update(ctx context.Context, goal *model.Goal) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE goals
		 SET title = $3, reasons = $4, time1 = $5, time2 = $6, time3 = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		goal.ID, goal.UserID, goal.Title, pq.Array(goal.Reasons),
		stringPtrValue(goal.Time1), stringPtrValue(goal.Time2), stringPtrValue(goal.Time3),
		goal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return expectAffected(result)
}

// Delete は所有者が一致する目標を削除する。
func (r *PostgresGoalRepo) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return expectAffected(result)
}

// compile-time interface check
var _ GoalRepository = (*PostgresGoalRepo)(nil)
