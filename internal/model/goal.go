// Package model はドメインモデルを定義する。
package model

import "time"

// Goal はユーザーが習慣として追跡する目標を表す。
type Goal struct {
	ID        string
	UserID    string
	Title     string
	Reasons   []string
	Time1     *string // リマインダー時刻（HH:MM）
	Time2     *string
	Time3     *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckIn は目標を特定の暦日に実行した記録を表す。
// (user_id, goal_id, checked_on) で一意。更新されることはない。
type CheckIn struct {
	ID        string
	UserID    string
	GoalID    string
	CheckedOn string // YYYY-MM-DD
	CreatedAt time.Time
}
