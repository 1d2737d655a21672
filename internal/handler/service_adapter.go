package handler

import (
	"time"

	"github.com/hitoshi/habitstreak/internal/auth"
	"github.com/hitoshi/habitstreak/internal/goal"
	"github.com/hitoshi/habitstreak/internal/linking"
	"github.com/hitoshi/habitstreak/internal/user"
)

// goalResponse は目標とチェックイン集計のAPIレスポンス。
type goalResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Reasons        []string  `json:"reasons"`
	Time1          *string   `json:"time1"`
	Time2          *string   `json:"time2"`
	Time3          *string   `json:"time3"`
	IsActive       bool      `json:"is_active"`
	CheckinCount   int       `json:"checkin_count"`
	CurrentStreak  int       `json:"current_streak"`
	CheckedInToday bool      `json:"checked_in_today"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// goalListResponse は目標一覧のAPIレスポンス。todayは集計に使った日付。
type goalListResponse struct {
	Goals []goalResponse `json:"goals"`
	Today string         `json:"today"`
}

// checkInResponse はチェックインのAPIレスポンス。
type checkInResponse struct {
	goalListResponse
	AlreadyCheckedIn bool `json:"already_checked_in"`
}

// checkinHistoryResponse は目標のチェックイン履歴のAPIレスポンス。
type checkinHistoryResponse struct {
	GoalID string   `json:"goal_id"`
	Days   []string `json:"days"`
}

// userListResponse は管理者向けユーザー一覧のAPIレスポンス。
type userListResponse struct {
	Users   []userResponse `json:"users"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// toGoalListResponse はドメインの目標一覧をAPIレスポンスに変換する。
func toGoalListResponse(goals []goal.GoalWithCheckins, today string) goalListResponse {
	out := make([]goalResponse, len(goals))
	for i, g := range goals {
		reasons := g.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out[i] = goalResponse{
			ID:             g.ID,
			Title:          g.Title,
			Reasons:        reasons,
			Time1:          g.Time1,
			Time2:          g.Time2,
			Time3:          g.Time3,
			IsActive:       g.IsActive,
			CheckinCount:   g.CheckinCount,
			CurrentStreak:  g.CurrentStreak,
			CheckedInToday: g.CheckedInToday,
			CreatedAt:      g.CreatedAt,
			UpdatedAt:      g.UpdatedAt,
		}
	}
	return goalListResponse{Goals: out, Today: today}
}

// toUserListResponse はディレクトリのページをAPIレスポンスに変換する。
func toUserListResponse(page *user.Page) userListResponse {
	users := make([]userResponse, len(page.Users))
	for i, identity := range page.Users {
		users[i] = toUserResponse(identity)
	}
	return userListResponse{
		Users:   users,
		Total:   page.Total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}
}

// --- compile-time interface checks ---

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ LinkingServiceInterface = (*linking.Service)(nil)
var _ GoalServiceInterface = (*goal.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
