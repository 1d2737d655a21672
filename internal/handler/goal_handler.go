package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/habitstreak/internal/goal"
)

// GoalServiceInterface は目標ハンドラーが必要とするサービスインターフェース。
// 変更系の操作はすべて更新後の目標一覧を返す。
type GoalServiceInterface interface {
	ListGoalsWithCheckins(ctx context.Context, ownerID, today string) ([]goal.GoalWithCheckins, error)
	CreateGoal(ctx context.Context, ownerID string, input goal.Input, today string) ([]goal.GoalWithCheckins, error)
	UpdateGoal(ctx context.Context, ownerID, goalID string, patch goal.Patch, today string) ([]goal.GoalWithCheckins, error)
	DeleteGoal(ctx context.Context, ownerID, goalID, today string) ([]goal.GoalWithCheckins, error)
	CheckIn(ctx context.Context, ownerID, goalID, today string) (*goal.CheckInResult, error)
	ListCheckinDays(ctx context.Context, ownerID, goalID string) ([]string, error)
}

// GoalHandler は目標管理のHTTPハンドラー。
type GoalHandler struct {
	service GoalServiceInterface
	now     func() time.Time
}

// NewGoalHandler はGoalHandlerを生成する。
func NewGoalHandler(service GoalServiceInterface) *GoalHandler {
	return &GoalHandler{
		service: service,
		now:     time.Now,
	}
}

// goalRequest は目標の作成リクエストのボディ。
type goalRequest struct {
	Title   string   `json:"title"`
	Reasons []string `json:"reasons"`
	Time1   *string  `json:"time1"`
	Time2   *string  `json:"time2"`
	Time3   *string  `json:"time3"`
}

func (req goalRequest) toInput() goal.Input {
	return goal.Input{
		Title:   req.Title,
		Reasons: req.Reasons,
		Time1:   req.Time1,
		Time2:   req.Time2,
		Time3:   req.Time3,
	}
}

// goalPatchRequest は目標の部分更新リクエストのボディ。
// 省略したキーは変更しない。時刻にnullまたは空文字を渡すと解除する。
type goalPatchRequest struct {
	Title   *string       `json:"title"`
	Reasons *[]string     `json:"reasons"`
	Time1   reminderField `json:"time1"`
	Time2   reminderField `json:"time2"`
	Time3   reminderField `json:"time3"`
}

func (req goalPatchRequest) toPatch() goal.Patch {
	return goal.Patch{
		Title:   req.Title,
		Reasons: req.Reasons,
		Time1:   req.Time1.update(),
		Time2:   req.Time2.update(),
		Time3:   req.Time3.update(),
	}
}

// reminderField はキーの有無とnullを区別して時刻を受け取る。
type reminderField struct {
	set   bool
	value *string
}

// UnmarshalJSON はキーが存在するときだけ呼ばれる（nullの場合も含む）。
func (f *reminderField) UnmarshalJSON(data []byte) error {
	f.set = true
	return json.Unmarshal(data, &f.value)
}

func (f reminderField) update() goal.ReminderUpdate {
	return goal.ReminderUpdate{Set: f.set, Value: f.value}
}

// ListGoals は目標一覧をチェックイン集計付きで返す。
// GET /api/goals
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	today := clientToday(r, h.now())

	goals, err := h.service.ListGoalsWithCheckins(r.Context(), principal.UserID, today)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalListResponse(goals, today))
}

// CreateGoal は目標を作成する。
// POST /api/goals
func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req goalRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	today := clientToday(r, h.now())

	goals, err := h.service.CreateGoal(r.Context(), principal.UserID, req.toInput(), today)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGoalListResponse(goals, today))
}

// UpdateGoal は目標のうちボディで指定されたフィールドだけを更新する。
// PATCH /api/goals/{id}
func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}

	var req goalPatchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	today := clientToday(r, h.now())

	goals, err := h.service.UpdateGoal(r.Context(), principal.UserID, chi.URLParam(r, "id"), req.toPatch(), today)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalListResponse(goals, today))
}

// DeleteGoal は目標とそのチェックインを削除する。
// DELETE /api/goals/{id}
func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	today := clientToday(r, h.now())

	goals, err := h.service.DeleteGoal(r.Context(), principal.UserID, chi.URLParam(r, "id"), today)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalListResponse(goals, today))
}

// CheckIn は今日のチェックインを記録する。既にチェックイン済みでも成功として扱う。
// POST /api/goals/{id}/checkins
func (h *GoalHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	today := clientToday(r, h.now())

	result, err := h.service.CheckIn(r.Context(), principal.UserID, chi.URLParam(r, "id"), today)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkInResponse{
		goalListResponse: toGoalListResponse(result.Goals, today),
		AlreadyCheckedIn: result.AlreadyCheckedIn,
	})
}

// ListCheckins は目標のチェックイン日付を新しい順に返す。
// GET /api/goals/{id}/checkins
func (h *GoalHandler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	principal := requirePrincipal(w, r)
	if principal == nil {
		return
	}
	goalID := chi.URLParam(r, "id")

	days, err := h.service.ListCheckinDays(r.Context(), principal.UserID, goalID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if days == nil {
		days = []string{}
	}

	writeJSON(w, http.StatusOK, checkinHistoryResponse{GoalID: goalID, Days: days})
}
