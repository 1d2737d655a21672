// Package goal は目標とチェックインのドメインロジックを提供する。
//
// 目標一覧は「目標を取得 → 所有者の全チェックインを取得 → 目標IDで分配 →
// 目標ごとにストリークを計算」の順で組み立てる。
// 作成・更新・削除・チェックインの各操作は単一テーブルへの変更の後、
// 一覧を組み立て直して返す。
package goal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/repository"
	"github.com/hitoshi/habitstreak/internal/security"
	"github.com/hitoshi/habitstreak/internal/streak"
)

// 入力値の上限
const (
	maxTitleLength  = 200
	maxReasonLength = 500
	maxReasons      = 20
)

// GoalWithCheckins は目標にチェックイン集計を付加したドメインオブジェクト。
type GoalWithCheckins struct {
	model.Goal
	CheckinCount   int
	CurrentStreak  int
	CheckedInToday bool
}

// Input は目標の作成・更新の入力値。
// 空文字のリマインダー時刻は未設定として扱う。
type Input struct {
	Title   string
	Reasons []string
	Time1   *string
	Time2   *string
	Time3   *string
}

// Patch は目標の部分更新の入力値。
// nilのフィールドとSetがfalseのリマインダーは変更しない。
type Patch struct {
	Title   *string
	Reasons *[]string
	Time1   ReminderUpdate
	Time2   ReminderUpdate
	Time3   ReminderUpdate
}

// ReminderUpdate はリマインダー時刻1つ分の更新指定。
// Setがtrueのとき、Valueがnilまたは空文字なら時刻を解除する。
type ReminderUpdate struct {
	Set   bool
	Value *string
}

// applyTo は現在の目標にパッチを重ねた入力値を返す。
func (p Patch) applyTo(g *model.Goal) Input {
	in := Input{
		Title:   g.Title,
		Reasons: g.Reasons,
		Time1:   g.Time1,
		Time2:   g.Time2,
		Time3:   g.Time3,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Reasons != nil {
		in.Reasons = *p.Reasons
	}
	if p.Time1.Set {
		in.Time1 = p.Time1.Value
	}
	if p.Time2.Set {
		in.Time2 = p.Time2.Value
	}
	if p.Time3.Set {
		in.Time3 = p.Time3.Value
	}
	return in
}

// CheckInResult はチェックイン後の目標一覧と、既にチェックイン済みだったかどうか。
type CheckInResult struct {
	Goals            []GoalWithCheckins
	AlreadyCheckedIn bool
}

// CheckinRecorder はチェックインの記録先（メトリクス）。
type CheckinRecorder interface {
	RecordCheckin(alreadyCheckedIn bool)
}

// Service は目標管理のサービス層。
type Service struct {
	goalRepo    repository.GoalRepository
	checkinRepo repository.CheckinRepository
	sanitizer   security.TextSanitizerService
	recorder    CheckinRecorder
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(
	goalRepo repository.GoalRepository,
	checkinRepo repository.CheckinRepository,
	sanitizer security.TextSanitizerService,
	recorder CheckinRecorder,
) *Service {
	return &Service{
		goalRepo:    goalRepo,
		checkinRepo: checkinRepo,
		sanitizer:   sanitizer,
		recorder:    recorder,
		now:         time.Now,
	}
}

// ListGoalsWithCheckins は所有者の有効な目標を新しい順に、チェックイン集計付きで返す。
// todayはクライアントのローカル日付（YYYY-MM-DD）。
// いずれかの取得に失敗した場合は部分的な結果を返さずSTORE_UNAVAILABLEを返す。
func (s *Service) ListGoalsWithCheckins(ctx context.Context, ownerID, today string) ([]GoalWithCheckins, error) {
	if ownerID == "" {
		return nil, model.NewAuthRequiredError()
	}
	today = s.resolveToday(today)

	goals, err := s.goalRepo.ListActiveByUser(ctx, ownerID)
	if err != nil {
		return nil, storeUnavailable("list goals", ownerID, err)
	}

	checkins, err := s.checkinRepo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, storeUnavailable("list checkins", ownerID, err)
	}

	daysByGoal := make(map[string][]string, len(goals))
	for _, c := range checkins {
		daysByGoal[c.GoalID] = append(daysByGoal[c.GoalID], c.CheckedOn)
	}

	results := make([]GoalWithCheckins, 0, len(goals))
	for _, g := range goals {
		days := daysByGoal[g.ID]
		sr := streak.Compute(days, today)
		results = append(results, GoalWithCheckins{
			Goal:           *g,
			CheckinCount:   len(days),
			CurrentStreak:  sr.CurrentStreak,
			CheckedInToday: sr.CheckedInToday,
		})
	}

	return results, nil
}

// CreateGoal は目標を作成し、更新後の一覧を返す。
func (s *Service) CreateGoal(ctx context.Context, ownerID string, input Input, today string) ([]GoalWithCheckins, error) {
	if ownerID == "" {
		return nil, model.NewAuthRequiredError()
	}

	normalized, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	goal := &model.Goal{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Title:     normalized.Title,
		Reasons:   normalized.Reasons,
		Time1:     normalized.Time1,
		Time2:     normalized.Time2,
		Time3:     normalized.Time3,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.goalRepo.Create(ctx, goal); err != nil {
		return nil, storeUnavailable("create goal", ownerID, err)
	}

	slog.Info("goal created",
		slog.String("user_id", ownerID),
		slog.String("goal_id", goal.ID),
	)

	return s.ListGoalsWithCheckins(ctx, ownerID, today)
}

// UpdateGoal は所有者の目標のうちpatchで指定されたフィールドだけを更新し、更新後の一覧を返す。
func (s *Service) UpdateGoal(ctx context.Context, ownerID, goalID string, patch Patch, today string) ([]GoalWithCheckins, error) {
	goal, err := s.findOwnedGoal(ctx, ownerID, goalID)
	if err != nil {
		return nil, err
	}

	normalized, err := s.normalize(patch.applyTo(goal))
	if err != nil {
		return nil, err
	}

	goal.Title = normalized.Title
	goal.Reasons = normalized.Reasons
	goal.Time1 = normalized.Time1
	goal.Time2 = normalized.Time2
	goal.Time3 = normalized.Time3
	goal.UpdatedAt = s.now()

	if err := s.goalRepo.Update(ctx, goal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewGoalNotFoundError(goalID)
		}
		return nil, storeUnavailable("update goal", ownerID, err)
	}

	return s.ListGoalsWithCheckins(ctx, ownerID, today)
}

// DeleteGoal は所有者の目標を削除し、更新後の一覧を返す。
// 目標のチェックインはストアのCASCADEで同時に削除される。
func (s *Service) DeleteGoal(ctx context.Context, ownerID, goalID, today string) ([]GoalWithCheckins, error) {
	if ownerID == "" {
		return nil, model.NewAuthRequiredError()
	}
	if _, err := uuid.Parse(goalID); err != nil {
		return nil, model.NewGoalNotFoundError(goalID)
	}

	if err := s.goalRepo.Delete(ctx, goalID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewGoalNotFoundError(goalID)
		}
		return nil, storeUnavailable("delete goal", ownerID, err)
	}

	slog.Info("goal deleted",
		slog.String("user_id", ownerID),
		slog.String("goal_id", goalID),
	)

	return s.ListGoalsWithCheckins(ctx, ownerID, today)
}

// CheckIn は目標にtodayのチェックインを記録し、更新後の一覧を返す。
// 同日に既にチェックイン済みの場合はエラーにせずAlreadyCheckedInを立てる。
func (s *Service) CheckIn(ctx context.Context, ownerID, goalID, today string) (*CheckInResult, error) {
	if _, err := s.findOwnedGoal(ctx, ownerID, goalID); err != nil {
		return nil, err
	}
	today = s.resolveToday(today)

	created, err := s.checkinRepo.Create(ctx, &model.CheckIn{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		GoalID:    goalID,
		CheckedOn: today,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, storeUnavailable("create checkin", ownerID, err)
	}
	// 0行挿入は同日の重複か、確認後に目標が削除されたかのどちらか
	if !created {
		if _, err := s.findOwnedGoal(ctx, ownerID, goalID); err != nil {
			return nil, err
		}
	}
	if s.recorder != nil {
		s.recorder.RecordCheckin(!created)
	}

	goals, err := s.ListGoalsWithCheckins(ctx, ownerID, today)
	if err != nil {
		return nil, err
	}
	return &CheckInResult{Goals: goals, AlreadyCheckedIn: !created}, nil
}

// ListCheckinDays は目標のチェックイン日を新しい順に返す。
func (s *Service) ListCheckinDays(ctx context.Context, ownerID, goalID string) ([]string, error) {
	if _, err := s.findOwnedGoal(ctx, ownerID, goalID); err != nil {
		return nil, err
	}

	checkins, err := s.checkinRepo.ListByGoal(ctx, goalID, ownerID)
	if err != nil {
		return nil, storeUnavailable("list goal checkins", ownerID, err)
	}

	days := make([]string, 0, len(checkins))
	for _, c := range checkins {
		days = append(days, c.CheckedOn)
	}
	return days, nil
}

// findOwnedGoal は (goalID, ownerID) で目標を取得する。
// 存在しない、他ユーザーの目標、IDが不正のいずれもGOAL_NOT_FOUNDとする。
func (s *Service) findOwnedGoal(ctx context.Context, ownerID, goalID string) (*model.Goal, error) {
	if ownerID == "" {
		return nil, model.NewAuthRequiredError()
	}
	if _, err := uuid.Parse(goalID); err != nil {
		return nil, model.NewGoalNotFoundError(goalID)
	}

	goal, err := s.goalRepo.FindByIDAndUser(ctx, goalID, ownerID)
	if err != nil {
		return nil, storeUnavailable("find goal", ownerID, err)
	}
	if goal == nil {
		return nil, model.NewGoalNotFoundError(goalID)
	}
	return goal, nil
}

// resolveToday は不正なtodayをサーバーのUTC日付で置き換える。
func (s *Service) resolveToday(today string) string {
	if streak.ValidDate(today) {
		return today
	}
	return streak.Today(time.UTC, s.now())
}

// normalize は入力をサニタイズ・検証して保存用の値を返す。
func (s *Service) normalize(input Input) (Input, error) {
	var out Input

	out.Title = s.sanitizer.SanitizeText(input.Title)
	if out.Title == "" {
		return Input{}, model.NewInvalidGoalError("タイトルは必須です")
	}
	if utf8.RuneCountInString(out.Title) > maxTitleLength {
		return Input{}, model.NewInvalidGoalError(fmt.Sprintf("タイトルは%d文字以内で入力してください", maxTitleLength))
	}

	out.Reasons = make([]string, 0, len(input.Reasons))
	seen := make(map[string]struct{}, len(input.Reasons))
	for _, raw := range input.Reasons {
		reason := s.sanitizer.SanitizeText(raw)
		if reason == "" {
			continue
		}
		if utf8.RuneCountInString(reason) > maxReasonLength {
			return Input{}, model.NewInvalidGoalError(fmt.Sprintf("理由は%d文字以内で入力してください", maxReasonLength))
		}
		if _, dup := seen[reason]; dup {
			return Input{}, model.NewInvalidGoalError(fmt.Sprintf("理由が重複しています: %s", reason))
		}
		seen[reason] = struct{}{}
		out.Reasons = append(out.Reasons, reason)
	}
	if len(out.Reasons) > maxReasons {
		return Input{}, model.NewInvalidGoalError(fmt.Sprintf("理由は%d件まで登録できます", maxReasons))
	}

	var err error
	if out.Time1, err = normalizeReminder(input.Time1); err != nil {
		return Input{}, err
	}
	if out.Time2, err = normalizeReminder(input.Time2); err != nil {
		return Input{}, err
	}
	if out.Time3, err = normalizeReminder(input.Time3); err != nil {
		return Input{}, err
	}

	return out, nil
}

// normalizeReminder はリマインダー時刻をHH:MM形式として検証する。
func normalizeReminder(t *string) (*string, error) {
	if t == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*t)
	if v == "" {
		return nil, nil
	}
	if len(v) != 5 {
		return nil, model.NewInvalidGoalError(fmt.Sprintf("時刻はHH:MM形式で入力してください: %s", v))
	}
	if _, err := time.Parse("15:04", v); err != nil {
		return nil, model.NewInvalidGoalError(fmt.Sprintf("時刻はHH:MM形式で入力してください: %s", v))
	}
	return &v, nil
}

// storeUnavailable はストアエラーをログに残してSTORE_UNAVAILABLEに変換する。
func storeUnavailable(op, ownerID string, err error) error {
	slog.Error("goal store operation failed",
		slog.String("operation", op),
		slog.String("user_id", ownerID),
		slog.String("error", err.Error()),
	)
	return model.NewStoreUnavailableError()
}
