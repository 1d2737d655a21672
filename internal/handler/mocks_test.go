package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/habitstreak/internal/goal"
	"github.com/hitoshi/habitstreak/internal/linking"
	"github.com/hitoshi/habitstreak/internal/middleware"
	"github.com/hitoshi/habitstreak/internal/model"
	"github.com/hitoshi/habitstreak/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFn           func(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	signInFn           func(ctx context.Context, email, password string) (*model.Identity, *model.Session, error)
	signInWithGoogleFn func(ctx context.Context, code string) (*model.Identity, *model.Session, error)
	signOutFn          func(ctx context.Context, sessionID string) error
	getCurrentUserFn   func(ctx context.Context, sessionID string) (*model.Identity, error)
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignInWithGoogle(ctx context.Context, code string) (*model.Identity, *model.Session, error) {
	if m.signInWithGoogleFn != nil {
		return m.signInWithGoogleFn(ctx, code)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.Identity, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockLinkingService struct {
	initiateOAuthFn         func(state string) (string, *model.APIError)
	completeOAuthCallbackFn func(ctx context.Context, identity *model.Identity, session *model.Session) linking.Result
	confirmLinkFn           func(ctx context.Context, email, password string) linking.Result
}

func (m *mockLinkingService) InitiateOAuth(state string) (string, *model.APIError) {
	if m.initiateOAuthFn != nil {
		return m.initiateOAuthFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
}

func (m *mockLinkingService) CompleteOAuthCallback(ctx context.Context, identity *model.Identity, session *model.Session) linking.Result {
	if m.completeOAuthCallbackFn != nil {
		return m.completeOAuthCallbackFn(ctx, identity, session)
	}
	return linking.Result{Status: linking.StatusNewUser, Email: identity.Email, Session: session}
}

func (m *mockLinkingService) ConfirmLink(ctx context.Context, email, password string) linking.Result {
	if m.confirmLinkFn != nil {
		return m.confirmLinkFn(ctx, email, password)
	}
	return linking.Result{Status: linking.StatusError, Err: model.NewOrphanNotFoundError()}
}

type mockGoalService struct {
	listFn        func(ctx context.Context, ownerID, today string) ([]goal.GoalWithCheckins, error)
	createFn      func(ctx context.Context, ownerID string, input goal.Input, today string) ([]goal.GoalWithCheckins, error)
	updateFn      func(ctx context.Context, ownerID, goalID string, patch goal.Patch, today string) ([]goal.GoalWithCheckins, error)
	deleteFn      func(ctx context.Context, ownerID, goalID, today string) ([]goal.GoalWithCheckins, error)
	checkInFn     func(ctx context.Context, ownerID, goalID, today string) (*goal.CheckInResult, error)
	checkinDaysFn func(ctx context.Context, ownerID, goalID string) ([]string, error)
}

func (m *mockGoalService) ListGoalsWithCheckins(ctx context.Context, ownerID, today string) ([]goal.GoalWithCheckins, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, today)
	}
	return []goal.GoalWithCheckins{}, nil
}

func (m *mockGoalService) CreateGoal(ctx context.Context, ownerID string, input goal.Input, today string) ([]goal.GoalWithCheckins, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input, today)
	}
	return []goal.GoalWithCheckins{}, nil
}

func (m *mockGoalService) UpdateGoal(ctx context.Context, ownerID, goalID string, patch goal.Patch, today string) ([]goal.GoalWithCheckins, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ownerID, goalID, patch, today)
	}
	return []goal.GoalWithCheckins{}, nil
}

func (m *mockGoalService) DeleteGoal(ctx context.Context, ownerID, goalID, today string) ([]goal.GoalWithCheckins, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, goalID, today)
	}
	return []goal.GoalWithCheckins{}, nil
}

func (m *mockGoalService) CheckIn(ctx context.Context, ownerID, goalID, today string) (*goal.CheckInResult, error) {
	if m.checkInFn != nil {
		return m.checkInFn(ctx, ownerID, goalID, today)
	}
	return &goal.CheckInResult{Goals: []goal.GoalWithCheckins{}}, nil
}

func (m *mockGoalService) ListCheckinDays(ctx context.Context, ownerID, goalID string) ([]string, error) {
	if m.checkinDaysFn != nil {
		return m.checkinDaysFn(ctx, ownerID, goalID)
	}
	return nil, nil
}

type mockUserService struct {
	withdrawFn   func(ctx context.Context, userID string) error
	listUsersFn  func(ctx context.Context, principal *model.Principal, page, perPage int) (*user.Page, error)
	updateRoleFn func(ctx context.Context, principal *model.Principal, userID, role string) (*model.Identity, error)
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

func (m *mockUserService) ListUsers(ctx context.Context, principal *model.Principal, page, perPage int) (*user.Page, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, principal, page, perPage)
	}
	return &user.Page{Users: []*model.Identity{}, Page: 1, PerPage: 100}, nil
}

func (m *mockUserService) UpdateRole(ctx context.Context, principal *model.Principal, userID, role string) (*model.Identity, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, principal, userID, role)
	}
	return nil, nil
}

// mockPrincipalResolver はセッションIDとPrincipalの対応表で解決する。
type mockPrincipalResolver struct {
	principals map[string]*model.Principal
	err        error
}

func (m *mockPrincipalResolver) ResolveSession(_ context.Context, sessionID string) (*model.Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.principals[sessionID], nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// --- テストヘルパー ---

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	}
}

// withPrincipal はセッションミドルウェアを通過した状態のリクエストを作る。
func withPrincipal(r *http.Request, p *model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func containsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}
