package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/habitstreak/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	PrincipalResolver middleware.PrincipalResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder
	MetricsHandler    http.Handler

	// 認証
	AuthService    AuthServiceInterface
	LinkingService LinkingServiceInterface
	AuthConfig     AuthHandlerConfig

	// 目標
	GoalService GoalServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → CSRF
//	  /auth/*: パスワード送信のみ CredentialRateLimit
//	  /api/*:  Session → RateLimit(General)
//
// OAuthのリダイレクト（/auth/google/*）はGETのためCSRF検証の対象外になる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.LinkingService, deps.AuthConfig)
	goalHandler := NewGoalHandler(deps.GoalService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// OAuthフロー
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)

		// パスワード送信（IP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.CredentialMiddleware())
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/link", authHandler.Link)
		})

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.PrincipalResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// 目標管理
			r.Route("/goals", func(r chi.Router) {
				r.Get("/", goalHandler.ListGoals)
				r.Post("/", goalHandler.CreateGoal)

				r.Route("/{id}", func(r chi.Router) {
					r.Patch("/", goalHandler.UpdateGoal)
					r.Delete("/", goalHandler.DeleteGoal)
					r.Post("/checkins", goalHandler.CheckIn)
					r.Get("/checkins", goalHandler.ListCheckins)
				})
			})

			// ユーザー管理
			r.Delete("/users/me", userHandler.Withdraw)

			// 管理者操作
			r.Route("/admin/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Put("/{id}/role", userHandler.UpdateRole)
			})
		})
	})

	return r
}
