package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラー内のpanicを回収し、統一フォーマットの500を返す。
// ロギングミドルウェアの内側に置くと、回収したリクエストも http_request ログに残る。
// http.ErrAbortHandler は回収せず再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				// セッション解決後のpanicなら誰のリクエストか分かる
				if state, ok := r.Context().Value(requestStateContextKey).(*requestState); ok && state.userID != "" {
					attrs = append(attrs, slog.String("user_id", state.userID))
				}
				attrs = append(attrs, slog.String("stack", string(debug.Stack())))

				logger.ErrorContext(r.Context(), "panic recovered", attrs...)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
