package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// requestState は内側のミドルウェアが解決した値を外側のロギングへ渡す。
// 1リクエスト内でのみ使われるためロックは不要。
type requestState struct {
	userID string
}

// HTTPMetricsRecorder はHTTPレスポンスのメトリクスを記録する。
type HTTPMetricsRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// quietPaths はオーケストレーターから高頻度で叩かれるため、成功時はDebugで記録する。
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// NewLoggingMiddleware はリクエストごとに http_request ログを1行出力する。
// 項目: method, path, route（chiのパターン）, status, bytes, duration_ms, remote_ip, user_id（認証済みのみ）。
// ステータス5xxはError、4xxはWarn、それ以外はInfo。
func NewLoggingMiddleware(logger *slog.Logger, recorder HTTPMetricsRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			state := &requestState{}
			r = r.WithContext(context.WithValue(r.Context(), requestStateContextKey, state))

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			if recorder != nil {
				recorder.RecordHTTPStatus(rec.statusCode)
				recorder.RecordRequestLatency(duration)
			}

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			// chiはルーティング後にパターンを埋めるため、next実行後に読む
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					args = append(args, slog.String("route", pattern))
				}
			}
			args = append(args,
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
				slog.String("remote_ip", clientIP(r)),
			)
			if state.userID != "" {
				args = append(args, slog.String("user_id", state.userID))
			}

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			case quietPaths[r.URL.Path]:
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
