package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

const (
	// csrfCookieName はフロントエンドのJavaScriptが読むためHttpOnlyにしない。
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
	csrfCookieMaxAge = 86400
	csrfTokenBytes   = 32
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// TrustedOrigins は状態変更リクエストのOriginとして受け入れるオリジン。
	// 自ホストのOriginは常に受け入れる。
	TrustedOrigins []string
}

// csrfGuard はダブルサブミットCookieとOrigin検査を行う。
type csrfGuard struct {
	config CSRFConfig
}

// NewCSRFMiddleware はCSRF保護ミドルウェアを返す。
// GET/HEAD/OPTIONSは検証せず、トークンCookieがなければ発行する。
// それ以外はCookieとX-CSRF-Tokenヘッダーの一致を必須とし、
// Originヘッダーがあれば自ホストか信頼済みオリジンであることも確認する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	g := &csrfGuard{config: config}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if !hasCSRFCookie(r) {
					if _, err := g.issue(w); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := g.check(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", r.Header.Get("Origin")),
				)
				WriteErrorResponse(w, http.StatusForbidden, csrfError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check は検証失敗の理由を返す。成功時は空文字。
func (g *csrfGuard) check(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && !g.originAllowed(origin, r.Host) {
		return "untrusted origin"
	}

	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token mismatch"
	}
	return ""
}

func (g *csrfGuard) originAllowed(origin, host string) bool {
	if slices.Contains(g.config.TrustedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host == host
}

// issue は新しいトークンを生成してCookieに設定する。
func (g *csrfGuard) issue(w http.ResponseWriter) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// Cookieに既存トークンがあればそれを、なければ新規発行したものを {"token": ...} で返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	g := &csrfGuard{config: config}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(csrfCookieName); err == nil {
			token = cookie.Value
		}
		if token == "" {
			var err error
			if token, err = g.issue(w); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	})
}

func hasCSRFCookie(r *http.Request) bool {
	c, err := r.Cookie(csrfCookieName)
	return err == nil && c.Value != ""
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
