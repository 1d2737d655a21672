package middleware

import (
	"net/http"
	"slices"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	// X-Timezone / X-Client-Date はクライアントの暦日解決に使う
	corsAllowHeaders = "Content-Type, X-CSRF-Token, X-Timezone, X-Client-Date"
)

// ParseAllowedOrigins はカンマ区切りのオリジン指定を分解する。
// 空要素と末尾のスラッシュは取り除く。"*" は無視する。
func ParseAllowedOrigins(spec string) []string {
	var origins []string
	for _, o := range strings.Split(spec, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	return origins
}

// NewCORSMiddleware は許可オリジン（カンマ区切り）に対するCORSミドルウェアを返す。
// Originが許可リストにある場合だけ、そのOriginをそのまま返す。
// 許可外オリジンからのプリフライトは403、それ以外のリクエストはCORSヘッダーなしで通す。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := ParseAllowedOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin != "" && slices.Contains(origins, origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
