package handler

import (
	"net/http"
	"time"
	_ "time/tzdata" // distrolessイメージにはzoneinfoがない

	"github.com/hitoshi/habitstreak/internal/streak"
)

const (
	timezoneQueryParam = "tz"
	timezoneHeader     = "X-Timezone"
	clientDateHeader   = "X-Client-Date"
)

// ClientLocation はクライアントのタイムゾーンを解決する。
// tzクエリパラメータ、X-Timezoneヘッダーの順にIANAタイムゾーン名を探す。
func ClientLocation(r *http.Request) (*time.Location, bool) {
	for _, name := range []string{r.URL.Query().Get(timezoneQueryParam), r.Header.Get(timezoneHeader)} {
		// "Local"はサーバーのタイムゾーンになるため受け付けない
		if name == "" || name == "Local" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, true
		}
	}
	return nil, false
}

// clientToday はクライアントのローカル日付（YYYY-MM-DD）を返す。
// タイムゾーン、X-Client-Dateヘッダー、UTCの順に解決する。
func clientToday(r *http.Request, now time.Time) string {
	if loc, ok := ClientLocation(r); ok {
		return streak.Today(loc, now)
	}
	if d := r.Header.Get(clientDateHeader); streak.ValidDate(d) {
		return d
	}
	return streak.Today(time.UTC, now)
}
