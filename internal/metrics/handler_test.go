package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// scrape はHandlerに対してGETを1回行い、テキスト形式の本文を返す。
func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func TestHandler_ExposesHabitMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckin(false)
	c.RecordCheckin(false)
	c.RecordCheckin(true)
	c.RecordLinkOutcome("needs_linking")
	c.RecordCleanup(3, 1)

	body := scrape(t, reg)

	for _, line := range []string{
		"habitstreak_checkins_total 2",
		"habitstreak_duplicate_checkins_total 1",
		`habitstreak_link_outcomes_total{status="needs_linking"} 1`,
		`habitstreak_cleanup_deleted_total{kind="session"} 3`,
		`habitstreak_cleanup_deleted_total{kind="orphan_identity"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("scrape output missing %q", line)
		}
	}
}

func TestHandler_OnlyServesGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	body := scrape(t, reg)

	// 独自レジストリにはGoランタイムのメトリクスを登録していない
	if strings.Contains(body, "go_goroutines") {
		t.Error("handler should not fall back to the default registry")
	}
}
