package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type mockSessionPurger struct {
	calls atomic.Int32
	count int64
	err   error
}

func (m *mockSessionPurger) DeleteExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.count, m.err
}

type mockOrphanPurger struct {
	calls atomic.Int32
	count int64
	err   error
}

func (m *mockOrphanPurger) DeleteReferencedOrphans(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.count, m.err
}

type mockRecorder struct {
	sessions int64
	orphans  int64
	calls    int
}

func (m *mockRecorder) RecordCleanup(sessions, orphans int64) {
	m.sessions += sessions
	m.orphans += orphans
	m.calls++
}

var _ SessionPurger = (*mockSessionPurger)(nil)
var _ OrphanPurger = (*mockOrphanPurger)(nil)
var _ Recorder = (*mockRecorder)(nil)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログから指定キーの値を探す。
func findLogField(buf *bytes.Buffer, key string) (interface{}, bool) {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockOrphanPurger{}, nil, newTestLogger(&buf))

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestCleanupJob_Run_DeletesSessionsAndOrphans(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{count: 5}
	orphans := &mockOrphanPurger{count: 2}
	recorder := &mockRecorder{}
	job := NewCleanupJob(sessions, orphans, recorder, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if sessions.calls.Load() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", sessions.calls.Load())
	}
	if orphans.calls.Load() != 1 {
		t.Errorf("DeleteReferencedOrphans calls = %d, want 1", orphans.calls.Load())
	}
	if recorder.sessions != 5 || recorder.orphans != 2 {
		t.Errorf("recorded = (%d, %d), want (5, 2)", recorder.sessions, recorder.orphans)
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{count: 42}, &mockOrphanPurger{count: 3}, nil, newTestLogger(&buf))

	_ = job.Run(context.Background())

	if v, ok := findLogField(&buf, "deleted_sessions"); !ok || v != float64(42) {
		t.Errorf("ログに deleted_sessions=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if v, ok := findLogField(&buf, "deleted_orphans"); !ok || v != float64(3) {
		t.Errorf("ログに deleted_orphans=3 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnSessionFailure(t *testing.T) {
	var buf bytes.Buffer
	orphans := &mockOrphanPurger{count: 1}
	job := NewCleanupJob(&mockSessionPurger{err: sql.ErrConnDone}, orphans, nil, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("エラーがラップされていない: %v", err)
	}
	// セッション削除が失敗してもidentityの削除は実行される
	if orphans.calls.Load() != 1 {
		t.Error("セッション削除失敗後もidentityの削除を実行すべき")
	}
}

func TestCleanupJob_Run_ReturnsErrorOnOrphanFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockOrphanPurger{err: errors.New("timeout")}, nil, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("err = %v, want wrapped timeout", err)
	}
}

func TestCleanupJob_Run_LogsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{err: sql.ErrConnDone}, &mockOrphanPurger{}, nil, newTestLogger(&buf))

	_ = job.Run(context.Background())

	if v, ok := findLogField(&buf, "level"); !ok || v != "ERROR" {
		t.Errorf("エラーログが出力されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionPurger{}, &mockOrphanPurger{}, nil, newTestLogger(&buf))

	for i := 0; i < 3; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Start_RunsUntilCancelled(t *testing.T) {
	var buf bytes.Buffer
	sessions := &mockSessionPurger{}
	job := NewCleanupJob(sessions, &mockOrphanPurger{}, nil, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sessions.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("ティッカーによる再実行が行われなかった")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後に Start が終了しなかった")
	}
}
