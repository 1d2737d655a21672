// Package cleanup はセッションとidentityの定期削除ジョブを提供する。
// 期限切れセッションと、リンク済みのパスワードアカウントから参照されている
// Googleのidentity（統合の2段階目で削除に失敗した残骸）を日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// OrphanPurger はリンク済みの残存identityを削除する。
type OrphanPurger interface {
	DeleteReferencedOrphans(ctx context.Context) (int64, error)
}

// Recorder は削除件数をメトリクスに記録する。
type Recorder interface {
	RecordCleanup(sessions, orphans int64)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	orphans  OrphanPurger
	recorder Recorder
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, orphans OrphanPurger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		orphans:  orphans,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は期限切れセッションと残存identityを削除する。
// セッション削除に失敗してもidentityの削除は試み、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var firstErr error

	sessionCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		firstErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	orphanCount, err := j.orphans.DeleteReferencedOrphans(ctx)
	if err != nil {
		j.logger.Error("リンク済みidentityの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("identityクリーンアップの実行に失敗: %w", err)
		}
	}

	if j.recorder != nil {
		j.recorder.RecordCleanup(sessionCount, orphanCount)
	}

	if firstErr != nil {
		return firstErr
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_orphans", orphanCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("クリーンアップワーカーを起動しました",
		slog.String("interval", interval.String()),
	)

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
