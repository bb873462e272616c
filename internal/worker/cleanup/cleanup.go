// Package cleanup は期限切れセッションの削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
)

// SessionPurger は期限切れセッションの削除に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Job は期限切れセッションを削除するワンショットジョブ。
// cronなどの外部スケジューラーから定期的に起動されることを想定している。
type Job struct {
	purger SessionPurger
}

// NewJob はクリーンアップジョブを生成する。
func NewJob(purger SessionPurger) *Job {
	return &Job{purger: purger}
}

// Run は期限切れセッションを削除し、削除件数をログに記録する。
func (j *Job) Run(ctx context.Context) error {
	deleted, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	slog.Info("expired sessions deleted",
		slog.Int64("count", deleted),
	)
	return nil
}
