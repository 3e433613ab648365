package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HistoryPruner deletes calculation records older than a cutoff
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// JobPurger drops finished background jobs older than a cutoff
type JobPurger interface {
	PurgeFinished(before time.Time) int
}

// HistoryRetention returns a task deleting calculation history older than retention
func HistoryRetention(history HistoryPruner, retention time.Duration) TaskFunc {
	return func(ctx context.Context) error {
		_, err := history.DeleteBefore(ctx, time.Now().Add(-retention))
		return err
	}
}

// JobPurge returns a task removing finished jobs older than retention
func JobPurge(jobs JobPurger, retention time.Duration, logger *zap.Logger) TaskFunc {
	return func(ctx context.Context) error {
		removed := jobs.PurgeFinished(time.Now().Add(-retention))
		if removed > 0 {
			logger.Info("Purged finished jobs", zap.Int("removed", removed))
		}
		return nil
	}
}
