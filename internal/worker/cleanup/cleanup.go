// Package cleanup は終了済み解析ジョブの定期削除ジョブを提供する。
// 保持期間（デフォルト1時間）を超過したジョブをジョブ表から取り除く。
// 解析結果はResultStoreに残るため削除対象にならない。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Reaper は終了済みジョブを削除するインターフェース。
// analysis.Schedulerが実装する。
type Reaper interface {
	Reap(retention time.Duration) int
}

// CleanupJob は保持期間を超過したジョブの削除ジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	reaper    Reaper
	clock     clockwork.Clock
	logger    *slog.Logger
	Retention time.Duration // 終了後の保持期間（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は1時間。
func NewCleanupJob(reaper Reaper, clock clockwork.Clock, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		reaper:    reaper,
		clock:     clock,
		logger:    logger,
		Retention: time.Hour,
	}
}

// Run は保持期間を超過したジョブを1回削除し、削除件数を返す。
func (j *CleanupJob) Run() int {
	start := j.clock.Now()

	removed := j.reaper.Reap(j.Retention)

	j.logger.Info("ジョブクリーンアップが完了しました",
		slog.Int("deleted_count", removed),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(j.clock.Since(start).Milliseconds())),
	)
	return removed
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := j.clock.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("ジョブクリーンアップを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ジョブクリーンアップを停止しました")
			return
		case <-ticker.Chan():
			j.Run()
		}
	}
}
