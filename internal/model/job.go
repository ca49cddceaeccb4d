package model

import (
	"fmt"
	"time"
)

// JobState は解析ジョブのライフサイクル状態を表す。
type JobState string

const (
	// JobQueued はスケジュール待ちの状態。
	JobQueued JobState = "queued"
	// JobUploading はバイナリのアップロード中の状態。
	JobUploading JobState = "uploading"
	// JobAnalyzing は評価器の実行中の状態。
	JobAnalyzing JobState = "analyzing"
	// JobComplete は結果が保存された終端状態。
	JobComplete JobState = "complete"
	// JobFailed は失敗の終端状態。
	JobFailed JobState = "failed"
)

// IsTerminal は終端状態かどうかを返す。
func (s JobState) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// IsActive はUploadingまたはAnalyzingかどうかを返す。
func (s JobState) IsActive() bool {
	return s == JobUploading || s == JobAnalyzing
}

// allowedTransitions は前方向のみの状態遷移表。
// Queued/UploadingからのFailedはスケジューラ停止時のみ使われる。
var allowedTransitions = map[JobState][]JobState{
	JobQueued:    {JobUploading, JobAnalyzing, JobFailed},
	JobUploading: {JobAnalyzing, JobFailed},
	JobAnalyzing: {JobComplete, JobFailed},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to JobState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AnalysisJob は1アイテムの解析ライフサイクルを追跡するレコード。
// AnalysisSchedulerのみが変更する。
type AnalysisJob struct {
	ItemID    string
	Kind      ContentKind
	Title     string
	State     JobState
	Progress  int // 0-100、単調非減少
	Error     string
	ErrorCode string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAnalysisJob はQueued状態・進捗0のジョブを生成する。
func NewAnalysisJob(item *ContentItem, now time.Time) *AnalysisJob {
	return &AnalysisJob{
		ItemID:    item.ID,
		Kind:      item.Kind,
		Title:     item.Title,
		State:     JobQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance は状態遷移を適用する。
// 後方への遷移や進捗の減少はエラーとし、ジョブを変更しない。
func (j *AnalysisJob) Advance(to JobState, now time.Time) error {
	if j.State == to {
		return nil
	}
	if !CanTransition(j.State, to) {
		return fmt.Errorf("invalid job transition %s -> %s", j.State, to)
	}
	j.State = to
	j.UpdatedAt = now
	return nil
}

// SetProgress は進捗を更新する。0-100の範囲外や減少はエラーとする。
func (j *AnalysisJob) SetProgress(p int, now time.Time) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("progress out of range: %d", p)
	}
	if p < j.Progress {
		return fmt.Errorf("progress must not decrease: %d -> %d", j.Progress, p)
	}
	j.Progress = p
	j.UpdatedAt = now
	return nil
}

// Fail はジョブをFailedにし、エラー情報を記録する。
func (j *AnalysisJob) Fail(err error, now time.Time) error {
	if advErr := j.Advance(JobFailed, now); advErr != nil {
		return advErr
	}
	j.Error = err.Error()
	j.ErrorCode = ErrorCode(err)
	return nil
}

// JobEvent はジョブの状態・進捗の変化を購読者に通知するイベント。
type JobEvent struct {
	ItemID    string      `json:"id"`
	Kind      ContentKind `json:"contentType"`
	Title     string      `json:"title"`
	State     JobState    `json:"state"`
	Progress  int         `json:"progress"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"errorCode,omitempty"`
	At        time.Time   `json:"at"`
}

// Event は現在のジョブの状態からイベントを生成する。
func (j *AnalysisJob) Event() JobEvent {
	return JobEvent{
		ItemID:    j.ItemID,
		Kind:      j.Kind,
		Title:     j.Title,
		State:     j.State,
		Progress:  j.Progress,
		Error:     j.Error,
		ErrorCode: j.ErrorCode,
		At:        j.UpdatedAt,
	}
}
