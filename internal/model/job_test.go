package model

import (
	"errors"
	"testing"
	"time"
)

func newTestItem(kind ContentKind) *ContentItem {
	return &ContentItem{ID: "item-1", Kind: kind, Title: "test"}
}

func TestNewAnalysisJob_StartsQueuedAtZero(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := NewAnalysisJob(newTestItem(KindText), now)

	if job.State != JobQueued {
		t.Errorf("State = %q, want %q", job.State, JobQueued)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
	if !job.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", job.CreatedAt, now)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobState
		want     bool
	}{
		{JobQueued, JobUploading, true},
		{JobQueued, JobAnalyzing, true},
		{JobUploading, JobAnalyzing, true},
		{JobAnalyzing, JobComplete, true},
		{JobAnalyzing, JobFailed, true},
		{JobQueued, JobComplete, false},
		{JobUploading, JobComplete, false},
		{JobAnalyzing, JobUploading, false},
		{JobAnalyzing, JobQueued, false},
		{JobComplete, JobFailed, false},
		{JobFailed, JobQueued, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAnalysisJob_Advance_RejectsBackwardTransition(t *testing.T) {
	now := time.Now()
	job := NewAnalysisJob(newTestItem(KindText), now)

	if err := job.Advance(JobAnalyzing, now); err != nil {
		t.Fatalf("Advance(analyzing) returned error: %v", err)
	}
	if err := job.Advance(JobQueued, now); err == nil {
		t.Fatal("Advance(queued) from analyzing should fail")
	}
	if job.State != JobAnalyzing {
		t.Errorf("State = %q after rejected transition, want %q", job.State, JobAnalyzing)
	}
}

func TestAnalysisJob_SetProgress_MonotonicAndBounded(t *testing.T) {
	now := time.Now()
	job := NewAnalysisJob(newTestItem(KindVideo), now)

	if err := job.SetProgress(50, now); err != nil {
		t.Fatalf("SetProgress(50) returned error: %v", err)
	}
	if err := job.SetProgress(40, now); err == nil {
		t.Error("SetProgress(40) after 50 should fail")
	}
	if err := job.SetProgress(101, now); err == nil {
		t.Error("SetProgress(101) should fail")
	}
	if job.Progress != 50 {
		t.Errorf("Progress = %d, want 50", job.Progress)
	}
}

func TestAnalysisJob_Fail_RecordsCode(t *testing.T) {
	now := time.Now()
	job := NewAnalysisJob(newTestItem(KindURL), now)
	_ = job.Advance(JobAnalyzing, now)

	err := NewSignalEvaluationError("news", errors.New("malformed url"))
	if failErr := job.Fail(err, now); failErr != nil {
		t.Fatalf("Fail returned error: %v", failErr)
	}
	if job.State != JobFailed {
		t.Errorf("State = %q, want %q", job.State, JobFailed)
	}
	if job.ErrorCode != ErrCodeSignalEvaluation {
		t.Errorf("ErrorCode = %q, want %q", job.ErrorCode, ErrCodeSignalEvaluation)
	}
	if job.Error == "" {
		t.Error("Error message should be recorded")
	}
}

func TestContentKind_IsBinary(t *testing.T) {
	for _, k := range []ContentKind{KindImage, KindVideo, KindAudio} {
		if !k.IsBinary() {
			t.Errorf("%s.IsBinary() = false, want true", k)
		}
	}
	for _, k := range []ContentKind{KindText, KindURL, KindSocial} {
		if k.IsBinary() {
			t.Errorf("%s.IsBinary() = true, want false", k)
		}
	}
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		input   string
		want    []ContentKind
		wantErr bool
	}{
		{"", nil, false},
		{"image, VIDEO,,text", []ContentKind{KindImage, KindVideo, KindText}, false},
		{"url,bogus", nil, true},
		{"document", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKinds(tt.input)
			if tt.wantErr {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeInvalidRequest {
					t.Fatalf("ParseKinds(%q) error = %v, want %s", tt.input, err, ErrCodeInvalidRequest)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKinds(%q) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKinds(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKinds(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}
