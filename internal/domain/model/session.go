package model

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionStatusQueued           SessionStatus = "queued"
	SessionStatusProcessing       SessionStatus = "processing"
	SessionStatusGeneratingSlides SessionStatus = "generating_slides"
	SessionStatusSlidesReady      SessionStatus = "slides_ready"
	SessionStatusStitching        SessionStatus = "stitching"
	SessionStatusStitched         SessionStatus = "stitched"
	SessionStatusOptimizing       SessionStatus = "optimizing"
	SessionStatusGeneratingLink   SessionStatus = "generating_link"
	SessionStatusCompleted        SessionStatus = "completed"
	SessionStatusLinkGenerated    SessionStatus = "link_generated"
	SessionStatusFailed           SessionStatus = "failed"
	SessionStatusStitchFailed     SessionStatus = "stitch_failed"
	SessionStatusOptimizeFailed   SessionStatus = "optimization_failed"
)

// progressByStatus maps each state to its advisory progress value. Values
// are UI hints; the only contract is that they never decrease across one
// job's lifetime.
var progressByStatus = map[SessionStatus]int{
	SessionStatusQueued:           5,
	SessionStatusProcessing:       8,
	SessionStatusGeneratingSlides: 25,
	SessionStatusSlidesReady:      35,
	SessionStatusStitching:        50,
	SessionStatusStitched:         70,
	SessionStatusOptimizing:       85,
	SessionStatusGeneratingLink:   95,
	SessionStatusCompleted:        100,
	SessionStatusLinkGenerated:    100,
}

// ProgressFor returns the advisory progress percentage for a status.
// Failure states report 0 additional progress and keep whatever the record
// already reached.
func ProgressFor(s SessionStatus) int {
	if p, ok := progressByStatus[s]; ok {
		return p
	}
	return 0
}

// IsTerminal reports whether no further pipeline-driven transition may occur
// for a record in this state. A new job for the same subject overwrites a
// terminal record ("retry by overwrite").
func IsTerminal(s SessionStatus) bool {
	switch s {
	case SessionStatusCompleted, SessionStatusLinkGenerated, SessionStatusFailed:
		return true
	}
	return strings.HasSuffix(string(s), "_failed")
}

// StatusMessage returns the human-readable line shown to the polling UI.
func StatusMessage(s SessionStatus) string {
	switch s {
	case SessionStatusQueued:
		return "Render job queued"
	case SessionStatusProcessing:
		return "Preparing your demo video..."
	case SessionStatusGeneratingSlides:
		return "Creating slides..."
	case SessionStatusSlidesReady:
		return "Slides ready"
	case SessionStatusStitching:
		return "Stitching videos together..."
	case SessionStatusStitched:
		return "Stitched video ready"
	case SessionStatusOptimizing:
		return "Encoding final video..."
	case SessionStatusGeneratingLink:
		return "Publishing share link..."
	case SessionStatusCompleted, SessionStatusLinkGenerated:
		return "Demo video is ready!"
	}
	if IsTerminal(s) {
		return "Processing failed. Please try again."
	}
	return "Processing..."
}

// RenderOutput describes one encoded artifact produced by the optimize stage.
type RenderOutput struct {
	Resolution  string `json:"resolution"`
	Key         string `json:"key"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Duration    string `json:"duration,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
}

// StatusRecord is the single mutable source of truth for one subject.
// One row per SubjectID; the pipeline never deletes it.
type StatusRecord struct {
	SubjectID    string         `json:"subjectId"`
	JobID        string         `json:"jobId"`
	Status       SessionStatus  `json:"status"`
	Step         string         `json:"step"`
	Progress     int            `json:"progress"`
	Outputs      []RenderOutput `json:"outputs,omitempty"`
	DemoURL      string         `json:"demoUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Advance moves the record to a new state, refreshing step text and keeping
// progress monotonic within one job run.
func (r *StatusRecord) Advance(status SessionStatus, step string) {
	r.Status = status
	r.Step = step
	if p := ProgressFor(status); p > r.Progress {
		r.Progress = p
	}
	r.UpdatedAt = time.Now()
}

// Fail marks the record terminally failed with the given reason. Progress is
// left where it was; a failed run never reports more progress than it made.
func (r *StatusRecord) Fail(status SessionStatus, reason string) {
	if !IsTerminal(status) {
		status = SessionStatusFailed
	}
	r.Status = status
	r.Step = StatusMessage(status)
	r.ErrorMessage = reason
	r.UpdatedAt = time.Now()
}
