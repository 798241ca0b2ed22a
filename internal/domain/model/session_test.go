// File: internal/domain/model/session_test.go
package model

import "testing"

func TestIsTerminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status SessionStatus
		want   bool
	}{
		{SessionStatusQueued, false},
		{SessionStatusProcessing, false},
		{SessionStatusGeneratingSlides, false},
		{SessionStatusStitching, false},
		{SessionStatusGeneratingLink, false},
		{SessionStatusCompleted, true},
		{SessionStatusLinkGenerated, true},
		{SessionStatusFailed, true},
		{SessionStatusStitchFailed, true},
		{SessionStatusOptimizeFailed, true},
		{SessionStatus("custom_failed"), true},
	}
	for _, c := range cases {
		if got := IsTerminal(c.status); got != c.want {
			t.Errorf("IsTerminal(%q) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestProgressForOrdering(t *testing.T) {
	t.Parallel()
	// The happy-path sequence must report strictly increasing progress up
	// to completion.
	seq := []SessionStatus{
		SessionStatusQueued,
		SessionStatusProcessing,
		SessionStatusGeneratingSlides,
		SessionStatusSlidesReady,
		SessionStatusStitching,
		SessionStatusStitched,
		SessionStatusOptimizing,
		SessionStatusGeneratingLink,
		SessionStatusCompleted,
	}
	prev := -1
	for _, s := range seq {
		p := ProgressFor(s)
		if p <= prev {
			t.Fatalf("ProgressFor(%q) = %d, not greater than previous %d", s, p, prev)
		}
		prev = p
	}
	if ProgressFor(SessionStatusLinkGenerated) != 100 {
		t.Errorf("link_generated progress = %d, want 100", ProgressFor(SessionStatusLinkGenerated))
	}
	if ProgressFor(SessionStatusStitchFailed) != 0 {
		t.Errorf("failure states carry no progress of their own")
	}
}

func TestStatusRecordAdvanceKeepsProgressMonotonic(t *testing.T) {
	t.Parallel()
	rec := &StatusRecord{SubjectID: "s"}

	rec.Advance(SessionStatusStitching, "stitching")
	if rec.Progress != 50 {
		t.Fatalf("progress = %d, want 50", rec.Progress)
	}
	// A redelivered job may replay an earlier state; progress must not
	// move backwards.
	rec.Advance(SessionStatusGeneratingSlides, "slides again")
	if rec.Progress != 50 {
		t.Errorf("progress regressed to %d", rec.Progress)
	}
	if rec.Status != SessionStatusGeneratingSlides {
		t.Errorf("status should still follow the transition: %q", rec.Status)
	}
}

func TestStatusRecordFail(t *testing.T) {
	t.Parallel()
	rec := &StatusRecord{SubjectID: "s"}
	rec.Advance(SessionStatusOptimizing, "encoding")

	rec.Fail(SessionStatusOptimizeFailed, "encoder crashed")
	if rec.Status != SessionStatusOptimizeFailed {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.ErrorMessage != "encoder crashed" {
		t.Errorf("errorMessage = %q", rec.ErrorMessage)
	}
	if rec.Progress != 85 {
		t.Errorf("failure must keep the progress already made, got %d", rec.Progress)
	}

	// A non-terminal status passed to Fail is coerced to the generic
	// failed state.
	rec2 := &StatusRecord{SubjectID: "s2"}
	rec2.Fail(SessionStatusStitching, "boom")
	if rec2.Status != SessionStatusFailed {
		t.Errorf("status = %q, want %q", rec2.Status, SessionStatusFailed)
	}
}

func TestRenderOptionsNormalize(t *testing.T) {
	t.Parallel()
	var opts RenderOptions
	opts.Normalize()

	if len(opts.Resolutions) != 2 || opts.Resolutions[0] != "1080p" || opts.Resolutions[1] != "720p" {
		t.Errorf("resolutions = %v", opts.Resolutions)
	}
	if opts.PreferredResolution != "720p" {
		t.Errorf("preferredResolution = %q", opts.PreferredResolution)
	}
	if opts.GenerateThumbnail == nil || !*opts.GenerateThumbnail {
		t.Error("generateThumbnail must default to true")
	}
	if opts.LinkExpirySeconds != 86400 {
		t.Errorf("linkExpirySeconds = %d", opts.LinkExpirySeconds)
	}

	// Caller-provided values survive.
	f := false
	custom := RenderOptions{
		Resolutions:         []string{"480p"},
		GenerateThumbnail:   &f,
		PreferredResolution: "480p",
		LinkExpirySeconds:   60,
	}
	custom.Normalize()
	if len(custom.Resolutions) != 1 || *custom.GenerateThumbnail || custom.LinkExpirySeconds != 60 {
		t.Errorf("normalize overwrote explicit options: %+v", custom)
	}
}
