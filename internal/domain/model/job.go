package model

import "time"

type JobKind string

const (
	// JobKindFullRender is the only pipeline variant today: slides, stitch,
	// optimize, link.
	JobKindFullRender JobKind = "full_render"
)

type MediaType string

const (
	MediaTypeSlide MediaType = "slide"
	MediaTypeVideo MediaType = "video"
)

// DefaultSlideDuration is how long a slide displays when the item carries
// no explicit duration.
const DefaultSlideDuration = 3

// DefaultSlideLayout is the slide template used when the item names none.
const DefaultSlideLayout = "section"

// MediaItem describes one rendering input. For videos Key references binary
// content in the object store; for slides it carries the descriptive content
// the slide worker renders from.
type MediaItem struct {
	ID       string    `json:"id"`
	Type     MediaType `json:"type"`
	Key      string    `json:"key"`
	Order    int       `json:"order"`
	Duration int       `json:"duration,omitempty"`
	// Layout selects the template the slide renderer draws with
	// (title, section, end). Ignored for videos.
	Layout string `json:"layout,omitempty"`
}

// RenderOptions is the free-form options block of a job payload.
type RenderOptions struct {
	Resolutions         []string `json:"resolutions,omitempty"`
	GenerateThumbnail   *bool    `json:"generateThumbnail,omitempty"`
	PreferredResolution string   `json:"preferredResolution,omitempty"`
	LinkExpirySeconds   int      `json:"linkExpirySeconds,omitempty"`
}

// RenderJob is one queued request to run the pipeline for a subject.
// Created by the gateway, serialized onto the queue, consumed at-least-once.
type RenderJob struct {
	JobID      string        `json:"jobId"`
	SubjectID  string        `json:"subjectId"`
	Kind       JobKind       `json:"kind"`
	MediaItems []MediaItem   `json:"mediaItems"`
	Options    RenderOptions `json:"options"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Normalize fills option defaults matching the stage-worker presets.
func (o *RenderOptions) Normalize() {
	if len(o.Resolutions) == 0 {
		o.Resolutions = []string{"1080p", "720p"}
	}
	if o.GenerateThumbnail == nil {
		t := true
		o.GenerateThumbnail = &t
	}
	if o.PreferredResolution == "" {
		o.PreferredResolution = "720p"
	}
	if o.LinkExpirySeconds <= 0 {
		o.LinkExpirySeconds = 86400
	}
}
