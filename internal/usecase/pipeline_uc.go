package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/adapter"
	"ai-demo-builder/internal/domain/ports/repository"
	"ai-demo-builder/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// PipelineExecutor runs the ordered stage sequence for one job: slide
// rendering, stitching, encoding, link publication. Stage failures are
// recorded into the status record and never propagate to the dispatcher;
// the returned record always carries the job's terminal or last-written
// state.
type PipelineExecutor interface {
	Run(ctx context.Context, job *model.RenderJob) *model.StatusRecord
}

var _ PipelineExecutor = (*pipelineExecutor)(nil)

type pipelineExecutor struct {
	statusRepo repository.StatusRepository
	invoker    adapter.StageInvoker
	log        *zerolog.Logger
}

func NewPipelineExecutor(statusRepo repository.StatusRepository, invoker adapter.StageInvoker, logger *zerolog.Logger) PipelineExecutor {
	exlog := logger.With().Str("component", "PipelineExecutor").Logger()
	return &pipelineExecutor{statusRepo: statusRepo, invoker: invoker, log: &exlog}
}

// ---- stage-worker payloads (uniform contract: session identifier + stage fields) ----

type slideRequest struct {
	SessionID string     `json:"session_id"`
	Slide     slideInput `json:"slide"`
}

type slideInput struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

type slideResult struct {
	S3Key string `json:"s3_key"`
	Key   string `json:"key"`
}

func (r slideResult) outputKey() string {
	if r.S3Key != "" {
		return r.S3Key
	}
	return r.Key
}

type stitchRequest struct {
	SessionID  string       `json:"session_id"`
	MediaItems []stitchItem `json:"media_items"`
}

type stitchItem struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	Order    int    `json:"order"`
	Duration int    `json:"duration,omitempty"`
}

type stitchResult struct {
	OutputKey string `json:"output_key"`
	Duration  string `json:"duration"`
}

type optimizeRequest struct {
	SessionID         string   `json:"session_id"`
	InputKey          string   `json:"input_key"`
	Resolutions       []string `json:"resolutions"`
	GenerateThumbnail bool     `json:"generate_thumbnail"`
}

type optimizeOutput struct {
	Resolution  string `json:"resolution"`
	S3Key       string `json:"s3_key"`
	DownloadURL string `json:"download_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Duration    string `json:"duration"`
	FileSize    int64  `json:"file_size"`
}

type optimizeResult struct {
	Outputs   []optimizeOutput `json:"outputs"`
	Thumbnail *struct {
		S3Key       string `json:"s3_key"`
		DownloadURL string `json:"download_url"`
	} `json:"thumbnail"`
}

type linkRequest struct {
	SessionID  string `json:"session_id"`
	Resolution string `json:"resolution"`
	ExpiresIn  int    `json:"expires_in"`
}

type linkResult struct {
	DemoURL      string `json:"demo_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ---- execution ----

func (p *pipelineExecutor) Run(ctx context.Context, job *model.RenderJob) *model.StatusRecord {
	log := p.log.With().Str("job_id", job.JobID).Str("subject_id", job.SubjectID).Logger()
	start := time.Now()

	rec := p.loadRecord(ctx, job)
	opts := job.Options
	opts.Normalize()

	// Stage 1: slide rendering, one call per slide. A failed slide is
	// dropped from the rest of the pipeline; the job carries on.
	rendered := p.renderSlides(ctx, &log, job, rec)

	// Stage 2: stitch the ordered media list into one artifact.
	stitched, ok := p.stitch(ctx, &log, job, rec, rendered)
	if !ok {
		metricsFinish(rec, start)
		return rec
	}

	// Stage 3: encode per-resolution outputs.
	encoded, ok := p.optimize(ctx, &log, job, rec, &opts, stitched)
	if !ok {
		metricsFinish(rec, start)
		return rec
	}

	// Stage 4: publish the shareable link. Non-critical once encoded
	// output exists: failure falls back to the encoder's own URLs.
	p.publishLink(ctx, &log, job, rec, &opts, encoded)

	metricsFinish(rec, start)
	log.Info().Str("status", string(rec.Status)).Dur("duration", time.Since(start)).Msg("pipeline finished")
	return rec
}

func (p *pipelineExecutor) loadRecord(ctx context.Context, job *model.RenderJob) *model.StatusRecord {
	rec, err := p.statusRepo.Find(ctx, job.SubjectID)
	if err != nil || rec == nil {
		rec = &model.StatusRecord{
			SubjectID: job.SubjectID,
			CreatedAt: time.Now(),
		}
	}
	rec.JobID = job.JobID
	if rec.Status == "" || rec.Status == model.SessionStatusQueued {
		rec.Advance(model.SessionStatusProcessing, model.StatusMessage(model.SessionStatusProcessing))
	}
	return rec
}

func (p *pipelineExecutor) renderSlides(ctx context.Context, log *zerolog.Logger, job *model.RenderJob, rec *model.StatusRecord) map[string]string {
	var slides []model.MediaItem
	for _, it := range job.MediaItems {
		if it.Type == model.MediaTypeSlide && it.Key != "" {
			slides = append(slides, it)
		}
	}

	p.transition(ctx, log, rec, model.SessionStatusGeneratingSlides,
		fmt.Sprintf("Creating %d slides", len(slides)))

	rendered := make(map[string]string, len(slides))
	for i, s := range slides {
		p.persist(ctx, log, withStep(rec, fmt.Sprintf("Creating slide %d/%d", i+1, len(slides))))

		layout := s.Layout
		if layout == "" {
			layout = model.DefaultSlideLayout
		}
		raw, err := p.invoker.Invoke(ctx, adapter.StageSlides, slideRequest{
			SessionID: job.SubjectID,
			Slide:     slideInput{ID: s.ID, Type: layout, Content: s.Key, Order: s.Order},
		})
		if err != nil {
			// Degraded, not fatal: the slide is omitted downstream.
			log.Warn().Err(err).Str("slide_id", s.ID).Msg("slide render failed, dropping slide")
			continue
		}
		var res slideResult
		if err := unmarshalResult(raw, &res); err != nil || res.outputKey() == "" {
			log.Warn().Err(err).Str("slide_id", s.ID).Msg("slide result unusable, dropping slide")
			continue
		}
		rendered[s.ID] = res.outputKey()
	}

	p.transition(ctx, log, rec, model.SessionStatusSlidesReady,
		fmt.Sprintf("%d/%d slides ready", len(rendered), len(slides)))
	return rendered
}

func (p *pipelineExecutor) stitch(ctx context.Context, log *zerolog.Logger, job *model.RenderJob, rec *model.StatusRecord, rendered map[string]string) (string, bool) {
	items := orderedStitchItems(job.MediaItems, rendered)
	if len(items) == 0 {
		p.fail(ctx, log, rec, model.SessionStatusStitchFailed, "no valid media items to stitch")
		return "", false
	}

	p.transition(ctx, log, rec, model.SessionStatusStitching, model.StatusMessage(model.SessionStatusStitching))

	raw, err := p.invoker.Invoke(ctx, adapter.StageStitch, stitchRequest{
		SessionID:  job.SubjectID,
		MediaItems: items,
	})
	if err != nil {
		p.fail(ctx, log, rec, model.SessionStatusStitchFailed, err.Error())
		return "", false
	}
	var res stitchResult
	if err := unmarshalResult(raw, &res); err != nil {
		p.fail(ctx, log, rec, model.SessionStatusStitchFailed, fmt.Sprintf("malformed stitch result: %v", err))
		return "", false
	}
	// Nothing downstream can run without the concatenated artifact.
	if res.OutputKey == "" {
		p.fail(ctx, log, rec, model.SessionStatusStitchFailed, "stitch worker returned no output key")
		return "", false
	}

	p.transition(ctx, log, rec, model.SessionStatusStitched, model.StatusMessage(model.SessionStatusStitched))
	return res.OutputKey, true
}

func (p *pipelineExecutor) optimize(ctx context.Context, log *zerolog.Logger, job *model.RenderJob, rec *model.StatusRecord, opts *model.RenderOptions, inputKey string) (*optimizeResult, bool) {
	p.transition(ctx, log, rec, model.SessionStatusOptimizing,
		fmt.Sprintf("Encoding %d resolutions", len(opts.Resolutions)))

	raw, err := p.invoker.Invoke(ctx, adapter.StageOptimize, optimizeRequest{
		SessionID:         job.SubjectID,
		InputKey:          inputKey,
		Resolutions:       opts.Resolutions,
		GenerateThumbnail: *opts.GenerateThumbnail,
	})
	if err != nil {
		p.fail(ctx, log, rec, model.SessionStatusOptimizeFailed, err.Error())
		return nil, false
	}
	var res optimizeResult
	if err := unmarshalResult(raw, &res); err != nil {
		p.fail(ctx, log, rec, model.SessionStatusOptimizeFailed, fmt.Sprintf("malformed optimize result: %v", err))
		return nil, false
	}
	if len(res.Outputs) == 0 {
		p.fail(ctx, log, rec, model.SessionStatusOptimizeFailed, "optimize worker produced no outputs")
		return nil, false
	}

	rec.Outputs = rec.Outputs[:0]
	for _, o := range res.Outputs {
		rec.Outputs = append(rec.Outputs, model.RenderOutput{
			Resolution:  o.Resolution,
			Key:         o.S3Key,
			DownloadURL: o.DownloadURL,
			Width:       o.Width,
			Height:      o.Height,
			Duration:    o.Duration,
			FileSize:    o.FileSize,
		})
	}
	p.persist(ctx, log, rec)
	return &res, true
}

func (p *pipelineExecutor) publishLink(ctx context.Context, log *zerolog.Logger, job *model.RenderJob, rec *model.StatusRecord, opts *model.RenderOptions, encoded *optimizeResult) {
	p.transition(ctx, log, rec, model.SessionStatusGeneratingLink, model.StatusMessage(model.SessionStatusGeneratingLink))

	raw, err := p.invoker.Invoke(ctx, adapter.StageLink, linkRequest{
		SessionID:  job.SubjectID,
		Resolution: opts.PreferredResolution,
		ExpiresIn:  opts.LinkExpirySeconds,
	})
	if err == nil {
		var res linkResult
		if uerr := unmarshalResult(raw, &res); uerr == nil && res.DemoURL != "" {
			rec.DemoURL = res.DemoURL
			rec.ThumbnailURL = res.ThumbnailURL
			rec.Advance(model.SessionStatusLinkGenerated, model.StatusMessage(model.SessionStatusLinkGenerated))
			p.persist(ctx, log, rec)
			return
		}
		err = fmt.Errorf("link worker returned no demo_url")
	}

	// Degraded: encoded output already exists, so derive a best-effort
	// shareable reference instead of failing the job.
	log.Warn().Err(err).Msg("link publication failed, deriving link from encoder outputs")
	primary := encoded.Outputs[0]
	for _, o := range encoded.Outputs {
		if o.Resolution == opts.PreferredResolution {
			primary = o
			break
		}
	}
	rec.DemoURL = primary.DownloadURL
	if rec.DemoURL == "" {
		rec.DemoURL = primary.S3Key
	}
	if encoded.Thumbnail != nil {
		rec.ThumbnailURL = encoded.Thumbnail.DownloadURL
	}
	rec.Advance(model.SessionStatusCompleted, model.StatusMessage(model.SessionStatusCompleted))
	p.persist(ctx, log, rec)
}

// orderedStitchItems builds the final media list: slides are replaced by
// their rendered output keys (failed slides dropped), videos pass through,
// everything sorted by Order with array position breaking ties.
func orderedStitchItems(items []model.MediaItem, rendered map[string]string) []stitchItem {
	sorted := make([]model.MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	out := make([]stitchItem, 0, len(sorted))
	for _, it := range sorted {
		switch it.Type {
		case model.MediaTypeSlide:
			key, ok := rendered[it.ID]
			if !ok {
				continue
			}
			dur := it.Duration
			if dur <= 0 {
				dur = model.DefaultSlideDuration
			}
			out = append(out, stitchItem{Type: string(it.Type), Key: key, Order: it.Order, Duration: dur})
		case model.MediaTypeVideo:
			if it.Key == "" {
				continue
			}
			out = append(out, stitchItem{Type: string(it.Type), Key: it.Key, Order: it.Order})
		}
	}
	return out
}

func (p *pipelineExecutor) transition(ctx context.Context, log *zerolog.Logger, rec *model.StatusRecord, status model.SessionStatus, step string) {
	rec.Advance(status, step)
	p.persist(ctx, log, rec)
}

func (p *pipelineExecutor) fail(ctx context.Context, log *zerolog.Logger, rec *model.StatusRecord, status model.SessionStatus, reason string) {
	log.Error().Str("status", string(status)).Str("reason", reason).Msg("pipeline stage failed")
	rec.Fail(status, reason)
	p.persist(ctx, log, rec)
}

func (p *pipelineExecutor) persist(ctx context.Context, log *zerolog.Logger, rec *model.StatusRecord) {
	if err := p.statusRepo.Save(ctx, rec); err != nil {
		// Progress visibility degrades but the pipeline keeps going.
		log.Error().Err(err).Str("status", string(rec.Status)).Msg("status write failed")
	}
}

func withStep(rec *model.StatusRecord, step string) *model.StatusRecord {
	rec.Step = step
	rec.UpdatedAt = time.Now()
	return rec
}

func metricsFinish(rec *model.StatusRecord, start time.Time) {
	metrics.IncJobProcessed(string(rec.Status))
	metrics.ObservePipelineDuration(time.Since(start).Seconds())
}

// unmarshalResult decodes a canonical stage result object.
func unmarshalResult(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}
