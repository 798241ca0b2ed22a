package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-demo-builder/internal/config"
	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/ports/adapter"
	"ai-demo-builder/internal/infra/logging"
	"ai-demo-builder/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.StageInvoker = (*HTTPInvoker)(nil)

type endpoint struct {
	url     string
	timeout time.Duration
}

// HTTPInvoker calls stage-workers over HTTP with a bounded wait per worker.
// It holds no per-job state and is safe for concurrent use. Retry policy
// belongs to the queue layer, never here.
type HTTPInvoker struct {
	endpoints map[string]endpoint
	client    *http.Client
	log       *zerolog.Logger
}

func NewHTTPInvoker(cfg config.StagesConfig, logger *zerolog.Logger) *HTTPInvoker {
	ilog := logger.With().Str("component", "StageInvoker").Logger()
	return &HTTPInvoker{
		endpoints: map[string]endpoint{
			adapter.StageSlides:   {cfg.Slides.URL, cfg.Slides.Timeout},
			adapter.StageStitch:   {cfg.Stitch.URL, cfg.Stitch.Timeout},
			adapter.StageOptimize: {cfg.Optimize.URL, cfg.Optimize.Timeout},
			adapter.StageLink:     {cfg.Link.URL, cfg.Link.Timeout},
		},
		client: &http.Client{},
		log:    &ilog,
	}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, worker string, req any) (json.RawMessage, error) {
	log := logging.With(ctx, h.log)

	ep, ok := h.endpoints[worker]
	if !ok {
		return nil, domain.NewStageError(worker, fmt.Errorf("unknown stage worker"))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewStageError(worker, fmt.Errorf("encode request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, ep.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, ep.url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewStageTransportError(worker, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		metrics.ObserveStageCall(worker, "transport", float64(latency.Milliseconds()))
		return nil, domain.NewStageTransportError(worker, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveStageCall(worker, "transport", float64(latency.Milliseconds()))
		return nil, domain.NewStageTransportError(worker, err)
	}

	result, err := decodeEnvelope(raw)
	if err != nil {
		metrics.ObserveStageCall(worker, "failure", float64(latency.Milliseconds()))
		log.Warn().Err(err).Str("worker", worker).Msg("stage call failed")
		return nil, domain.NewStageError(worker, err)
	}

	metrics.ObserveStageCall(worker, "success", float64(latency.Milliseconds()))
	log.Debug().Str("worker", worker).Dur("latency", latency).Msg("stage call ok")
	return result, nil
}

// Workers answer in one of three shapes: a bare result object,
// {statusCode, body: <result>}, or {statusCode, body: "<json string>"}
// where body is itself JSON-encoded. Inside the body the canonical form is
// {success, data|error}; a bare result object without a success field is
// accepted as-is.
type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	ErrorMsg   string          `json:"error"`
}

func decodeEnvelope(raw []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	inner := raw
	if env.Body != nil {
		inner = env.Body
		// Double-encoded body: a JSON string holding JSON.
		if len(inner) > 0 && inner[0] == '"' {
			var s string
			if err := json.Unmarshal(inner, &s); err != nil {
				return nil, fmt.Errorf("malformed body string: %w", err)
			}
			inner = []byte(s)
		}
		var bodyEnv envelope
		if err := json.Unmarshal(inner, &bodyEnv); err != nil {
			return nil, fmt.Errorf("malformed body: %w", err)
		}
		env.Success, env.Data, env.ErrorMsg = bodyEnv.Success, bodyEnv.Data, bodyEnv.ErrorMsg
	}

	if env.StatusCode != nil && (*env.StatusCode < 200 || *env.StatusCode >= 300) {
		if env.ErrorMsg != "" {
			return nil, errors.New(env.ErrorMsg)
		}
		return nil, fmt.Errorf("worker returned status %d", *env.StatusCode)
	}
	if env.Success != nil && !*env.Success {
		if env.ErrorMsg != "" {
			return nil, errors.New(env.ErrorMsg)
		}
		return nil, errors.New("worker reported failure")
	}
	if env.Data != nil {
		return env.Data, nil
	}
	return inner, nil
}
