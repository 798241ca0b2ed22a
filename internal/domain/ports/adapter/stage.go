package adapter

import (
	"context"
	"encoding/json"
)

// Stage-worker names. Each maps to one externally deployed unit.
const (
	StageSlides   = "slide-generator"
	StageStitch   = "video-stitcher"
	StageOptimize = "video-optimizer"
	StageLink     = "link-publisher"
)

// StageInvoker calls one external stage-worker synchronously and returns the
// canonical result object, unwrapped from whatever envelope the worker chose
// to answer with. A failed call yields *domain.StageError. Implementations
// never retry and hold no state; they are safe for concurrent use across
// independent jobs.
type StageInvoker interface {
	Invoke(ctx context.Context, worker string, req any) (json.RawMessage, error)
}
