// Package pipeline runs the acquisition stages in strict order.
// Stages: FETCH → REPROJECT → NORMALIZE
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/core/credential"
	"topofetch/core/fetch"
	"topofetch/core/normalize"
	"topofetch/core/reproject"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

// Fetcher downloads a raster
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Reprojector moves a raster to UTM
type Reprojector interface {
	Reproject(ctx context.Context, in reproject.Input) (reproject.Projected, error)
}

// Normalizer writes the interchange grid
type Normalizer interface {
	Normalize(ctx context.Context, p reproject.Projected, opts normalize.Options) (normalize.Normalized, error)
}

// Request describes one acquisition
type Request struct {
	Source    catalog.Descriptor
	Box       bbox.Box
	Token     credential.Token
	Directory string
	Prefix    string

	// ResolutionMeters overrides the dataset resolution when positive
	ResolutionMeters float64

	Normalize normalize.Options
}

// Result holds what each completed stage produced
type Result struct {
	State      State                 `json:"state"`
	Prefix     string                `json:"prefix"`
	Source     catalog.Descriptor    `json:"source"`
	Box        bbox.Box              `json:"bbox"`
	Fetched    *fetch.Result         `json:"fetched,omitempty"`
	Projected  *reproject.Projected  `json:"projected,omitempty"`
	Normalized *normalize.Normalized `json:"normalized,omitempty"`
	FailedAt   string                `json:"failed_at,omitempty"`
	Error      string                `json:"error,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// Files lists every file the completed stages left on disk
func (r *Result) Files() []string {
	var files []string
	if r.Fetched != nil {
		files = append(files, r.Fetched.Path)
	}
	if r.Projected != nil {
		files = append(files, r.Projected.Path)
	}
	if r.Normalized != nil {
		files = append(files, r.Normalized.Path)
		if r.Normalized.HillshadePath != "" {
			files = append(files, r.Normalized.HillshadePath)
		}
	}
	return files
}

// Observer is told about every state transition
type Observer func(State, *Result)

// Pipeline composes the stages
type Pipeline struct {
	fetcher     Fetcher
	reprojector Reprojector
	normalizer  Normalizer
	metrics     *metrics.Metrics
	observer    Observer
	log         *zap.Logger
}

// New creates a pipeline
func New(f Fetcher, r Reprojector, n Normalizer, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		reprojector: r,
		normalizer:  n,
		metrics:     m,
		log:         logging.Named("pipeline"),
	}
}

// WithObserver returns a copy of p that reports transitions to obs
func (p *Pipeline) WithObserver(obs Observer) *Pipeline {
	cp := *p
	cp.observer = obs
	return &cp
}

func (p *Pipeline) transition(res *Result, s State) {
	res.State = s
	p.log.Debug("state", zap.String("prefix", res.Prefix), zap.Stringer("state", s))
	if p.observer != nil {
		p.observer(s, res)
	}
}

// Run executes fetch, reproject and normalize in order. The first failing stage
// stops the run; the result records which stage failed and is returned with the error.
// A successful raster run ends NORMALIZED; callers add their own stages and
// mark DONE. Catalog datasets are DONE after the fetch.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{State: StatePending, Prefix: req.Prefix, Source: req.Source, Box: req.Box}

	fail := func(stage string, err error) (*Result, error) {
		res.FailedAt = stage
		res.Error = err.Error()
		res.Duration = time.Since(start)
		p.transition(res, StateFailed)
		return res, err
	}

	log := p.log.With(zap.String("prefix", req.Prefix), zap.String("dataset", req.Source.Name))
	log.Info("pipeline started", zap.Stringer("bbox", req.Box))

	stageStart := time.Now()
	fetched, err := p.fetcher.Fetch(ctx, fetch.Request{
		Source:    req.Source,
		Box:       req.Box,
		Token:     req.Token,
		Directory: req.Directory,
		Prefix:    req.Prefix,
	})
	if err != nil {
		return fail("fetch", err)
	}
	p.metrics.ObserveStage("fetch", stageStart)
	res.Fetched = &fetched
	p.transition(res, StateFetched)

	if !req.Source.IsRaster() {
		res.Duration = time.Since(start)
		p.transition(res, StateDone)
		log.Info("catalog listing saved", zap.String("path", fetched.Path))
		return res, nil
	}

	projected, err := p.reprojector.Reproject(ctx, reproject.Input{
		Path:             fetched.Path,
		Directory:        req.Directory,
		Prefix:           req.Prefix,
		Source:           req.Source,
		Box:              req.Box,
		ResolutionMeters: req.ResolutionMeters,
	})
	if err != nil {
		return fail("reproject", err)
	}
	res.Projected = &projected
	p.transition(res, StateReprojected)

	normalized, err := p.normalizer.Normalize(ctx, projected, req.Normalize)
	if err != nil {
		return fail("normalize", err)
	}
	res.Normalized = &normalized
	p.transition(res, StateNormalized)

	res.Duration = time.Since(start)
	log.Info("pipeline finished", zap.String("grid", normalized.Path), zap.Duration("took", res.Duration))
	return res, nil
}
