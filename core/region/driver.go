package region

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"topofetch/core/catalog"
	"topofetch/core/credential"
	"topofetch/core/grid"
	"topofetch/core/normalize"
	"topofetch/core/pipeline"
	"topofetch/internal/errors"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

// unclippedSuffix marks the pipeline prefix used before clipping
const unclippedSuffix = "_not_clipped"

// Options configure a driver run
type Options struct {
	Directory        string
	Source           catalog.Descriptor
	Token            credential.Token
	ResolutionMeters float64
	Normalize        normalize.Options

	// KeepIntermediates leaves the unclipped rasters on disk
	KeepIntermediates bool
}

// Outcome is the end state of one geometry
type Outcome struct {
	ID       string         `json:"id"`
	Prefix   string         `json:"prefix"`
	State    pipeline.State `json:"state"`
	Files    []string       `json:"files,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Summary collects the outcomes of a run in geometry order
type Summary struct {
	Outcomes []Outcome `json:"outcomes"`
	Done     int       `json:"done"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.State {
	case pipeline.StateDone:
		s.Done++
	case pipeline.StateSkipped:
		s.Skipped++
	case pipeline.StateFailed:
		s.Failed++
	}
}

// Err is non-nil when any geometry failed
func (s *Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	var prefixes []string
	for _, o := range s.Outcomes {
		if o.State == pipeline.StateFailed {
			prefixes = append(prefixes, o.Prefix)
		}
	}
	return errors.Newf(errors.TypeInternal, "%d of %d geometries failed: %s",
		s.Failed, len(s.Outcomes), strings.Join(prefixes, ", "))
}

// Driver runs the pipeline once per geometry, strictly one at a time
type Driver struct {
	pipeline *pipeline.Pipeline
	opts     Options
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewDriver creates a region driver
func NewDriver(p *pipeline.Pipeline, opts Options, m *metrics.Metrics) *Driver {
	return &Driver{
		pipeline: p,
		opts:     opts,
		metrics:  m,
		log:      logging.Named("region"),
	}
}

// Dir is the output directory of a geometry
func (d *Driver) Dir(g Geometry) string {
	return filepath.Join(d.opts.Directory, g.Prefix)
}

// ClippedPath is the final grid of a geometry
func (d *Driver) ClippedPath(g Geometry) string {
	return filepath.Join(d.Dir(g), g.Prefix+"_"+d.opts.Source.Name+"_UTM"+grid.Extension)
}

// Run processes every geometry in order. A failing geometry is recorded and
// the run continues with the next one.
func (d *Driver) Run(ctx context.Context, set *Set) *Summary {
	summary := &Summary{}
	for _, g := range set.Geometries {
		if ctx.Err() != nil {
			summary.add(Outcome{ID: g.ID, Prefix: g.Prefix, State: pipeline.StateFailed, Error: ctx.Err().Error()})
			d.metrics.IncGeometry(pipeline.StateFailed.String())
			continue
		}
		o := d.runOne(ctx, g)
		d.metrics.IncGeometry(o.State.String())
		summary.add(o)
	}
	d.log.Info("regions finished",
		zap.Int("done", summary.Done), zap.Int("skipped", summary.Skipped), zap.Int("failed", summary.Failed))
	return summary
}

func (d *Driver) runOne(ctx context.Context, g Geometry) Outcome {
	start := time.Now()
	dir := d.Dir(g)
	log := d.log.With(zap.String("prefix", g.Prefix), zap.String("id", g.ID))
	out := Outcome{ID: g.ID, Prefix: g.Prefix}

	st, err := LoadStatus(dir)
	if err != nil {
		out.State, out.Error = pipeline.StateFailed, err.Error()
		log.Error("unreadable status record", zap.Error(err))
		return out
	}

	switch {
	case st != nil && st.State == pipeline.StateDone && st.Source != "" && st.Source != d.opts.Source.Name:
		// outputs are named by dataset, so the earlier ones stay and this dataset runs alongside them
		log.Warn("prefix was completed with another dataset, running again",
			zap.String("recorded", st.Source), zap.String("requested", d.opts.Source.Name), zap.String("run_id", st.RunID))
	case st != nil && st.State == pipeline.StateDone:
		log.Info("already complete, skipping", zap.String("run_id", st.RunID))
		out.State, out.Files = pipeline.StateSkipped, st.Files
		return out
	case st != nil:
		log.Warn("resuming partial run", zap.Stringer("state", st.State), zap.String("run_id", st.RunID))
		d.removePartial(dir, g, st)
	default:
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			log.Warn("output directory exists without a status record, skipping", zap.String("dir", dir))
			out.State = pipeline.StateSkipped
			return out
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		out.State, out.Error = pipeline.StateFailed, err.Error()
		return out
	}

	status := newStatus(g, d.opts.Source.Name)
	fail := func(err error) Outcome {
		status.State = pipeline.StateFailed
		status.Error = err.Error()
		if serr := status.Save(dir); serr != nil {
			log.Error("cannot save status record", zap.Error(serr))
		}
		log.Error("geometry failed", zap.Error(err))
		out.State, out.Error, out.Files = pipeline.StateFailed, err.Error(), status.Files
		out.Duration = time.Since(start)
		return out
	}
	if err := status.Save(dir); err != nil {
		return fail(err)
	}

	env, err := g.Envelope()
	if err != nil {
		return fail(err)
	}

	observed := d.pipeline.WithObserver(func(s pipeline.State, res *pipeline.Result) {
		if s == pipeline.StateFailed {
			return
		}
		status.State = s
		status.addFiles(res.Files()...)
		if err := status.Save(dir); err != nil {
			log.Warn("cannot save status record", zap.Error(err))
		}
	})

	res, err := observed.Run(ctx, pipeline.Request{
		Source:           d.opts.Source,
		Box:              env,
		Token:            d.opts.Token,
		Directory:        dir,
		Prefix:           g.Prefix + unclippedSuffix,
		ResolutionMeters: d.opts.ResolutionMeters,
		Normalize:        d.opts.Normalize,
	})
	if err != nil {
		return fail(err)
	}
	if res.Normalized == nil {
		// catalog listings have nothing to clip
		status.State = pipeline.StateDone
		out.State, out.Files = pipeline.StateDone, res.Files()
		if err := status.Save(dir); err != nil {
			return fail(err)
		}
		return out
	}

	clipStart := time.Now()
	final, err := d.clip(g, res.Normalized)
	if err != nil {
		return fail(err)
	}
	d.metrics.ObserveStage("clip", clipStart)
	status.State = pipeline.StateClipped
	status.addFiles(final...)
	if err := status.Save(dir); err != nil {
		return fail(err)
	}

	if !d.opts.KeepIntermediates {
		for _, f := range res.Files() {
			if err := removeArtifact(f); err != nil {
				log.Warn("cannot remove intermediate file", zap.String("path", f), zap.Error(err))
			}
		}
		status.Files = final
	}

	status.State = pipeline.StateDone
	if err := status.Save(dir); err != nil {
		return fail(err)
	}

	out.State, out.Files, out.Duration = pipeline.StateDone, status.Files, time.Since(start)
	log.Info("geometry complete", zap.Strings("files", final), zap.Duration("took", out.Duration))
	return out
}

// clip cuts the normalized grid and its hillshade to the geometry
func (d *Driver) clip(g Geometry, n *normalize.Normalized) ([]string, error) {
	dem, err := grid.Read(n.Path)
	if err != nil {
		return nil, err
	}
	shape, err := g.InZone(dem.Zone)
	if err != nil {
		return nil, err
	}

	clipped, err := Clip(dem, shape)
	if err != nil {
		return nil, err
	}
	dst := d.ClippedPath(g)
	if err := grid.Write(dst, clipped); err != nil {
		return nil, err
	}
	files := []string{dst}

	if n.HillshadePath != "" {
		hs, err := grid.Read(n.HillshadePath)
		if err != nil {
			return nil, err
		}
		hsClipped, err := Clip(hs, shape)
		if err != nil {
			return nil, err
		}
		hsDst := normalize.HillshadePath(dst)
		if err := grid.Write(hsDst, hsClipped); err != nil {
			return nil, err
		}
		files = append(files, hsDst)
	}
	return files, nil
}

// removePartial deletes what an interrupted run left behind
func (d *Driver) removePartial(dir string, g Geometry, st *Status) {
	for _, f := range st.Files {
		removeArtifact(f)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, g.Prefix+unclippedSuffix+"_*"))
	for _, f := range matches {
		os.Remove(f)
	}
}

func removeArtifact(path string) error {
	if filepath.Ext(path) == grid.Extension {
		return grid.Remove(path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
