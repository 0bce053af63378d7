package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/core/fetch"
	"topofetch/core/normalize"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
	"topofetch/internal/metrics"
)

type fakeStages struct {
	calls     []string
	fetchErr  error
	reprojErr error
	normErr   error
}

func (f *fakeStages) Fetch(_ context.Context, req fetch.Request) (fetch.Result, error) {
	f.calls = append(f.calls, "fetch")
	if f.fetchErr != nil {
		return fetch.Result{}, f.fetchErr
	}
	name := fetch.Filename(req.Prefix, req.Source)
	return fetch.Result{Path: filepath.Join(req.Directory, name), Directory: req.Directory, Filename: name}, nil
}

func (f *fakeStages) Reproject(_ context.Context, in reproject.Input) (reproject.Projected, error) {
	f.calls = append(f.calls, "reproject")
	if f.reprojErr != nil {
		return reproject.Projected{}, f.reprojErr
	}
	c := in.Box.Centroid()
	z := reproject.ZoneFor(c.Lat, c.Lon)
	return reproject.Projected{
		Path:      filepath.Join(in.Directory, reproject.Filename(in.Prefix, in.Source)),
		Directory: in.Directory,
		Prefix:    in.Prefix,
		Source:    in.Source,
		Zone:      z,
		EPSG:      z.EPSG(),
	}, nil
}

func (f *fakeStages) Normalize(_ context.Context, p reproject.Projected, opts normalize.Options) (normalize.Normalized, error) {
	f.calls = append(f.calls, "normalize")
	if f.normErr != nil {
		return normalize.Normalized{}, f.normErr
	}
	out := normalize.GridPath(p.Path)
	n := normalize.Normalized{Path: out, Directory: p.Directory, Prefix: p.Prefix, Source: p.Source, Zone: p.Zone}
	if opts.Hillshade {
		n.HillshadePath = normalize.HillshadePath(out)
	}
	return n, nil
}

func request(t *testing.T, source string) Request {
	t.Helper()
	d, err := catalog.Resolve(source)
	require.NoError(t, err)
	return Request{
		Source:    d,
		Box:       bbox.Box{South: 56.554, North: 56.699, West: -5.179, East: -4.809},
		Directory: "/data/glen",
		Prefix:    "glen",
		Normalize: normalize.Options{Hillshade: true},
	}
}

// TestRunStagesInOrder proves the stages run fetch, reproject, normalize and name their outputs deterministically
func TestRunStagesInOrder(t *testing.T) {
	f := &fakeStages{}
	var seen []State
	p := New(f, f, f, metrics.New()).WithObserver(func(s State, _ *Result) { seen = append(seen, s) })

	res, err := p.Run(context.Background(), request(t, "AW3D30"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "reproject", "normalize"}, f.calls)
	assert.Equal(t, []State{StateFetched, StateReprojected, StateNormalized}, seen)
	assert.Equal(t, StateNormalized, res.State)
	assert.Equal(t, "/data/glen/glen_AW3D30.tif", res.Fetched.Path)
	assert.Equal(t, "/data/glen/glen_AW3D30_UTM.tif", res.Projected.Path)
	assert.Equal(t, 32630, res.Projected.EPSG)
	assert.Equal(t, "/data/glen/glen_AW3D30_UTM.bil", res.Normalized.Path)
	assert.Equal(t, "/data/glen/glen_AW3D30_UTM_hs.bil", res.Normalized.HillshadePath)
	assert.Len(t, res.Files(), 4)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name     string
		stages   *fakeStages
		failedAt string
		calls    int
		errType  errors.Type
	}{
		{"fetch", &fakeStages{fetchErr: errors.Fetch("boom", "u", nil)}, "fetch", 1, errors.TypeFetch},
		{"reproject", &fakeStages{reprojErr: errors.Format("p", "bad", nil)}, "reproject", 2, errors.TypeFormat},
		{"normalize", &fakeStages{normErr: errors.Format("p", "bad", nil)}, "normalize", 3, errors.TypeFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.stages, tt.stages, tt.stages, nil).Run(context.Background(), request(t, "SRTMGL1"))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType))
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, tt.failedAt, res.FailedAt)
			assert.Len(t, tt.stages.calls, tt.calls)
		})
	}
}

func TestRunCatalogStopsAfterFetch(t *testing.T) {
	f := &fakeStages{}
	res, err := New(f, f, f, nil).Run(context.Background(), request(t, "otCatalog"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, f.calls)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "/data/glen/glen_otcatalog.json", res.Fetched.Path)
}

func TestStateText(t *testing.T) {
	b, err := json.Marshal(map[string]State{"s": StateReprojected})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"REPROJECTED"}`, string(b))

	var back map[string]State
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, StateReprojected, back["s"])

	assert.True(t, StateSkipped.Terminal())
	assert.False(t, StateClipped.Terminal())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
