package reproject

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/internal/errors"
)

type recordingWarper struct {
	src, dst string
	switches []string
	err      error
}

func (w *recordingWarper) Warp(_ context.Context, src, dst string, switches []string) error {
	w.src, w.dst, w.switches = src, dst, switches
	if w.err != nil {
		return w.err
	}
	return os.WriteFile(dst, []byte("II*\x00"), 0644)
}

func fetched(t *testing.T) Input {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "glen_SRTMGL1.tif")
	require.NoError(t, os.WriteFile(src, []byte("II*\x00"), 0644))
	d, err := catalog.Resolve("SRTMGL1")
	require.NoError(t, err)
	return Input{
		Path:      src,
		Directory: dir,
		Prefix:    "glen",
		Source:    d,
		Box:       bbox.Box{South: 56.5, North: 56.7, West: -5.0, East: -4.8},
	}
}

func TestReprojectUsesCentroidZone(t *testing.T) {
	w := &recordingWarper{}
	in := fetched(t)

	p, err := New(w, nil).Reproject(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 32630, p.EPSG)
	assert.Equal(t, 30.0, p.ResolutionMeters)
	assert.Equal(t, filepath.Join(in.Directory, "glen_SRTMGL1_UTM.tif"), p.Path)
	assert.Equal(t, in.Path, w.src)
	assert.Equal(t, []string{"-t_srs", "EPSG:32630", "-tr", "30", "30", "-r", "cubic", "-of", "GTiff"}, w.switches)
}

func TestReprojectResolutionOverride(t *testing.T) {
	w := &recordingWarper{}
	in := fetched(t)
	in.ResolutionMeters = 12.5

	p, err := New(w, nil).Reproject(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 12.5, p.ResolutionMeters)
	assert.Contains(t, w.switches, "12.5")
}

func TestReprojectFailureRemovesOutput(t *testing.T) {
	w := &recordingWarper{err: errors.Format("x", "warp failed", nil)}
	in := fetched(t)

	_, err := New(w, nil).Reproject(context.Background(), in)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(in.Directory, "glen_SRTMGL1_UTM.tif"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReprojectRejectsCatalog(t *testing.T) {
	in := fetched(t)
	in.Source, _ = catalog.Resolve("otCatalog")

	_, err := New(&recordingWarper{}, nil).Reproject(context.Background(), in)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

func TestReprojectMissingInput(t *testing.T) {
	in := fetched(t)
	in.Path = filepath.Join(in.Directory, "absent.tif")

	_, err := New(&recordingWarper{}, nil).Reproject(context.Background(), in)
	assert.True(t, errors.IsType(err, errors.TypeFormat))
}
