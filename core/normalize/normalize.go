// Package normalize converts projected rasters into the toolchain's grid format.
package normalize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"topofetch/core/catalog"
	"topofetch/core/grid"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

// GridReader loads a projected raster; core/raster provides the GDAL implementation
type GridReader func(path string, zone reproject.Zone) (*grid.Grid, error)

// Options control masking and derived products
type Options struct {
	// MinElevation masks cells strictly below it; nil disables masking
	MinElevation *float64

	// Hillshade also writes the shaded relief companion
	Hillshade bool

	// Azimuth and Altitude default to 315 and 45 degrees
	Azimuth  float64
	Altitude float64

	// RemoveGeoTIFF deletes the projected GeoTIFF once the grid is written
	RemoveGeoTIFF bool
}

// Normalized is a grid in the interchange format
type Normalized struct {
	Path          string             `json:"path"`
	HillshadePath string             `json:"hillshade_path,omitempty"`
	Directory     string             `json:"directory"`
	Prefix        string             `json:"prefix"`
	Source        catalog.Descriptor `json:"source"`
	Zone          reproject.Zone     `json:"zone"`
	ValidCells    int                `json:"valid_cells"`
}

// Normalizer writes .bil/.hdr grids
type Normalizer struct {
	read    GridReader
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New creates a normalizer
func New(read GridReader, m *metrics.Metrics) *Normalizer {
	return &Normalizer{
		read:    read,
		metrics: m,
		log:     logging.Named("normalize"),
	}
}

// GridPath is the interchange file for a projected raster: the GeoTIFF name with a .bil extension
func GridPath(projected string) string {
	return strings.TrimSuffix(projected, filepath.Ext(projected)) + grid.Extension
}

// HillshadePath is the shaded relief companion of a grid
func HillshadePath(gridPath string) string {
	return strings.TrimSuffix(gridPath, filepath.Ext(gridPath)) + "_hs" + grid.Extension
}

// Mask sets every cell below min to no-data and returns how many were masked
func Mask(g *grid.Grid, min float64) int {
	n := 0
	for i, v := range g.Data {
		if g.IsNoData(v) {
			g.Data[i] = g.NoData
			continue
		}
		if float64(v) < min {
			g.Data[i] = g.NoData
			n++
		}
	}
	return n
}

// Normalize converts p to the interchange format next to it
func (n *Normalizer) Normalize(ctx context.Context, p reproject.Projected, opts Options) (Normalized, error) {
	if err := ctx.Err(); err != nil {
		return Normalized{}, errors.Internal("normalization cancelled", err)
	}
	start := time.Now()
	log := n.log.With(zap.String("src", p.Path))

	g, err := n.read(p.Path, p.Zone)
	if err != nil {
		return Normalized{}, err
	}

	if opts.MinElevation != nil {
		masked := Mask(g, *opts.MinElevation)
		log.Debug("masked low cells", zap.Int("cells", masked), zap.Float64("min_elevation", *opts.MinElevation))
	}

	out := GridPath(p.Path)
	if err := grid.Write(out, g); err != nil {
		return Normalized{}, err
	}

	res := Normalized{
		Path:       out,
		Directory:  p.Directory,
		Prefix:     p.Prefix,
		Source:     p.Source,
		Zone:       p.Zone,
		ValidCells: g.Valid(),
	}

	if opts.Hillshade {
		az, alt := opts.Azimuth, opts.Altitude
		if az == 0 && alt == 0 {
			az, alt = DefaultAzimuth, DefaultAltitude
		}
		hs := HillshadePath(out)
		if err := grid.Write(hs, Hillshade(g, az, alt)); err != nil {
			return Normalized{}, err
		}
		res.HillshadePath = hs
	}

	if opts.RemoveGeoTIFF {
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			log.Warn("cannot remove projected GeoTIFF", zap.Error(err))
		}
	}

	n.metrics.ObserveStage("normalize", start)
	log.Info("normalized", zap.String("grid", out), zap.Int("valid_cells", res.ValidCells), zap.Bool("hillshade", opts.Hillshade))
	return res, nil
}
