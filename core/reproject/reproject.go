// Package reproject moves geographic rasters onto the UTM grid of their centroid.
package reproject

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/internal/errors"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

// Resampling is the only interpolation used for elevation
const Resampling = "cubic"

// Warper performs the actual resampling. The GDAL implementation lives in core/raster.
type Warper interface {
	Warp(ctx context.Context, src, dst string, switches []string) error
}

// Input is a fetched raster awaiting reprojection
type Input struct {
	Path      string
	Directory string
	Prefix    string
	Source    catalog.Descriptor
	Box       bbox.Box

	// ResolutionMeters overrides the dataset resolution when positive
	ResolutionMeters float64
}

// Projected is a raster on a UTM grid
type Projected struct {
	Path             string             `json:"path"`
	Directory        string             `json:"directory"`
	Prefix           string             `json:"prefix"`
	Source           catalog.Descriptor `json:"source"`
	Zone             Zone               `json:"zone"`
	EPSG             int                `json:"epsg"`
	ResolutionMeters float64            `json:"resolution_m"`
}

// Reprojector warps fetched rasters into UTM
type Reprojector struct {
	warper  Warper
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New creates a reprojector on top of w
func New(w Warper, m *metrics.Metrics) *Reprojector {
	return &Reprojector{
		warper:  w,
		metrics: m,
		log:     logging.Named("reproject"),
	}
}

// Filename is the deterministic name of the projected raster
func Filename(prefix string, source catalog.Descriptor) string {
	return prefix + "_" + source.Name + "_UTM.tif"
}

// Switches are the gdalwarp arguments for a target zone and cell size
func Switches(z Zone, resolution float64) []string {
	r := strconv.FormatFloat(resolution, 'f', -1, 64)
	return []string{
		"-t_srs", "EPSG:" + strconv.Itoa(z.EPSG()),
		"-tr", r, r,
		"-r", Resampling,
		"-of", "GTiff",
	}
}

// Reproject warps in.Path into the UTM zone of the bounding-box centroid.
// Boxes spanning a zone boundary are still projected into the centroid zone.
func (r *Reprojector) Reproject(ctx context.Context, in Input) (Projected, error) {
	if !in.Source.IsRaster() {
		return Projected{}, errors.Configuration("dataset %s is not a raster and cannot be reprojected", in.Source.Name)
	}

	res := in.Source.ResolutionMeters
	if in.ResolutionMeters > 0 {
		res = in.ResolutionMeters
	}
	if res <= 0 {
		return Projected{}, errors.Configuration("no target resolution for dataset %s", in.Source.Name)
	}

	if _, err := os.Stat(in.Path); err != nil {
		return Projected{}, errors.Format(in.Path, "fetched raster is missing", err)
	}

	c := in.Box.Centroid()
	zone := ZoneFor(c.Lat, c.Lon)
	dst := filepath.Join(in.Directory, Filename(in.Prefix, in.Source))

	log := r.log.With(zap.String("src", in.Path), zap.String("dst", dst), zap.Stringer("zone", zone))
	log.Info("reprojecting", zap.Int("epsg", zone.EPSG()), zap.Float64("resolution_m", res))

	start := time.Now()
	if err := r.warper.Warp(ctx, in.Path, dst, Switches(zone, res)); err != nil {
		os.Remove(dst)
		log.Error("reprojection failed", zap.Error(err))
		return Projected{}, err
	}
	r.metrics.ObserveStage("reproject", start)
	log.Debug("reprojection finished", zap.Duration("took", time.Since(start)))

	return Projected{
		Path:             dst,
		Directory:        in.Directory,
		Prefix:           in.Prefix,
		Source:           in.Source,
		Zone:             zone,
		EPSG:             zone.EPSG(),
		ResolutionMeters: res,
	}, nil
}
