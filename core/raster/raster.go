// Package raster reads and warps GeoTIFFs through GDAL.
package raster

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"topofetch/core/grid"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

var registerOnce sync.Once

// Register loads the GDAL drivers once per process
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// ReadGrid loads a single-band, north-up raster in zone into memory.
// Source no-data cells are rewritten to grid.NoData.
func ReadGrid(path string, zone reproject.Zone) (*grid.Grid, error) {
	Register()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, errors.Format(path, "cannot open raster", err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands != 1 {
		return nil, errors.Format(path, fmt.Sprintf("expected a single band, found %d", st.NBands), nil)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, errors.Format(path, "raster has no geotransform", err)
	}
	if gt[2] != 0 || gt[4] != 0 {
		return nil, errors.Format(path, "rotated rasters are not supported", nil)
	}
	if gt[1] != -gt[5] {
		return nil, errors.Format(path, fmt.Sprintf("non-square cells %g x %g", gt[1], -gt[5]), nil)
	}

	g := grid.New(st.SizeX, st.SizeY, gt[1], gt[0], gt[3], zone)
	g.CoordinateSystem = ds.Projection()

	band := ds.Bands()[0]
	if err := band.Read(0, 0, g.Data, st.SizeX, st.SizeY); err != nil {
		return nil, errors.Format(path, "cannot read band", err)
	}

	if nd, ok := band.NoData(); ok {
		src := float32(nd)
		for i, v := range g.Data {
			if v == src {
				g.Data[i] = grid.NoData
			}
		}
	}
	return g, nil
}

// Warper runs gdalwarp through the GDAL library
type Warper struct{}

// Warp implements reproject.Warper
func (Warper) Warp(ctx context.Context, src, dst string, switches []string) error {
	if err := ctx.Err(); err != nil {
		return errors.Internal("reprojection cancelled", err)
	}
	Register()

	ds, err := godal.Open(src, godal.RasterOnly())
	if err != nil {
		return errors.Format(src, "cannot open raster", err)
	}
	defer ds.Close()

	out, err := ds.Warp(dst, switches)
	if err != nil {
		return errors.Format(src, "gdal warp failed", err).WithContext("dst", dst)
	}
	if err := out.Close(); err != nil {
		return errors.Format(dst, "cannot finish projected raster", err)
	}
	return nil
}

var _ reproject.Warper = Warper{}
