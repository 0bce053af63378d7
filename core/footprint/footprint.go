// Package footprint describes a grid's geographic extent as a polygon shapefile.
package footprint

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"topofetch/core/grid"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

// edgeSteps is how many segments each side of the extent is split into
const edgeSteps = 16

const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// record is one shapefile row
type record struct {
	geom.Polygon
	Name     string  `shp:"NAME"`
	EPSG     int     `shp:"EPSG"`
	CellSize float64 `shp:"CELLSIZE"`
}

// Filename is the shapefile name for prefix
func Filename(prefix string) string {
	return prefix + "_footprint.shp"
}

// PrefixOf derives a prefix from a grid path: glen_AW3D30_UTM.bil gives glen_AW3D30
func PrefixOf(gridPath string) string {
	base := strings.TrimSuffix(filepath.Base(gridPath), filepath.Ext(gridPath))
	base = strings.TrimSuffix(base, "_hs")
	return strings.TrimSuffix(base, "_UTM")
}

// Polygon traces the outer edge of g in WGS84 with densified sides
func Polygon(h grid.Header) (geom.Polygon, error) {
	west, north := h.West, h.North
	east := west + float64(h.Samples)*h.CellSize
	south := north - float64(h.Lines)*h.CellSize

	ring := make(geom.Path, 0, 4*edgeSteps+1)
	dx := (east - west) / edgeSteps
	dy := (north - south) / edgeSteps
	for i := 0; i < edgeSteps; i++ {
		ring = append(ring, geom.Point{X: west + float64(i)*dx, Y: south})
	}
	for i := 0; i < edgeSteps; i++ {
		ring = append(ring, geom.Point{X: east, Y: south + float64(i)*dy})
	}
	for i := 0; i < edgeSteps; i++ {
		ring = append(ring, geom.Point{X: east - float64(i)*dx, Y: north})
	}
	for i := 0; i < edgeSteps; i++ {
		ring = append(ring, geom.Point{X: west, Y: north - float64(i)*dy})
	}
	ring = append(ring, ring[0])

	utm, err := proj.Parse(h.Zone.Proj4())
	if err != nil {
		return nil, errors.Internal("invalid UTM definition", err)
	}
	wgs, err := proj.Parse(reproject.WGS84Proj4)
	if err != nil {
		return nil, errors.Internal("invalid WGS84 definition", err)
	}
	t, err := utm.NewTransform(wgs)
	if err != nil {
		return nil, errors.Internal("cannot build coordinate transform", err)
	}
	out, err := geom.Polygon{ring}.Transform(t)
	if err != nil {
		return nil, errors.Internal("coordinate transform failed", err)
	}
	return out.(geom.Polygon), nil
}

// Write creates {dir}/{prefix}_footprint.shp (with .shx, .dbf and .prj) next to
// the grid. An empty prefix is derived from the grid name.
func Write(gridPath, prefix string) (string, error) {
	h, err := grid.ReadHeader(grid.HeaderPath(gridPath))
	if err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = PrefixOf(gridPath)
	}

	poly, err := Polygon(h)
	if err != nil {
		return "", err
	}

	path := filepath.Join(filepath.Dir(gridPath), Filename(prefix))
	enc, err := shp.NewEncoder(path, record{})
	if err != nil {
		return "", errors.Internal("cannot create shapefile", err).WithContext("path", path)
	}
	if err := enc.Encode(record{Polygon: poly, Name: prefix, EPSG: h.Zone.EPSG(), CellSize: h.CellSize}); err != nil {
		enc.Close()
		return "", errors.Internal("cannot write footprint", err).WithContext("path", path)
	}
	enc.Close()

	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84WKT), 0644); err != nil {
		return "", errors.Internal("cannot write projection file", err).WithContext("path", prj)
	}
	return path, nil
}
