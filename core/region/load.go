package region

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"

	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

// ShapefileQuery selects polygons from a basin shapefile such as HydroBASINS
type ShapefileQuery struct {
	Path      string
	IDField   string
	AreaField string

	// IDs selects features; empty selects all
	IDs []string

	// Prefixes name the outputs, parallel to IDs; the default is basin_{id}
	Prefixes []string
}

// LoadShapefile reads the selected features in the order of q.IDs
func LoadShapefile(q ShapefileQuery) (*Set, error) {
	if len(q.Prefixes) > 0 && len(q.Prefixes) != len(q.IDs) {
		return nil, errors.Configuration("%d prefixes given for %d basin ids", len(q.Prefixes), len(q.IDs))
	}

	wanted := map[string]int{}
	for i, id := range q.IDs {
		wanted[normalizeID(id)] = i
	}

	type feature struct {
		shape geom.Polygonal
		area  float64
	}
	found := map[string]feature{}
	var order []string

	err := readPolygons(q.Path, []string{q.IDField, q.AreaField}, func(poly geom.Polygonal, fields map[string]string) error {
		id := normalizeID(fields[q.IDField])
		if len(wanted) > 0 {
			if _, ok := wanted[id]; !ok {
				return nil
			}
		}
		area, _ := strconv.ParseFloat(strings.TrimSpace(fields[q.AreaField]), 64)
		if prev, dup := found[id]; dup {
			// multi-part basins arrive as several rows sharing one id
			found[id] = feature{shape: prev.shape.Union(poly), area: prev.area + area}
			return nil
		}
		order = append(order, id)
		found[id] = feature{shape: poly, area: area}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := order
	if len(q.IDs) > 0 {
		ids = make([]string, len(q.IDs))
		for i, id := range q.IDs {
			ids[i] = normalizeID(id)
			if _, ok := found[ids[i]]; !ok {
				return nil, errors.Configuration("basin %s not found in %s", id, q.Path)
			}
		}
	}

	set := &Set{}
	for i, id := range ids {
		prefix := "basin_" + id
		if len(q.Prefixes) > 0 {
			prefix = q.Prefixes[i]
		}
		f := found[id]
		if err := set.Add(id, prefix, f.shape, f.area); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// normalizeID renders numeric ids without exponent or trailing zeros so that
// 2080023010 matches a dbf value of "2080023010.000000"
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// LoadMask reads every polygon of a shapefile, whatever its attributes, and
// merges them into a single geometry for use with Set.Intersect
func LoadMask(path string) (*Set, error) {
	var parts []geom.Polygonal
	if err := readPolygons(path, nil, func(poly geom.Polygonal, _ map[string]string) error {
		parts = append(parts, poly)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, errors.Format(path, "mask shapefile has no polygons", nil)
	}

	set := &Set{}
	if err := set.Add("mask", "mask", unionAll(parts), 0); err != nil {
		return nil, err
	}
	return set, nil
}

// readPolygons decodes every row of a polygon shapefile in WGS84. A missing
// .prj means the file is already geographic.
func readPolygons(path string, fieldNames []string, fn func(geom.Polygonal, map[string]string) error) error {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return errors.Format(path, "cannot open shapefile", err)
	}
	defer dec.Close()

	wgs, err := parseSR(reproject.WGS84Proj4)
	if err != nil {
		return err
	}
	src, err := dec.SR()
	if err != nil {
		src = wgs
	}

	for row := 0; ; row++ {
		g, fields, more := dec.DecodeRowFields(fieldNames...)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return errors.Format(path, fmt.Sprintf("feature %d is not a polygon", row), nil)
		}
		if src != wgs {
			if poly, err = transformSR(poly, src, wgs); err != nil {
				return err
			}
		}
		if err := fn(poly, fields); err != nil {
			return err
		}
	}
	if err := dec.Error(); err != nil {
		return errors.Format(path, "cannot decode shapefile", err)
	}
	return nil
}
