package region

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"

	"topofetch/core/bbox"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

func parseSR(def string) (*proj.SR, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "invalid spatial reference", err).WithContext("proj4", def)
	}
	return sr, nil
}

func transformSR(p geom.Polygonal, from, to *proj.SR) (geom.Polygonal, error) {
	t, err := from.NewTransform(to)
	if err != nil {
		return nil, errors.Internal("cannot build coordinate transform", err)
	}
	g, err := p.Transform(t)
	if err != nil {
		return nil, errors.Internal("coordinate transform failed", err)
	}
	out, ok := g.(geom.Polygonal)
	if !ok {
		return nil, errors.Internal("transform did not return a polygon", nil)
	}
	return out, nil
}

func transform(p geom.Polygonal, from, to string) (geom.Polygonal, error) {
	if from == to {
		return p, nil
	}
	src, err := parseSR(from)
	if err != nil {
		return nil, err
	}
	dst, err := parseSR(to)
	if err != nil {
		return nil, err
	}
	return transformSR(p, src, dst)
}

// ToUTM projects a WGS84 polygon into the UTM zone of its own centroid
func ToUTM(wgs geom.Polygonal) (geom.Polygonal, reproject.Zone, error) {
	c := wgs.Centroid()
	zone := reproject.ZoneFor(c.Y, c.X)
	p, err := transform(wgs, reproject.WGS84Proj4, zone.Proj4())
	if err != nil {
		return nil, zone, err
	}
	return p, zone, nil
}

// InZone returns g's shape projected into zone
func (g Geometry) InZone(zone reproject.Zone) (geom.Polygonal, error) {
	if g.Zone == zone {
		return g.Shape, nil
	}
	return transform(g.Shape, g.Zone.Proj4(), zone.Proj4())
}

// Envelope is g's bounding box in geographic coordinates
func (g Geometry) Envelope() (bbox.Box, error) {
	wgs, err := transform(g.Shape, g.Zone.Proj4(), reproject.WGS84Proj4)
	if err != nil {
		return bbox.Box{}, err
	}
	b := wgs.Bounds()
	box := bbox.Box{South: b.Min.Y, North: b.Max.Y, West: b.Min.X, East: b.Max.X}
	if err := box.Validate(); err != nil {
		return bbox.Box{}, err
	}
	return box, nil
}

// densePolygon traces a geographic box with intermediate vertices so it keeps
// its shape once projected
func densePolygon(b bbox.Box, steps int) geom.Polygon {
	dx := (b.East - b.West) / float64(steps)
	dy := (b.North - b.South) / float64(steps)
	ring := make(geom.Path, 0, 4*steps+1)
	for i := 0; i < steps; i++ {
		ring = append(ring, geom.Point{X: b.West + float64(i)*dx, Y: b.South})
	}
	for i := 0; i < steps; i++ {
		ring = append(ring, geom.Point{X: b.East, Y: b.South + float64(i)*dy})
	}
	for i := 0; i < steps; i++ {
		ring = append(ring, geom.Point{X: b.East - float64(i)*dx, Y: b.North})
	}
	for i := 0; i < steps; i++ {
		ring = append(ring, geom.Point{X: b.West, Y: b.North - float64(i)*dy})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

