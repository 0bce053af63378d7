// Package region drives the acquisition pipeline once per drainage-basin geometry.
package region

import (
	"math"
	"strings"

	"github.com/ctessum/geom"

	"topofetch/core/bbox"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

// Buffer radius bounds, in metres and square kilometres
const (
	minBufferRadius = 2000.0
	maxBufferRadius = 25000.0
	smallBasinKm2   = 100.0
	largeBasinKm2   = 15625.0

	capSegments = 8
)

// Geometry is one area of interest, projected into the UTM zone of its centroid
type Geometry struct {
	ID      string
	Prefix  string
	Shape   geom.Polygonal
	Zone    reproject.Zone
	AreaKm2 float64
}

// Set is an ordered collection of geometries. Buffer, Union and Intersect
// replace the shapes in place and touch nothing on disk.
type Set struct {
	Geometries []Geometry
}

// Len returns the number of geometries
func (s *Set) Len() int {
	return len(s.Geometries)
}

// Add projects a WGS84 polygon and appends it. A non-positive area is computed from the shape.
func (s *Set) Add(id, prefix string, wgs geom.Polygonal, areaKm2 float64) error {
	if prefix == "" {
		return errors.Configuration("geometry %s has no output prefix", id)
	}
	for _, g := range s.Geometries {
		if g.Prefix == prefix {
			return errors.Configuration("duplicate output prefix %q", prefix)
		}
	}

	shape, zone, err := ToUTM(wgs)
	if err != nil {
		return err
	}
	if areaKm2 <= 0 {
		areaKm2 = shape.Area() / 1e6
	}
	s.Geometries = append(s.Geometries, Geometry{ID: id, Prefix: prefix, Shape: shape, Zone: zone, AreaKm2: areaKm2})
	return nil
}

// AddBox adds a geographic bounding box as a geometry
func (s *Set) AddBox(id, prefix string, b bbox.Box) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.Add(id, prefix, densePolygon(b, 8), 0)
}

// BufferRadius is the area-dependent buffer distance in metres
func BufferRadius(areaKm2 float64) float64 {
	switch {
	case areaKm2 < smallBasinKm2:
		return minBufferRadius
	case areaKm2 > largeBasinKm2:
		return maxBufferRadius
	default:
		return 0.25 * math.Sqrt(areaKm2) * 1000
	}
}

// Buffer grows every geometry by BufferRadius of its area
func (s *Set) Buffer() {
	for i := range s.Geometries {
		g := &s.Geometries[i]
		g.Shape = buffer(g.Shape, BufferRadius(g.AreaKm2))
	}
}

// Union merges the set into a single geometry in the zone of the combined centroid.
// The prefix is the first geometry's unless one is given.
func (s *Set) Union(prefix string) error {
	if len(s.Geometries) == 0 {
		return errors.Configuration("cannot union an empty geometry set")
	}
	if len(s.Geometries) == 1 {
		if prefix != "" {
			s.Geometries[0].Prefix = prefix
		}
		return nil
	}

	zone, err := s.commonZone()
	if err != nil {
		return err
	}

	shapes := make([]geom.Polygonal, 0, len(s.Geometries))
	ids := make([]string, 0, len(s.Geometries))
	for _, g := range s.Geometries {
		p, err := g.InZone(zone)
		if err != nil {
			return err
		}
		shapes = append(shapes, p)
		ids = append(ids, g.ID)
	}

	merged := unionAll(shapes)
	if merged == nil {
		return errors.Internal("union produced no geometry", nil)
	}
	if prefix == "" {
		prefix = s.Geometries[0].Prefix
	}
	s.Geometries = []Geometry{{
		ID:      strings.Join(ids, "+"),
		Prefix:  prefix,
		Shape:   merged,
		Zone:    zone,
		AreaKm2: merged.Area() / 1e6,
	}}
	return nil
}

func (s *Set) commonZone() (reproject.Zone, error) {
	var west, east, south, north float64
	for i, g := range s.Geometries {
		env, err := g.Envelope()
		if err != nil {
			return reproject.Zone{}, err
		}
		if i == 0 {
			west, east, south, north = env.West, env.East, env.South, env.North
			continue
		}
		west, east = math.Min(west, env.West), math.Max(east, env.East)
		south, north = math.Min(south, env.South), math.Max(north, env.North)
	}
	return reproject.ZoneFor((south+north)/2, (west+east)/2), nil
}

// Intersect clips every geometry to the union of other, dropping those left empty
func (s *Set) Intersect(other *Set) error {
	if other == nil || len(other.Geometries) == 0 {
		s.Geometries = nil
		return nil
	}

	kept := s.Geometries[:0]
	for _, g := range s.Geometries {
		mask := make([]geom.Polygonal, 0, len(other.Geometries))
		for _, o := range other.Geometries {
			p, err := o.InZone(g.Zone)
			if err != nil {
				return err
			}
			mask = append(mask, p)
		}

		clipped := g.Shape.Intersection(unionAll(mask))
		if clipped == nil || clipped.Area() <= 0 {
			continue
		}
		g.Shape = clipped
		g.AreaKm2 = clipped.Area() / 1e6
		kept = append(kept, g)
	}
	s.Geometries = kept
	return nil
}

// buffer approximates the Minkowski sum of p and a disc of radius r as the union
// of p with a capsule around every edge of its simplified outline
func buffer(p geom.Polygonal, r float64) geom.Polygonal {
	outline := p
	if simplified, ok := p.Simplify(r / 50).(geom.Polygonal); ok && simplified.Len() > 0 {
		outline = simplified
	}

	var caps []geom.Polygonal
	for _, poly := range outline.Polygons() {
		for _, ring := range poly {
			for i := range ring {
				a, b := ring[i], ring[(i+1)%len(ring)]
				if a == b {
					continue
				}
				caps = append(caps, capsule(a, b, r))
			}
		}
	}
	if len(caps) == 0 {
		return p
	}
	return unionAll(append(caps, p))
}

// capsule is the counter-clockwise outline of all points within r of segment ab
func capsule(a, b geom.Point, r float64) geom.Polygon {
	theta := math.Atan2(b.Y-a.Y, b.X-a.X)
	ring := make(geom.Path, 0, 2*(capSegments+1)+1)
	for i := 0; i <= capSegments; i++ {
		t := theta - math.Pi/2 + math.Pi*float64(i)/capSegments
		ring = append(ring, geom.Point{X: b.X + r*math.Cos(t), Y: b.Y + r*math.Sin(t)})
	}
	for i := 0; i <= capSegments; i++ {
		t := theta + math.Pi/2 + math.Pi*float64(i)/capSegments
		ring = append(ring, geom.Point{X: a.X + r*math.Cos(t), Y: a.Y + r*math.Sin(t)})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

// unionAll merges shapes pairwise so each union works on operands of similar size
func unionAll(shapes []geom.Polygonal) geom.Polygonal {
	for len(shapes) > 1 {
		next := make([]geom.Polygonal, 0, (len(shapes)+1)/2)
		for i := 0; i+1 < len(shapes); i += 2 {
			u := shapes[i].Union(shapes[i+1])
			if u == nil {
				u = shapes[i]
			}
			next = append(next, u)
		}
		if len(shapes)%2 == 1 {
			next = append(next, shapes[len(shapes)-1])
		}
		shapes = next
	}
	if len(shapes) == 0 {
		return nil
	}
	return shapes[0]
}
