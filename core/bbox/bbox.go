// Package bbox resolves geographic bounding boxes for elevation requests.
package bbox

import (
	"fmt"

	"topofetch/internal/errors"
)

// LatLon is a WGS84 coordinate pair in decimal degrees
type LatLon struct {
	Lat float64
	Lon float64
}

// Spec is the user-facing description of an area: either edges or corners.
// Exactly one of the implementations below is used per request.
type Spec interface {
	edges() (south, north, west, east float64)
}

// ByEdges gives the four edges directly
type ByEdges struct {
	South, North, West, East float64
}

func (e ByEdges) edges() (float64, float64, float64, float64) {
	return e.South, e.North, e.West, e.East
}

// ByCorners gives the lower-left and upper-right corners
type ByCorners struct {
	LowerLeft  LatLon
	UpperRight LatLon
}

func (c ByCorners) edges() (float64, float64, float64, float64) {
	return c.LowerLeft.Lat, c.UpperRight.Lat, c.LowerLeft.Lon, c.UpperRight.Lon
}

// Choose returns corners when both corner pairs are present, otherwise edges.
// Corner input wins over edges when a caller supplies both; a lone corner is an error.
func Choose(edges ByEdges, lowerLeft, upperRight *LatLon) (Spec, error) {
	switch {
	case lowerLeft != nil && upperRight != nil:
		return ByCorners{LowerLeft: *lowerLeft, UpperRight: *upperRight}, nil
	case lowerLeft != nil:
		return nil, errors.Configuration("lower-left corner given without an upper-right corner")
	case upperRight != nil:
		return nil, errors.Configuration("upper-right corner given without a lower-left corner")
	}
	return edges, nil
}

// Box is a validated, padded bounding box
type Box struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Resolve pads spec on every edge and validates the result.
// An inverted or degenerate box is a configuration error; it is never retried.
func Resolve(spec Spec, padding float64) (Box, error) {
	if spec == nil {
		return Box{}, errors.Configuration("no bounding box given")
	}
	if padding < 0 {
		return Box{}, errors.Configuration("padding must not be negative, got %g", padding)
	}

	s, n, w, e := spec.edges()
	b := Box{
		South: s - padding,
		North: n + padding,
		West:  w - padding,
		East:  e + padding,
	}
	if err := b.Validate(); err != nil {
		return Box{}, err
	}
	return b, nil
}

// Validate checks edge ordering and coordinate ranges
func (b Box) Validate() error {
	if b.West >= b.East {
		return errors.Configuration("west edge %g is not west of east edge %g", b.West, b.East)
	}
	if b.South >= b.North {
		return errors.Configuration("south edge %g is not south of north edge %g", b.South, b.North)
	}
	if b.South < -90 || b.North > 90 {
		return errors.Configuration("latitudes %g..%g outside [-90, 90]", b.South, b.North)
	}
	if b.West < -180 || b.East > 180 {
		return errors.Configuration("longitudes %g..%g outside [-180, 180]", b.West, b.East)
	}
	return nil
}

// Centroid is the midpoint of the box
func (b Box) Centroid() LatLon {
	return LatLon{
		Lat: (b.South + b.North) / 2,
		Lon: (b.West + b.East) / 2,
	}
}

// LowerLeft returns the south-west corner
func (b Box) LowerLeft() LatLon { return LatLon{Lat: b.South, Lon: b.West} }

// UpperRight returns the north-east corner
func (b Box) UpperRight() LatLon { return LatLon{Lat: b.North, Lon: b.East} }

func (b Box) String() string {
	return fmt.Sprintf("S=%g N=%g W=%g E=%g", b.South, b.North, b.West, b.East)
}
