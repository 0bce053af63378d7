package region

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/core/bbox"
	"topofetch/core/grid"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

func TestBufferRadius(t *testing.T) {
	tests := []struct {
		area float64
		want float64
	}{
		{50, 2000},
		{99.9, 2000},
		{100, 2500},
		{10000, 25000},
		{15625, 31250},
		{15626, 25000},
		{20000, 25000},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, BufferRadius(tt.area), 1e-9, "area %g", tt.area)
	}
}

func boxSet(t *testing.T, boxes map[string]bbox.Box, order ...string) *Set {
	t.Helper()
	s := &Set{}
	for _, name := range order {
		require.NoError(t, s.AddBox(name, name, boxes[name]))
	}
	return s
}

func TestAddBoxProjectsIntoOwnZone(t *testing.T) {
	s := boxSet(t, map[string]bbox.Box{
		"skye":  {South: 57.2, North: 57.3, West: -6.3, East: -6.1},
		"table": {South: -34.0, North: -33.9, West: 18.4, East: 18.5},
	}, "skye", "table")

	assert.Equal(t, reproject.Zone{Number: 29, North: true}, s.Geometries[0].Zone)
	assert.Equal(t, reproject.Zone{Number: 34, North: false}, s.Geometries[1].Zone)
	assert.InDelta(t, 134, s.Geometries[0].AreaKm2, 10)

	env, err := s.Geometries[0].Envelope()
	require.NoError(t, err)
	assert.InDelta(t, 57.2, env.South, 1e-3)
	assert.InDelta(t, -6.1, env.East, 1e-3)
}

func TestAddRejectsDuplicatePrefix(t *testing.T) {
	s := &Set{}
	b := bbox.Box{South: 57.2, North: 57.3, West: -6.3, East: -6.1}
	require.NoError(t, s.AddBox("a", "same", b))
	err := s.AddBox("b", "same", b)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

// TestBufferGrowsByRadius proves a small basin grows by roughly 2 km on every side
func TestBufferGrowsByRadius(t *testing.T) {
	s := boxSet(t, map[string]bbox.Box{"glen": {South: 56.60, North: 56.65, West: -5.0, East: -4.95}}, "glen")
	orig := s.Geometries[0].Shape
	ob := orig.Bounds()
	require.Less(t, s.Geometries[0].AreaKm2, 100.0)

	s.Buffer()
	buf := s.Geometries[0].Shape
	bb := buf.Bounds()

	assert.Greater(t, buf.Area(), orig.Area())
	assert.InDelta(t, ob.Min.X-2000, bb.Min.X, 150)
	assert.InDelta(t, ob.Max.X+2000, bb.Max.X, 150)
	assert.InDelta(t, ob.Min.Y-2000, bb.Min.Y, 150)
	assert.InDelta(t, ob.Max.Y+2000, bb.Max.Y, 150)

	c := orig.Centroid()
	assert.NotEqual(t, geom.Outside, c.Within(buf))
}

func TestUnionMergesIntoOneGeometry(t *testing.T) {
	s := boxSet(t, map[string]bbox.Box{
		"a": {South: 56.60, North: 56.65, West: -5.00, East: -4.95},
		"b": {South: 56.60, North: 56.65, West: -4.95, East: -4.90},
	}, "a", "b")
	total := s.Geometries[0].AreaKm2 + s.Geometries[1].AreaKm2

	require.NoError(t, s.Union(""))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "a", s.Geometries[0].Prefix)
	assert.Equal(t, "a+b", s.Geometries[0].ID)
	assert.InEpsilon(t, total, s.Geometries[0].AreaKm2, 0.02)

	require.NoError(t, s.Union("both"))
	assert.Equal(t, "both", s.Geometries[0].Prefix)
}

func TestIntersectDropsEmptyResults(t *testing.T) {
	s := boxSet(t, map[string]bbox.Box{
		"near": {South: 56.60, North: 56.70, West: -5.00, East: -4.90},
		"far":  {South: 10.00, North: 10.10, West: 20.00, East: 20.10},
	}, "near", "far")
	mask := boxSet(t, map[string]bbox.Box{
		"mask": {South: 56.65, North: 56.80, West: -5.00, East: -4.90},
	}, "mask")
	before := s.Geometries[0].AreaKm2

	require.NoError(t, s.Intersect(mask))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "near", s.Geometries[0].Prefix)
	assert.InEpsilon(t, before/2, s.Geometries[0].AreaKm2, 0.05)
}

// TestClipMasksOutsideCells proves cells with centres outside the polygon become no-data
func TestClipMasksOutsideCells(t *testing.T) {
	g := grid.New(10, 10, 1, 0, 10, reproject.Zone{Number: 30, North: true})
	for i := range g.Data {
		g.Data[i] = 7
	}
	tri := geom.Polygon{{{X: 0, Y: 0}, {X: 10.2, Y: 0}, {X: 0, Y: 10.2}, {X: 0, Y: 0}}}

	out, err := Clip(g, tri)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Cols)
	assert.Equal(t, 10, out.Rows)
	assert.Equal(t, 55, out.Valid())
	assert.True(t, out.IsNoData(out.At(9, 0)))
	assert.False(t, out.IsNoData(out.At(0, 9)))
}

func TestClipCropsToExtent(t *testing.T) {
	g := grid.New(10, 10, 1, 0, 10, reproject.Zone{Number: 30, North: true})
	for i := range g.Data {
		g.Data[i] = 1
	}
	sq := geom.Polygon{{{X: 2, Y: 2}, {X: 6, Y: 2}, {X: 6, Y: 7}, {X: 2, Y: 7}, {X: 2, Y: 2}}}

	out, err := Clip(g, sq)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Cols)
	assert.Equal(t, 5, out.Rows)
	assert.Equal(t, 2.0, out.West)
	assert.Equal(t, 7.0, out.North)
	assert.Equal(t, 20, out.Valid())

	far := geom.Polygon{{{X: 50, Y: 50}, {X: 60, Y: 50}, {X: 60, Y: 60}, {X: 50, Y: 50}}}
	_, err = Clip(g, far)
	assert.True(t, errors.IsType(err, errors.TypeFormat))
}
