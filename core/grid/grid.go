// Package grid holds projected elevation grids and their on-disk interchange format.
package grid

import (
	"math"

	"topofetch/core/reproject"
)

// NoData marks cells without a valid elevation
const NoData float32 = -9999

// Grid is a single-band raster on a UTM grid. Rows run north to south.
type Grid struct {
	Cols     int
	Rows     int
	CellSize float64

	// West and North locate the outer corner of the upper-left cell
	West  float64
	North float64

	Zone   reproject.Zone
	NoData float32
	Data   []float32

	// CoordinateSystem is an optional WKT description carried through the header
	CoordinateSystem string
}

// New allocates a grid filled with no-data
func New(cols, rows int, cellSize, west, north float64, zone reproject.Zone) *Grid {
	g := &Grid{
		Cols:     cols,
		Rows:     rows,
		CellSize: cellSize,
		West:     west,
		North:    north,
		Zone:     zone,
		NoData:   NoData,
		Data:     make([]float32, cols*rows),
	}
	for i := range g.Data {
		g.Data[i] = NoData
	}
	return g
}

// Like allocates an empty grid with g's georeferencing
func (g *Grid) Like() *Grid {
	out := New(g.Cols, g.Rows, g.CellSize, g.West, g.North, g.Zone)
	out.NoData = g.NoData
	out.CoordinateSystem = g.CoordinateSystem
	return out
}

func (g *Grid) index(col, row int) int {
	return row*g.Cols + col
}

// At returns the value at (col, row)
func (g *Grid) At(col, row int) float32 {
	return g.Data[g.index(col, row)]
}

// Set stores v at (col, row)
func (g *Grid) Set(col, row int, v float32) {
	g.Data[g.index(col, row)] = v
}

// IsNoData reports whether v is the grid's no-data marker or not a number
func (g *Grid) IsNoData(v float32) bool {
	return v == g.NoData || math.IsNaN(float64(v))
}

// South is the outer southern edge
func (g *Grid) South() float64 {
	return g.North - float64(g.Rows)*g.CellSize
}

// East is the outer eastern edge
func (g *Grid) East() float64 {
	return g.West + float64(g.Cols)*g.CellSize
}

// CellCenter returns the projected coordinate of a cell centre
func (g *Grid) CellCenter(col, row int) (x, y float64) {
	return g.West + (float64(col)+0.5)*g.CellSize, g.North - (float64(row)+0.5)*g.CellSize
}

// Valid counts cells holding data
func (g *Grid) Valid() int {
	n := 0
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			n++
		}
	}
	return n
}

// Crop returns the window [col0, col1) x [row0, row1), clamped to the grid
func (g *Grid) Crop(col0, row0, col1, row1 int) *Grid {
	col0, col1 = clamp(col0, g.Cols), clamp(col1, g.Cols)
	row0, row1 = clamp(row0, g.Rows), clamp(row1, g.Rows)
	if col1 < col0 {
		col1 = col0
	}
	if row1 < row0 {
		row1 = row0
	}

	out := New(col1-col0, row1-row0, g.CellSize,
		g.West+float64(col0)*g.CellSize,
		g.North-float64(row0)*g.CellSize,
		g.Zone)
	out.NoData = g.NoData
	out.CoordinateSystem = g.CoordinateSystem
	for r := row0; r < row1; r++ {
		copy(out.Data[(r-row0)*out.Cols:(r-row0+1)*out.Cols], g.Data[g.index(col0, r):g.index(col1, r)])
	}
	return out
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
