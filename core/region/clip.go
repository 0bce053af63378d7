package region

import (
	"math"

	"github.com/ctessum/geom"

	"topofetch/core/grid"
	"topofetch/internal/errors"
)

// Clip masks every cell whose centre lies outside shape and crops the result to
// the shape's extent. shape must be in g's projection.
func Clip(g *grid.Grid, shape geom.Polygonal) (*grid.Grid, error) {
	b := shape.Bounds()
	col0 := int(math.Floor((b.Min.X - g.West) / g.CellSize))
	col1 := int(math.Ceil((b.Max.X - g.West) / g.CellSize))
	row0 := int(math.Floor((g.North - b.Max.Y) / g.CellSize))
	row1 := int(math.Ceil((g.North - b.Min.Y) / g.CellSize))

	out := g.Crop(col0, row0, col1, row1)
	if out.Cols == 0 || out.Rows == 0 {
		return nil, errors.New(errors.TypeFormat, "geometry does not overlap the grid").
			WithContext("grid_west", g.West).WithContext("grid_north", g.North)
	}

	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			x, y := out.CellCenter(c, r)
			if (geom.Point{X: x, Y: y}).Within(shape) == geom.Outside {
				out.Set(c, r, out.NoData)
			}
		}
	}
	return out, nil
}
