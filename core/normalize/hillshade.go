package normalize

import (
	"math"

	"topofetch/core/grid"
)

const (
	// DefaultAzimuth is the illumination direction in degrees clockwise from north
	DefaultAzimuth = 315.0

	// DefaultAltitude is the illumination elevation above the horizon in degrees
	DefaultAltitude = 45.0
)

// Hillshade computes a 0-255 shaded relief of g lit from azimuth and altitude (degrees).
// Cells without a full set of valid neighbours are no-data.
func Hillshade(g *grid.Grid, azimuth, altitude float64) *grid.Grid {
	out := g.Like()
	if g.Cols < 3 || g.Rows < 3 {
		return out
	}

	az := azimuth * math.Pi / 180
	alt := altitude * math.Pi / 180
	sinAlt, cosAlt := math.Sin(alt), math.Cos(alt)
	step := 2 * g.CellSize

	for r := 1; r < g.Rows-1; r++ {
		for c := 1; c < g.Cols-1; c++ {
			centre := g.At(c, r)
			west, east := g.At(c-1, r), g.At(c+1, r)
			north, south := g.At(c, r-1), g.At(c, r+1)
			if g.IsNoData(centre) || g.IsNoData(west) || g.IsNoData(east) || g.IsNoData(north) || g.IsNoData(south) {
				continue
			}

			// dz/dx positive eastwards, dz/dy positive northwards
			dx := float64(east-west) / step
			dy := float64(north-south) / step

			slope := math.Pi/2 - math.Atan(math.Sqrt(dx*dx+dy*dy))
			// compass bearing of the downslope direction
			aspect := math.Atan2(-dx, -dy)

			shade := sinAlt*math.Sin(slope) + cosAlt*math.Cos(slope)*math.Cos(az-aspect)
			out.Set(c, r, float32(255*(shade+1)/2))
		}
	}
	return out
}
