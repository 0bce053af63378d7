package normalize

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/core/catalog"
	"topofetch/core/grid"
	"topofetch/core/reproject"
)

var zone30 = reproject.Zone{Number: 30, North: true}

func plane(cols, rows int, cell float64, z func(x, y float64) float32) *grid.Grid {
	g := grid.New(cols, rows, cell, 400000, 6300000, zone30)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := g.CellCenter(c, r)
			g.Set(c, r, z(x-g.West, y-g.South()))
		}
	}
	return g
}

// TestHillshadeFlatPlaneIsUniform proves every interior cell of a flat surface gets the same shade
func TestHillshadeFlatPlaneIsUniform(t *testing.T) {
	g := plane(6, 5, 30, func(x, y float64) float32 { return 250 })
	hs := Hillshade(g, DefaultAzimuth, DefaultAltitude)

	want := float32(255 * (math.Sin(math.Pi/4) + 1) / 2)
	for r := 1; r < g.Rows-1; r++ {
		for c := 1; c < g.Cols-1; c++ {
			assert.InDelta(t, want, hs.At(c, r), 1e-3)
		}
	}
	assert.True(t, hs.IsNoData(hs.At(0, 0)))
	assert.Equal(t, g.West, hs.West)
	assert.Equal(t, g.North, hs.North)
	assert.Equal(t, g.CellSize, hs.CellSize)
}

// TestHillshadeKnownSlope proves an east-rising (west-facing) plane of gradient 1 matches the closed form
func TestHillshadeKnownSlope(t *testing.T) {
	g := plane(5, 5, 10, func(x, y float64) float32 { return float32(x) })
	hs := Hillshade(g, DefaultAzimuth, DefaultAltitude)

	// gradient a=1 eastwards: sin(slope)=cos(slope)=1/sqrt2, aspect=-pi/2
	a := 1.0
	alt := math.Pi / 4
	az := 315 * math.Pi / 180
	shade := (math.Sin(alt) + math.Cos(alt)*a*math.Cos(az+math.Pi/2)) / math.Sqrt(1+a*a)
	want := 255 * (shade + 1) / 2

	assert.InDelta(t, want, hs.At(2, 2), 1e-3)
	assert.InDelta(t, 236.33, hs.At(2, 2), 0.01)
}

// TestHillshadeFacingDirections proves slopes facing the light are brightest and slopes facing away darkest
func TestHillshadeFacingDirections(t *testing.T) {
	r2 := math.Sqrt2
	tests := []struct {
		name string
		z    func(x, y float64) float32
		want float64
	}{
		{"north", func(x, y float64) float32 { return float32(100 - y) }, 236.33},
		{"south", func(x, y float64) float32 { return float32(y) }, 146.17},
		{"west", func(x, y float64) float32 { return float32(x) }, 236.33},
		{"east", func(x, y float64) float32 { return float32(100 - x) }, 146.17},
		{"northwest", func(x, y float64) float32 { return float32((x - y + 100) / r2) }, 255},
		{"southeast", func(x, y float64) float32 { return float32((y - x + 100) / r2) }, 127.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := Hillshade(plane(5, 5, 10, tt.z), DefaultAzimuth, DefaultAltitude)
			assert.InDelta(t, tt.want, hs.At(2, 2), 0.05)
		})
	}

	lit := Hillshade(plane(5, 5, 10, tests[4].z), DefaultAzimuth, DefaultAltitude).At(2, 2)
	away := Hillshade(plane(5, 5, 10, tests[5].z), DefaultAzimuth, DefaultAltitude).At(2, 2)
	assert.Greater(t, lit, away)
}

func TestHillshadeNoDataPropagates(t *testing.T) {
	g := plane(5, 5, 30, func(x, y float64) float32 { return 100 })
	g.Set(2, 1, grid.NoData)
	hs := Hillshade(g, DefaultAzimuth, DefaultAltitude)

	assert.True(t, hs.IsNoData(hs.At(2, 2)))
	assert.True(t, hs.IsNoData(hs.At(2, 1)))
	assert.False(t, hs.IsNoData(hs.At(3, 3)))
}

func TestMask(t *testing.T) {
	g := grid.New(4, 1, 30, 0, 0, zone30)
	copy(g.Data, []float32{-3, 0, 0.01, 5})

	assert.Equal(t, 2, Mask(g, 0.01))
	assert.Equal(t, []float32{grid.NoData, grid.NoData, 0.01, 5}, g.Data)
}

func TestNormalizeWritesGridAndHillshade(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "glen_AW3D30_UTM.tif")
	require.NoError(t, os.WriteFile(src, []byte("II*\x00"), 0644))

	reader := func(path string, z reproject.Zone) (*grid.Grid, error) {
		assert.Equal(t, src, path)
		g := plane(5, 4, 30, func(x, y float64) float32 { return float32(x / 10) })
		g.Set(0, 0, -20)
		return g, nil
	}

	d, err := catalog.Resolve("AW3D30")
	require.NoError(t, err)
	p := reproject.Projected{Path: src, Directory: dir, Prefix: "glen", Source: d, Zone: zone30, EPSG: 32630, ResolutionMeters: 30}

	min := 0.01
	res, err := New(reader, nil).Normalize(context.Background(), p, Options{MinElevation: &min, Hillshade: true, RemoveGeoTIFF: true})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "glen_AW3D30_UTM.bil"), res.Path)
	assert.Equal(t, filepath.Join(dir, "glen_AW3D30_UTM_hs.bil"), res.HillshadePath)
	assert.Equal(t, 19, res.ValidCells)

	g, err := grid.Read(res.Path)
	require.NoError(t, err)
	assert.True(t, g.IsNoData(g.At(0, 0)))
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			assert.GreaterOrEqual(t, v, float32(0.01))
		}
	}

	_, err = os.Stat(grid.HeaderPath(res.HillshadePath))
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}
