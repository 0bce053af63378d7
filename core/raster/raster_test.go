package raster

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/core/grid"
	"topofetch/core/reproject"
	"topofetch/internal/errors"
)

func writeTIFF(t *testing.T, bands int) string {
	t.Helper()
	Register()
	path := filepath.Join(t.TempDir(), "dem.tif")

	ds, err := godal.Create(godal.GTiff, path, bands, godal.Float32, 3, 2)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{500000, 30, 0, 6270000, 0, -30}))

	b := ds.Bands()[0]
	require.NoError(t, b.SetNoData(-32768))
	require.NoError(t, b.Write(0, 0, []float32{1, 2, 3, 4, -32768, 6}, 3, 2))
	require.NoError(t, ds.Close())
	return path
}

func TestReadGrid(t *testing.T) {
	zone := reproject.Zone{Number: 30, North: true}
	g, err := ReadGrid(writeTIFF(t, 1), zone)
	require.NoError(t, err)

	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 30.0, g.CellSize)
	assert.Equal(t, 500000.0, g.West)
	assert.Equal(t, 6270000.0, g.North)
	assert.Equal(t, zone, g.Zone)
	assert.Equal(t, []float32{1, 2, 3, 4, grid.NoData, 6}, g.Data)
}

func TestReadGridRejectsMultiBand(t *testing.T) {
	_, err := ReadGrid(writeTIFF(t, 3), reproject.Zone{Number: 30, North: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeFormat))
	assert.Contains(t, err.Error(), "dem.tif")
}

func TestReadGridMissingFile(t *testing.T) {
	_, err := ReadGrid(filepath.Join(t.TempDir(), "absent.tif"), reproject.Zone{Number: 30, North: true})
	assert.True(t, errors.IsType(err, errors.TypeFormat))
}
