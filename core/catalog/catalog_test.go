package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topofetch/internal/errors"
)

// TestAliasesFoldToCanonical proves aliases resolve to the same descriptor as their target
func TestAliasesFoldToCanonical(t *testing.T) {
	tests := []struct {
		alias     string
		canonical string
	}{
		{"SRTM30", "SRTMGL1"},
		{"SRTM90", "SRTMGL3"},
		{"alos", "AW3D30"},
		{"otCatalog", "otcatalog"},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			a, err := Resolve(tt.alias)
			require.NoError(t, err)
			c, err := Resolve(tt.canonical)
			require.NoError(t, err)
			assert.Equal(t, c, a)
		})
	}
}

func TestResolutions(t *testing.T) {
	tests := map[string]float64{
		"SRTMGL1":      30,
		"SRTMGL3":      90,
		"COP90":        90,
		"SRTM15Plus":   500,
		"GEBCOIceTopo": 500,
		"GEDI_L3":      1000,
		"USGS10m":      10,
		"USGS1m":       1,
		"AW3D30":       30,
		"COP30":        30,
	}
	for name, want := range tests {
		d, err := Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.ResolutionMeters, name)
	}
}

func TestCredentialRequirement(t *testing.T) {
	cop, err := Resolve("COP30")
	require.NoError(t, err)
	assert.True(t, cop.RequiresCredential)

	alos, err := Resolve("AW3D30")
	require.NoError(t, err)
	assert.False(t, alos.RequiresCredential)
}

// TestMissingCredentialNeverSubstitutes proves a credentialed dataset fails instead of falling back
func TestMissingCredentialNeverSubstitutes(t *testing.T) {
	d, err := Resolve("COP30")
	require.NoError(t, err)

	err = RequireCredential(d, false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeCredential))
	assert.Equal(t, "COP30", d.Name)

	assert.NoError(t, RequireCredential(d, true))

	free, _ := Resolve("AW3D30")
	assert.NoError(t, RequireCredential(free, false))
}

func TestKinds(t *testing.T) {
	usgs, err := Resolve("USGS10m")
	require.NoError(t, err)
	assert.Equal(t, KindUSGSDEM, usgs.Kind)

	cat, err := Resolve("otCatalog")
	require.NoError(t, err)
	assert.Equal(t, KindCatalog, cat.Kind)
	assert.False(t, cat.IsRaster())
}

func TestUnknownDataset(t *testing.T) {
	_, err := Resolve("MARS_MOLA")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
	assert.Contains(t, err.Error(), "COP30")
}
