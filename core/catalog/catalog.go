// Package catalog maps dataset names to their upstream identity.
package catalog

import (
	"sort"
	"strings"

	"topofetch/internal/errors"
)

// Kind selects the endpoint family a dataset is served from
type Kind string

const (
	// KindGlobalDEM is served by /globaldem?demtype=
	KindGlobalDEM Kind = "global_dem"

	// KindUSGSDEM is served by /usgsdem?datasetName=
	KindUSGSDEM Kind = "usgs_dem"

	// KindCatalog is the dataset listing at /otCatalog; it returns JSON, not a raster
	KindCatalog Kind = "catalog"
)

// Descriptor is the resolved, immutable identity of a dataset
type Descriptor struct {
	Name               string  `json:"name"`
	ResolutionMeters   float64 `json:"resolution_m"`
	RequiresCredential bool    `json:"requires_credential"`
	Kind               Kind    `json:"kind"`
}

// IsRaster reports whether fetching the dataset yields a GeoTIFF
func (d Descriptor) IsRaster() bool {
	return d.Kind != KindCatalog
}

const defaultResolution = 30

var aliases = map[string]string{
	"srtm30":    "SRTMGL1",
	"srtm90":    "SRTMGL3",
	"alos":      "AW3D30",
	"otcatalog": "otcatalog",
}

var resolutions = map[string]float64{
	"SRTMGL3":         90,
	"COP90":           90,
	"SRTM15Plus":      500,
	"GEBCOIceTopo":    500,
	"GEBCOSubIceTopo": 500,
	"GEDI_L3":         1000,
	"USGS10m":         10,
	"USGS1m":          1,
}

var credentialed = map[string]bool{
	"NASADEM":         true,
	"COP30":           true,
	"COP90":           true,
	"EU_DTM":          true,
	"GEDI_L3":         true,
	"GEBCOIceTopo":    true,
	"GEBCOSubIceTopo": true,
	"USGS30m":         true,
	"USGS10m":         true,
	"USGS1m":          true,
}

var kinds = map[string]Kind{
	"SRTMGL3":         KindGlobalDEM,
	"SRTMGL1":         KindGlobalDEM,
	"SRTMGL1_E":       KindGlobalDEM,
	"AW3D30":          KindGlobalDEM,
	"AW3D30_E":        KindGlobalDEM,
	"SRTM15Plus":      KindGlobalDEM,
	"NASADEM":         KindGlobalDEM,
	"COP30":           KindGlobalDEM,
	"COP90":           KindGlobalDEM,
	"EU_DTM":          KindGlobalDEM,
	"GEDI_L3":         KindGlobalDEM,
	"GEBCOIceTopo":    KindGlobalDEM,
	"GEBCOSubIceTopo": KindGlobalDEM,
	"USGS30m":         KindUSGSDEM,
	"USGS10m":         KindUSGSDEM,
	"USGS1m":          KindUSGSDEM,
	"otcatalog":       KindCatalog,
}

// Resolve folds aliases and looks up the descriptor for name.
func Resolve(name string) (Descriptor, error) {
	canonical := strings.TrimSpace(name)
	if a, ok := aliases[strings.ToLower(canonical)]; ok {
		canonical = a
	}

	kind, ok := kinds[canonical]
	if !ok {
		return Descriptor{}, errors.Configuration("unknown dataset %q (known: %s)", name, strings.Join(Names(), ", "))
	}

	res, ok := resolutions[canonical]
	if !ok {
		res = defaultResolution
	}
	if kind == KindCatalog {
		res = 0
	}

	return Descriptor{
		Name:               canonical,
		ResolutionMeters:   res,
		RequiresCredential: credentialed[canonical],
		Kind:               kind,
	}, nil
}

// RequireCredential fails when d needs a token and none was configured.
// The requested dataset is never swapped for another one.
func RequireCredential(d Descriptor, haveToken bool) error {
	if d.RequiresCredential && !haveToken {
		return errors.Credential("dataset "+d.Name+" requires an OpenTopography API key; supply one with --api-key-file", nil).
			WithContext("dataset", d.Name)
	}
	return nil
}

// Names lists the canonical dataset names
func Names() []string {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
