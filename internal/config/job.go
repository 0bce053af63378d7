package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"topofetch/internal/errors"
)

// Job describes a batch of regions to acquire, decoded from an HCL file:
//
//	source       = "COP30"
//	api_key_file = "ot.key"
//	output_dir   = "./Data"
//
//	basins {
//	  shapefile = "hybas_eu_lev08_v1c.shp"
//	  ids       = [2080023010, 2080023020]
//	  prefixes  = ["tay", "earn"]
//	  buffer    = true
//	}
//
//	region "skye" {
//	  south = 57.0
//	  north = 57.7
//	  west  = -6.8
//	  east  = -5.6
//	}
type Job struct {
	Source       string        `hcl:"source,optional"`
	APIKeyFile   string        `hcl:"api_key_file,optional"`
	OutputDir    string        `hcl:"output_dir,optional"`
	MinElevation *float64      `hcl:"min_elevation,optional"`
	Hillshade    *bool         `hcl:"hillshade,optional"`
	Basins       *BasinsBlock  `hcl:"basins,block"`
	Regions      []RegionBlock `hcl:"region,block"`
}

// BasinsBlock selects drainage basins from a polygon shapefile
type BasinsBlock struct {
	Shapefile     string   `hcl:"shapefile"`
	IDField       string   `hcl:"id_field,optional"`
	AreaField     string   `hcl:"area_field,optional"`
	IDs           []string `hcl:"ids"`
	Prefixes      []string `hcl:"prefixes,optional"`
	Buffer        bool     `hcl:"buffer,optional"`
	Union         bool     `hcl:"union,optional"`
	IntersectWith string   `hcl:"intersect_with,optional"`
}

// RegionBlock is an explicit bounding box processed as one geometry
type RegionBlock struct {
	Name    string  `hcl:"name,label"`
	South   float64 `hcl:"south"`
	North   float64 `hcl:"north"`
	West    float64 `hcl:"west"`
	East    float64 `hcl:"east"`
	Padding float64 `hcl:"padding,optional"`
	Prefix  string  `hcl:"prefix,optional"`
}

// LoadJob decodes an HCL (or HCL-JSON) job file and fills defaults from the app config.
func LoadJob(path string, app *Config) (*Job, error) {
	var job Job
	if err := hclsimple.DecodeFile(path, nil, &job); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "invalid job file", err).WithContext("path", path)
	}

	if job.Source == "" {
		job.Source = app.OpenTopography.DefaultSource
	}
	if job.APIKeyFile == "" {
		job.APIKeyFile = app.OpenTopography.APIKeyFile
	}
	if job.OutputDir == "" {
		job.OutputDir = app.Output.Directory
	}
	if job.MinElevation == nil {
		v := app.Output.MinElevation
		job.MinElevation = &v
	}
	if job.Hillshade == nil {
		v := app.Output.Hillshade
		job.Hillshade = &v
	}

	if job.Basins == nil && len(job.Regions) == 0 {
		return nil, errors.Configuration("job file %s declares no basins and no regions", path)
	}
	if b := job.Basins; b != nil {
		if b.IDField == "" {
			b.IDField = "HYBAS_ID"
		}
		if b.AreaField == "" {
			b.AreaField = "SUB_AREA"
		}
		if len(b.IDs) == 0 {
			return nil, errors.Configuration("basins block in %s lists no ids", path)
		}
	}
	return &job, nil
}
