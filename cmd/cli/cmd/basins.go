// Package cmd - CLI command: topofetch basins
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/core/normalize"
	"topofetch/core/pipeline"
	"topofetch/core/region"
	"topofetch/internal/config"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

var basinsCmd = &cobra.Command{
	Use:   "basins",
	Short: "Acquire one clipped DEM per drainage basin",
	Long: `Run the acquisition pipeline once per geometry declared in an HCL job file.

Each geometry gets its own directory under the output directory. A status
record in that directory lets a re-run skip finished geometries and resume
interrupted ones. A failing geometry does not stop the others.

Example job file:

  source = "COP30"

  basins {
    shapefile = "hybas_eu_lev08_v1c.shp"
    ids       = [2080023010, 2080023020]
    buffer    = true
  }

  region "skye" {
    south = 57.0
    north = 57.7
    west  = -6.8
    east  = -5.6
  }`,
	RunE: runBasins,
}

var (
	basinsJob       string
	basinsKeep      bool
	basinsUnionName string
)

func init() {
	rootCmd.AddCommand(basinsCmd)

	basinsCmd.Flags().StringVarP(&basinsJob, "job", "j", "", "HCL job file")
	basinsCmd.Flags().BoolVar(&basinsKeep, "keep-intermediates", false, "keep the unclipped rasters")
	basinsCmd.Flags().StringVar(&basinsUnionName, "union-prefix", "", "prefix of the merged geometry when the job unions basins")

	basinsCmd.MarkFlagRequired("job")
}

// buildSet loads the job's geometries and applies its geometry operations
func buildSet(job *config.Job) (*region.Set, error) {
	set := &region.Set{}

	if b := job.Basins; b != nil {
		loaded, err := region.LoadShapefile(region.ShapefileQuery{
			Path:      b.Shapefile,
			IDField:   b.IDField,
			AreaField: b.AreaField,
			IDs:       b.IDs,
			Prefixes:  b.Prefixes,
		})
		if err != nil {
			return nil, err
		}
		if b.Buffer {
			loaded.Buffer()
		}
		if b.Union {
			if err := loaded.Union(basinsUnionName); err != nil {
				return nil, err
			}
		}
		if b.IntersectWith != "" {
			mask, err := region.LoadMask(b.IntersectWith)
			if err != nil {
				return nil, err
			}
			if err := loaded.Intersect(mask); err != nil {
				return nil, err
			}
		}
		set.Geometries = append(set.Geometries, loaded.Geometries...)
	}

	for _, r := range job.Regions {
		box, err := bbox.Resolve(bbox.ByEdges{South: r.South, North: r.North, West: r.West, East: r.East}, r.Padding)
		if err != nil {
			return nil, err
		}
		prefix := r.Prefix
		if prefix == "" {
			prefix = r.Name
		}
		if err := set.AddBox(r.Name, prefix, box); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func runBasins(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	ctx, cancel := signalContext()
	defer cancel()

	job, err := config.LoadJob(basinsJob, cfg)
	if err != nil {
		return err
	}
	source, err := catalog.Resolve(job.Source)
	if err != nil {
		return err
	}
	token, err := loadToken(job.APIKeyFile, source)
	if err != nil {
		return err
	}
	set, err := buildSet(job)
	if err != nil {
		return err
	}

	opts := normalize.Options{MinElevation: job.MinElevation, Hillshade: *job.Hillshade}

	m := metrics.New()
	defer writeMetrics(cfg, m)

	printHeader("REGION ACQUISITION")
	fmt.Printf("Job:        %s\n", basinsJob)
	fmt.Printf("Dataset:    %s (%gm)\n", source.Name, source.ResolutionMeters)
	fmt.Printf("Geometries: %d\n", set.Len())
	fmt.Printf("Output:     %s\n", job.OutputDir)
	fmt.Println("")

	driver := region.NewDriver(newPipeline(cfg, m), region.Options{
		Directory:         job.OutputDir,
		Source:            source,
		Token:             token,
		Normalize:         opts,
		KeepIntermediates: basinsKeep,
	}, m)
	logging.Info("region run started", zap.String("job", basinsJob), zap.String("dataset", source.Name), zap.Int("geometries", set.Len()))
	summary := driver.Run(ctx, set)

	byPrefix := make(map[string]region.Geometry, set.Len())
	for _, g := range set.Geometries {
		byPrefix[g.Prefix] = g
	}
	for _, o := range summary.Outcomes {
		if o.State != pipeline.StateDone || !source.IsRaster() {
			continue
		}
		dem := driver.ClippedPath(byPrefix[o.Prefix])
		hs := ""
		if opts.Hillshade {
			hs = normalize.HillshadePath(dem)
		}
		for _, f := range extras(cfg, dem, hs, o.Prefix) {
			logging.Debug("extra output", zap.String("path", f))
		}
	}

	printSummary(summary)
	if err := summary.Err(); err != nil {
		logging.Error("region run finished with failures", zap.Int("failed", summary.Failed), zap.Error(err))
		return err
	}
	return nil
}

func printSummary(s *region.Summary) {
	fmt.Println(rule)
	if s.Failed == 0 {
		fmt.Println("✓ ALL GEOMETRIES PROCESSED")
	} else {
		fmt.Printf("✗ %d GEOMETRIES FAILED\n", s.Failed)
	}
	fmt.Println(rule)
	fmt.Println("")

	for _, o := range s.Outcomes {
		mark := "✓"
		switch o.State {
		case pipeline.StateSkipped:
			mark = "↷"
		case pipeline.StateFailed:
			mark = "✗"
		}
		fmt.Printf("  %s %-24s %-8s %s\n", mark, o.Prefix, o.State, o.Duration.Round(1e6))
		if o.Error != "" {
			fmt.Printf("      %s\n", o.Error)
		}
	}
	fmt.Println("")
	fmt.Printf("Done: %d  Skipped: %d  Failed: %d\n", s.Done, s.Skipped, s.Failed)
}
