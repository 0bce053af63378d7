// Package cmd - CLI command: topofetch fetch
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"topofetch/core/bbox"
	"topofetch/core/catalog"
	"topofetch/core/normalize"
	"topofetch/core/pipeline"
	"topofetch/internal/config"
	"topofetch/internal/errors"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download one DEM and convert it for LSDTopoTools",
	Long: `Download a DEM for a bounding box and prepare it in three stages:
  1. FETCH       - Download a GeoTIFF from OpenTopography
  2. REPROJECT   - Warp it to the UTM zone of the box centre (cubic)
  3. NORMALIZE   - Write an ENVI .bil grid, masking low cells, plus a hillshade

The box is given either by its edges or by two corners as "lat,lon".`,
	RunE: runFetch,
}

var (
	fetchSource        string
	fetchSouth         float64
	fetchNorth         float64
	fetchWest          float64
	fetchEast          float64
	fetchLowerLeft     string
	fetchUpperRight    string
	fetchPadding       float64
	fetchPrefix        string
	fetchDir           string
	fetchKeyFile       string
	fetchResolution    float64
	fetchMinElevation  float64
	fetchNoMask        bool
	fetchNoHillshade   bool
	fetchRemoveGeoTIFF bool
	fetchJSON          bool
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchSource, "source", "s", "", "dataset name or alias (see 'topofetch sources')")
	fetchCmd.Flags().Float64Var(&fetchSouth, "south", 0, "southern edge in decimal degrees")
	fetchCmd.Flags().Float64Var(&fetchNorth, "north", 0, "northern edge in decimal degrees")
	fetchCmd.Flags().Float64Var(&fetchWest, "west", 0, "western edge in decimal degrees")
	fetchCmd.Flags().Float64Var(&fetchEast, "east", 0, "eastern edge in decimal degrees")
	fetchCmd.Flags().StringVar(&fetchLowerLeft, "lower-left", "", "lower-left corner as lat,lon (overrides edges)")
	fetchCmd.Flags().StringVar(&fetchUpperRight, "upper-right", "", "upper-right corner as lat,lon (overrides edges)")
	fetchCmd.Flags().Float64Var(&fetchPadding, "padding", 0, "degrees added to every edge")
	fetchCmd.Flags().StringVarP(&fetchPrefix, "prefix", "p", "", "output file prefix")
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "o", "", "output directory (default from config)")
	fetchCmd.Flags().StringVar(&fetchKeyFile, "api-key-file", "", "file holding the OpenTopography API key")
	fetchCmd.Flags().Float64Var(&fetchResolution, "resolution", 0, "target cell size in metres (default: dataset resolution)")
	fetchCmd.Flags().Float64Var(&fetchMinElevation, "min-elevation", 0, "mask cells below this elevation (default from config)")
	fetchCmd.Flags().BoolVar(&fetchNoMask, "no-mask", false, "keep cells below the minimum elevation")
	fetchCmd.Flags().BoolVar(&fetchNoHillshade, "no-hillshade", false, "skip the hillshade grid")
	fetchCmd.Flags().BoolVar(&fetchRemoveGeoTIFF, "remove-geotiff", false, "delete the projected GeoTIFF after conversion")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the result as JSON")

	fetchCmd.MarkFlagRequired("prefix")
}

func parseLatLon(s string) (*bbox.LatLon, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, errors.Configuration("corner %q is not lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, errors.Configuration("corner %q has a bad latitude", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, errors.Configuration("corner %q has a bad longitude", s)
	}
	return &bbox.LatLon{Lat: lat, Lon: lon}, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	ctx, cancel := signalContext()
	defer cancel()

	name := fetchSource
	if name == "" {
		name = cfg.OpenTopography.DefaultSource
	}
	source, err := catalog.Resolve(name)
	if err != nil {
		return err
	}

	ll, err := parseLatLon(fetchLowerLeft)
	if err != nil {
		return err
	}
	ur, err := parseLatLon(fetchUpperRight)
	if err != nil {
		return err
	}
	spec, err := bbox.Choose(bbox.ByEdges{South: fetchSouth, North: fetchNorth, West: fetchWest, East: fetchEast}, ll, ur)
	if err != nil {
		return err
	}
	box, err := bbox.Resolve(spec, fetchPadding)
	if err != nil {
		return err
	}

	keyFile := fetchKeyFile
	if keyFile == "" {
		keyFile = cfg.OpenTopography.APIKeyFile
	}
	token, err := loadToken(keyFile, source)
	if err != nil {
		return err
	}

	dir := fetchDir
	if dir == "" {
		dir = cfg.Output.Directory
	}

	opts := normalize.Options{Hillshade: cfg.Output.Hillshade && !fetchNoHillshade, RemoveGeoTIFF: fetchRemoveGeoTIFF}
	if !fetchNoMask {
		floor := cfg.Output.MinElevation
		if cmd.Flags().Changed("min-elevation") {
			floor = fetchMinElevation
		}
		opts.MinElevation = &floor
	}

	m := metrics.New()
	defer writeMetrics(cfg, m)

	if !fetchJSON {
		printHeader("DEM ACQUISITION")
		fmt.Printf("Dataset:    %s (%gm)\n", source.Name, source.ResolutionMeters)
		fmt.Printf("Box:        %s\n", box)
		fmt.Printf("Prefix:     %s\n", fetchPrefix)
		fmt.Printf("Output:     %s\n", dir)
		if !token.Empty() {
			fmt.Printf("API key:    %s\n", token.Redacted())
		}
		fmt.Println("")
	}

	logging.Info("fetch started", zap.String("dataset", source.Name), zap.Stringer("bbox", box), zap.String("prefix", fetchPrefix))
	res, runErr := newPipeline(cfg, m).Run(ctx, pipeline.Request{
		Source:           source,
		Box:              box,
		Token:            token,
		Directory:        dir,
		Prefix:           fetchPrefix,
		ResolutionMeters: fetchResolution,
		Normalize:        opts,
	})
	if runErr == nil && res.State == pipeline.StateNormalized {
		res.State = pipeline.StateDone
	}
	if runErr != nil {
		logging.Error("fetch failed", zap.String("stage", res.FailedAt), zap.Error(runErr))
	}

	var extra []string
	if runErr == nil && res.Normalized != nil {
		extra = extras(cfg, res.Normalized.Path, res.Normalized.HillshadePath, fetchPrefix)
	}

	if fetchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return runErr
	}
	printFetchResult(res, extra)
	return runErr
}

func printFetchResult(res *pipeline.Result, extra []string) {
	fmt.Println(rule)
	if res.State == pipeline.StateDone {
		fmt.Println("✓ DEM READY")
	} else {
		fmt.Printf("✗ FAILED at stage: %s\n", res.FailedAt)
		fmt.Printf("  Error: %s\n", res.Error)
	}
	fmt.Println(rule)
	fmt.Println("")

	fmt.Println("Stages:")
	stages := []struct {
		name string
		done bool
	}{
		{"fetch", res.Fetched != nil},
		{"reproject", res.Projected != nil},
		{"normalize", res.Normalized != nil},
	}
	for _, s := range stages {
		status := "⬜"
		if s.done {
			status = "✓"
		}
		if s.name == res.FailedAt {
			status = "✗"
		}
		fmt.Printf("  %s %s\n", status, s.name)
	}
	fmt.Println("")

	if res.Fetched != nil {
		fmt.Printf("Downloaded:   %s (%d bytes)\n", res.Fetched.Path, res.Fetched.Bytes)
	}
	if res.Projected != nil {
		fmt.Printf("Projected:    %s (EPSG:%d, %gm)\n", res.Projected.Path, res.Projected.EPSG, res.Projected.ResolutionMeters)
	}
	if res.Normalized != nil {
		fmt.Printf("Grid:         %s (%d valid cells)\n", res.Normalized.Path, res.Normalized.ValidCells)
		if res.Normalized.HillshadePath != "" {
			fmt.Printf("Hillshade:    %s\n", res.Normalized.HillshadePath)
		}
	}
	for _, f := range extra {
		fmt.Printf("Also wrote:   %s\n", f)
	}
	fmt.Printf("Duration:     %s\n", res.Duration.Round(1e6))
}
