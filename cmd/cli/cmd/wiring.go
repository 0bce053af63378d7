package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"topofetch/core/catalog"
	"topofetch/core/credential"
	"topofetch/core/fetch"
	"topofetch/core/footprint"
	"topofetch/core/grid"
	"topofetch/core/normalize"
	"topofetch/core/pipeline"
	"topofetch/core/preview"
	"topofetch/core/raster"
	"topofetch/core/reproject"
	"topofetch/internal/config"
	"topofetch/internal/logging"
	"topofetch/internal/metrics"
)

const rule = "═══════════════════════════════════════════════════════════════"

// newPipeline wires the HTTP client, GDAL warper and grid writer
func newPipeline(cfg *config.Config, m *metrics.Metrics) *pipeline.Pipeline {
	client := fetch.NewClient(fetch.Config{
		BaseURL:     cfg.OpenTopography.BaseURL,
		HTTPTimeout: cfg.OpenTopography.HTTPTimeout(),
		Metrics:     m,
	})
	return pipeline.New(
		client,
		reproject.New(raster.Warper{}, m),
		normalize.New(raster.ReadGrid, m),
		m,
	)
}

// loadToken requires a key file only for datasets that need one
func loadToken(path string, d catalog.Descriptor) (credential.Token, error) {
	if d.RequiresCredential {
		return credential.Load(path)
	}
	return credential.LoadOptional(path)
}

// signalContext is cancelled on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func writeMetrics(cfg *config.Config, m *metrics.Metrics) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logging.Warn("cannot write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
	}
}

// extras writes the optional preview PNG and footprint shapefile for a finished grid
func extras(cfg *config.Config, gridPath, hillshadePath, prefix string) []string {
	var files []string
	if cfg.Output.Footprint {
		p, err := footprint.Write(gridPath, prefix)
		if err != nil {
			logging.Warn("cannot write footprint", zap.String("grid", gridPath), zap.Error(err))
		} else {
			files = append(files, p)
		}
	}
	if cfg.Output.Preview {
		dem, err := grid.Read(gridPath)
		if err != nil {
			logging.Warn("cannot read grid for preview", zap.Error(err))
			return files
		}
		var hs *grid.Grid
		if hillshadePath != "" {
			if hs, err = grid.Read(hillshadePath); err != nil {
				logging.Warn("cannot read hillshade for preview", zap.Error(err))
			}
		}
		p := strings.TrimSuffix(gridPath, grid.Extension) + ".png"
		if err := preview.Write(dem, hs, p, preview.DefaultOptions()); err != nil {
			logging.Warn("cannot write preview", zap.Error(err))
		} else {
			files = append(files, p)
		}
	}
	return files
}

func printHeader(title string) {
	fmt.Println("")
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ %-60s ║\n", title)
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println("")
}
