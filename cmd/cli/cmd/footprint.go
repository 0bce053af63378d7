// Package cmd - CLI command: topofetch footprint
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topofetch/core/footprint"
)

var footprintPrefix string

var footprintCmd = &cobra.Command{
	Use:   "footprint GRID.bil",
	Short: "Write a WGS84 footprint shapefile for a grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := footprint.Write(args[0], footprintPrefix)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Footprint written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(footprintCmd)
	footprintCmd.Flags().StringVarP(&footprintPrefix, "prefix", "p", "", "output prefix (default: derived from the grid name)")
}
