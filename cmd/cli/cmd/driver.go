// Package cmd - CLI command: topofetch driver
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"topofetch/core/toolchain"
)

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Write an LSDTopoTools driver file and optionally run the tool",
	Long: `Write a parameter ("driver") file for one of the LSDTopoTools programs:
  ` + strings.Join(toolchain.Tools, "\n  ") + `

With --run the program is started with the driver as its only argument and
its output is forwarded to the log.`,
	RunE: runDriver,
}

var (
	driverTool        string
	driverName        string
	driverReadPath    string
	driverWritePath   string
	driverReadPrefix  string
	driverWritePrefix string
	driverParams      map[string]string
	driverRun         bool
)

func init() {
	rootCmd.AddCommand(driverCmd)

	driverCmd.Flags().StringVarP(&driverTool, "tool", "t", toolchain.DefaultTool, "LSDTopoTools program")
	driverCmd.Flags().StringVarP(&driverName, "name", "n", "Test_01", "driver file name without extension")
	driverCmd.Flags().StringVar(&driverReadPath, "read-path", ".", "directory holding the input grid")
	driverCmd.Flags().StringVar(&driverWritePath, "write-path", ".", "directory for outputs and the driver file")
	driverCmd.Flags().StringVar(&driverReadPrefix, "read-prefix", "", "input grid name without extension")
	driverCmd.Flags().StringVar(&driverWritePrefix, "write-prefix", "", "output name prefix (default: read prefix)")
	driverCmd.Flags().StringToStringVarP(&driverParams, "param", "P", nil, "tool parameter as key=value (repeatable)")
	driverCmd.Flags().BoolVar(&driverRun, "run", false, "run the tool after writing the driver")

	driverCmd.MarkFlagRequired("read-prefix")
}

func runDriver(cmd *cobra.Command, args []string) error {
	params := driverParams
	if len(params) == 0 {
		params = toolchain.DefaultParams()
	}
	writePrefix := driverWritePrefix
	if writePrefix == "" {
		writePrefix = driverReadPrefix
	}

	d := &toolchain.Driver{
		Tool:        driverTool,
		Name:        driverName,
		ReadPath:    driverReadPath,
		WritePath:   driverWritePath,
		ReadPrefix:  driverReadPrefix,
		WritePrefix: writePrefix,
		Params:      params,
	}

	if !driverRun {
		path, err := d.WriteFile()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Driver written to %s\n", path)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := d.Run(ctx, toolchain.ExecRunner{}); err != nil {
		return err
	}
	fmt.Printf("✓ %s finished (driver %s)\n", d.Tool, d.Path())
	return nil
}
