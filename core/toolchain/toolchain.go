// Package toolchain writes LSDTopoTools driver files and runs the command-line tools.
package toolchain

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"topofetch/internal/errors"
	"topofetch/internal/logging"
)

// Tools lists the command-line programs a driver may target
var Tools = []string{
	"lsdtt-basic-metrics",
	"lsdtt-channel-extraction",
	"lsdtt-chi-mapping",
	"lsdtt-cosmo-tool",
	"lsdtt-hillslope-channel-coupling",
}

// DefaultTool is the only tool exercised end to end upstream
const DefaultTool = "lsdtt-basic-metrics"

// Runner executes a tool. ExecRunner is the real one.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs tools from PATH
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, tool string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Driver is one parameter file plus the tool that consumes it
type Driver struct {
	Tool        string
	Name        string
	ReadPath    string
	WritePath   string
	ReadPrefix  string
	WritePrefix string
	Params      map[string]string
}

// DefaultParams are written when a driver is created without parameters
func DefaultParams() map[string]string {
	return map[string]string{
		"write_hillshade": "true",
		"remove_seas":     "true",
	}
}

// Validate checks the tool against the allow-list and the names against empty values
func (d *Driver) Validate() error {
	known := false
	for _, t := range Tools {
		if d.Tool == t {
			known = true
			break
		}
	}
	if !known {
		return errors.Configuration("unknown toolchain program %q (known: %s)", d.Tool, strings.Join(Tools, ", "))
	}
	if d.Name == "" {
		return errors.Configuration("driver name is empty")
	}
	if d.ReadPrefix == "" || d.WritePrefix == "" {
		return errors.Configuration("driver %s needs both read and write prefixes", d.Name)
	}
	for k := range d.Params {
		if strings.ContainsAny(k, ":\n") {
			return errors.Configuration("invalid parameter name %q", k)
		}
	}
	return nil
}

// Path is where WriteFile puts the driver
func (d *Driver) Path() string {
	return filepath.Join(d.writePath(), d.Name+".driver")
}

func (d *Driver) writePath() string {
	if d.WritePath == "" {
		return "."
	}
	return d.WritePath
}

func (d *Driver) readPath() string {
	if d.ReadPath == "" {
		return "."
	}
	return d.ReadPath
}

// Render returns the driver file contents. Parameters are sorted by key.
func (d *Driver) Render() string {
	var b strings.Builder
	b.WriteString("# This is an LSDTopoTools driver file written by topofetch\n\n")
	b.WriteString("# File locations\n")
	b.WriteString("read path: " + withSlash(d.readPath()) + "\n")
	b.WriteString("write path: " + withSlash(d.writePath()) + "\n")
	b.WriteString("read fname: " + d.ReadPrefix + "\n")
	b.WriteString("write fname: " + d.WritePrefix + "\n")
	b.WriteString("\n# Parameters\n")

	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + ": " + d.Params[k] + "\n")
	}
	return b.String()
}

// the tools concatenate path and file name without a separator
func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

// WriteFile validates d and writes it, creating the write path when missing
func (d *Driver) WriteFile() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	if d.ReadPath != "" {
		if _, err := os.Stat(d.ReadPath); err != nil {
			logging.Named("toolchain").Warn("read path does not exist; the tool will fail", zap.String("read_path", d.ReadPath))
		}
	}
	if err := os.MkdirAll(d.writePath(), 0755); err != nil {
		return "", errors.Internal("cannot create write path", err).WithContext("path", d.writePath())
	}
	path := d.Path()
	if err := os.WriteFile(path, []byte(d.Render()), 0644); err != nil {
		return "", errors.Internal("cannot write driver file", err).WithContext("path", path)
	}
	return path, nil
}

// Run writes the driver and runs the tool with it as the only argument.
// Tool output is forwarded to the log line by line.
func (d *Driver) Run(ctx context.Context, r Runner) error {
	path, err := d.WriteFile()
	if err != nil {
		return err
	}

	log := logging.Named("toolchain").With(zap.String("tool", d.Tool), zap.String("driver", path))
	stdout := &zapio.Writer{Log: log, Level: zapcore.InfoLevel}
	stderr := &zapio.Writer{Log: log, Level: zapcore.WarnLevel}
	defer stdout.Close()
	defer stderr.Close()

	log.Info("running toolchain")
	if err := r.Run(ctx, d.Tool, []string{path}, stdout, stderr); err != nil {
		return errors.Toolchain(d.Tool, "tool exited with an error", err).WithContext("driver", path)
	}
	log.Info("toolchain finished")
	return nil
}
