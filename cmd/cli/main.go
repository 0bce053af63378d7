// Package main is the entry point for the topofetch CLI.
package main

import (
	"os"

	"topofetch/cmd/cli/cmd"
	"topofetch/internal/logging"
)

func main() {
	err := cmd.Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
