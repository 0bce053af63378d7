// Package cmd - CLI command: topofetch sources
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"topofetch/core/catalog"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the datasets that can be fetched",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATASET\tRESOLUTION\tAPI KEY\tENDPOINT")
		for _, name := range catalog.Names() {
			d, err := catalog.Resolve(name)
			if err != nil {
				return err
			}
			res := "-"
			if d.ResolutionMeters > 0 {
				res = fmt.Sprintf("%gm", d.ResolutionMeters)
			}
			key := ""
			if d.RequiresCredential {
				key = "required"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, res, key, d.Kind)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
