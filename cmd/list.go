package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored faces",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList() {
	entries := Faces.Entries()
	if len(entries) == 0 {
		fmt.Println("No faces stored.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SLOT\tNAME\tFEATURE")
	fmt.Fprintln(w, "----\t----\t-------")

	for _, e := range entries {
		feature := "yes"
		if e.Feature.IsZero() {
			feature = "no"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.Slot, e.Name, feature)
	}
	w.Flush()
	fmt.Printf("\n%d of %d slots used\n", Faces.Count(), Faces.Capacity())
}
