package cmd

import (
	"fmt"
	"strconv"

	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <slot>",
	Short: "Delete the face stored in a slot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		slot, err := strconv.Atoi(args[0])
		if err != nil {
			utils.Die("Invalid slot", err, nil)
		}

		rec, _ := Faces.Get(slot)
		if err := Faces.Delete(cmd.Context(), slot); err != nil {
			utils.Die("Failed to delete face", err, nil)
		}
		fmt.Printf("🗑️  Deleted '%s' from slot %d\n", rec.Name, slot)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
