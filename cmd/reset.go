package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetFaces bool
	resetDB    bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (stored faces, database table)",
	Long:  "Clears all data. By default, it frees every face slot. Use --drop-table to also drop the PostgreSQL table.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing the faces
		if !resetFaces && !resetDB {
			resetFaces = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetFaces {
			if resetYes || confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to forget all %d stored faces?", Faces.Count())) {
				fmt.Println("🗑️  Clearing Faces...")
				if err := Faces.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset faces", err, nil)
				}
			}
		}

		if resetDB {
			pg, ok := backend.(*kv.Postgres)
			if !ok {
				utils.Die("Database reset needs the postgres backend", fmt.Errorf("backend is %s", Cfg.Store.Backend), nil)
			}
			if resetYes || confirm(reader, "⚠️  Are you sure you want to DROP the face table?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := pg.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetFaces, "faces", false, "Free every face slot")
	resetCmd.Flags().BoolVar(&resetDB, "drop-table", false, "Drop the PostgreSQL face table")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
