package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/kiosk/internal/sim"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/spf13/cobra"
)

var enrollImage string

var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Store a face under a name",
	Long: `Stores a face in the first free slot. When every slot is used the first
used slot is overwritten, as on the kiosk. The feature comes from --image,
or from the synthetic face of <name> so the simulator can recognize it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]

		feature := sim.Embedding(name)
		if enrollImage != "" {
			cands, err := detectImage(cmd.Context(), enrollImage)
			if err != nil {
				utils.Die("Face detection failed", err, nil)
			}
			if feature, err = bestFeature(cands); err != nil {
				utils.Die("No usable face in image", err, nil)
			}
		}

		var replaced string
		if Faces.IsFull() {
			if e := Faces.Entries(); len(e) > 0 {
				replaced = e[0].Name
			}
		}

		slot, err := Faces.EnrollWithFeature(cmd.Context(), name, feature)
		if err != nil {
			utils.Die("Failed to save face", err, nil)
		}
		if replaced != "" {
			fmt.Fprintf(os.Stderr, "⚠️  Storage full, replaced '%s'\n", replaced)
		}
		fmt.Printf("✅ Stored '%s' in slot %d\n", name, slot)
	},
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollImage, "image", "i", "", "Extract the face from this image with the Python detector")
	rootCmd.AddCommand(enrollCmd)
}

// bestFeature is the feature of the highest scoring face.
func bestFeature(cands []types.Candidate) (types.Feature, error) {
	var f types.Feature
	best := -1
	for i, c := range cands {
		if len(c.Vec) != types.FeatureSize {
			continue
		}
		if best < 0 || c.Score > cands[best].Score {
			best = i
		}
	}
	if best < 0 {
		return f, fmt.Errorf("%d faces, none with a %d-d feature", len(cands), types.FeatureSize)
	}
	copy(f[:], cands[best].Vec)
	return f, nil
}
