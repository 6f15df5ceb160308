package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/kiosk/internal/recognition"
	"github.com/andresmejia3/kiosk/internal/sim"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/andresmejia3/kiosk/internal/worker"
	"github.com/spf13/cobra"
)

var recognizeAs string

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image_path]",
	Short: "Match a face against the stored faces",
	Long: `Runs the detector on an image and matches the face against the store,
exactly as the kiosk does for a sampled camera frame. --as <name> skips the
image and uses the synthetic feature of that name instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		var cands []types.Candidate
		switch {
		case recognizeAs != "":
			f := sim.Embedding(recognizeAs)
			cands = []types.Candidate{{Vec: f[:], Score: 1}}
		case len(args) == 1:
			var err error
			if cands, err = detectImage(cmd.Context(), args[0]); err != nil {
				utils.ShowError("Face detection failed", err, nil)
				return err
			}
		default:
			return errors.New("an image path or --as <name> is required")
		}
		runRecognize(cands)
		return nil
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeAs, "as", "", "Use the synthetic face of this name instead of an image")
	rootCmd.AddCommand(recognizeCmd)
}

// detectImage runs the Python detector on an image file.
func detectImage(ctx context.Context, path string) ([]types.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	buf := make([]byte, width*height*2)
	n, err := utils.PackRGB565(buf, img, width, height)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	// We use ID 0 for this ad-hoc worker
	pw, err := worker.NewPythonWorker(0, Cfg.Recognition.WorkerCmd)
	if err != nil {
		return nil, err
	}
	defer pw.Close()

	cands, err := pw.ProcessFrame(types.Frame{Data: buf[:n], Width: width, Height: height})
	if err != nil {
		utils.ShowError("Python worker failed", err, pw.Cmd)
		return nil, err
	}
	return cands, nil
}

func runRecognize(cands []types.Candidate) {
	matcher := recognition.NewMatcher(Cfg.Recognition.Matcher, Cfg.Recognition.MatchThreshold)
	slot := matcher.Match(cands, Faces)

	switch {
	case slot >= 0:
		rec, _ := Faces.Get(slot)
		fmt.Printf("COFFEE_FOR: %s\n", rec.Name)
		fmt.Fprintf(os.Stderr, "✅ Recognized '%s' (slot %d)\n", rec.Name, slot)
	case slot == types.MatchUnknown:
		fmt.Fprintln(os.Stderr, "❓ Unknown face")
		if Faces.IsFull() {
			fmt.Fprintln(os.Stderr, "⚠️  Face storage is full, the kiosk would not offer enrollment")
		}
	default:
		fmt.Fprintln(os.Stderr, "🙈 No usable face found")
		return
	}

	if Cfg.Recognition.Matcher != "cosine" {
		return
	}
	var probe []float32
	for _, c := range cands {
		if len(c.Vec) == types.FeatureSize {
			probe = c.Vec
			break
		}
	}
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SLOT\tNAME\tDISTANCE")
	for _, e := range Faces.Entries() {
		fmt.Fprintf(w, "%d\t%s\t%.3f\n", e.Slot, e.Name, utils.CosineDist(probe, e.Feature[:]))
	}
	w.Flush()
}
