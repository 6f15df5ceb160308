package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/andresmejia3/kiosk/internal/config"
	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/andresmejia3/kiosk/internal/sim"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/termui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// simulateOptions configure a simulated session.
type simulateOptions struct {
	Visitors []string
	Timeout  time.Duration
	Fast     bool
	Persist  bool
	Verbose  bool
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a queue of visitors against a headless kiosk",
	Long: `Runs the full kiosk with a synthetic camera and detector. Each visitor opens
the camera and starts Face ID: known faces get coffee, unknown faces enroll
under their name, and visitors who get nothing before --timeout leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := validateSimulateOptions(&simOpts); err != nil {
			return err
		}
		rep, err := runSimulate(cmd.Context(), simOpts, Cfg, Faces, os.Stdout)
		if err != nil {
			return err
		}
		rep.print(os.Stdout)
		return rep.metrics.WriteSummary(os.Stderr)
	},
}

func init() {
	simulateCmd.Flags().StringSliceVarP(&simOpts.Visitors, "visitors", "v", nil, "Visitor names in arrival order (e.g. alice,bob,alice)")
	simulateCmd.Flags().DurationVarP(&simOpts.Timeout, "timeout", "t", 10*time.Second, "How long a visitor waits before leaving")
	simulateCmd.Flags().BoolVarP(&simOpts.Fast, "fast", "f", false, "Shrink the overlay and camera timings")
	simulateCmd.Flags().BoolVar(&simOpts.Persist, "persist", false, "Enroll into the configured face store instead of a scratch copy")
	simulateCmd.Flags().BoolVar(&simOpts.Verbose, "verbose", false, "Render the screens while simulating")

	simulateCmd.MarkFlagRequired("visitors")
	rootCmd.AddCommand(simulateCmd)
}

func validateSimulateOptions(opts *simulateOptions) error {
	var names []string
	for _, v := range opts.Visitors {
		if v = strings.TrimSpace(v); v != "" {
			names = append(names, v)
		}
	}
	if len(names) == 0 {
		return errors.New("at least one visitor is required")
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", opts.Timeout)
	}
	opts.Visitors = names
	return nil
}

type visit struct {
	Name    string
	Outcome sim.Outcome
	Took    time.Duration
}

type simReport struct {
	visits  []visit
	counts  map[sim.Outcome]int
	metrics *metrics.Metrics
}

// runSimulate plays opts.Visitors against a kiosk built from cfg. Unless
// opts.Persist is set, faces is copied into a scratch store first.
func runSimulate(ctx context.Context, opts simulateOptions, cfg *config.Config, faces *store.FaceStore, out io.Writer) (*simReport, error) {
	sc := *cfg
	sc.Camera.Driver = "synthetic"
	sc.Recognition.Detector = "synthetic"
	if opts.Fast {
		sc.Camera.Width, sc.Camera.Height = 64, 48
		sc.Camera.FPS = 200
		sc.Overlay.Tick = 10 * time.Millisecond
		sc.UI.Tick = time.Millisecond
	}

	if !opts.Persist {
		scratch := store.New(kv.NewMemory(), faces.Capacity())
		for _, e := range faces.Entries() {
			if _, err := scratch.EnrollWithFeature(ctx, e.Name, e.Feature); err != nil {
				return nil, err
			}
		}
		faces = scratch
	}

	screen := io.Discard
	if opts.Verbose {
		screen = out
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	k := newKiosk(ctx, &sc, faces, termui.NewTerminal(screen, 0), out)

	bar := progressbar.NewOptions(len(opts.Visitors),
		progressbar.OptionSetDescription("☕ Simulating visitors"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	rep := &simReport{counts: map[sim.Outcome]int{}, metrics: k.Metrics}
	runner := &sim.Runner{Loop: k.Loop, Ctrl: k.Ctrl, Scene: k.Scene, Timeout: opts.Timeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := k.Loop.Run(gctx, sc.UI.Tick); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		for _, name := range opts.Visitors {
			start := time.Now()
			outcome, err := runner.Visit(gctx, name)
			if err != nil {
				return fmt.Errorf("visitor %s: %w", name, err)
			}
			rep.visits = append(rep.visits, visit{Name: name, Outcome: outcome, Took: time.Since(start)})
			rep.counts[outcome]++
			bar.Add(1)
		}
		return nil
	})

	err := g.Wait()
	bar.Finish()
	if cerr := k.shutdown(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *simReport) print(w io.Writer) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "#\tVISITOR\tOUTCOME\tTOOK")
	fmt.Fprintln(tw, "-\t-------\t-------\t----")
	for i, v := range r.visits {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, v.Name, v.Outcome, v.Took.Round(time.Millisecond))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n🏁 Simulation Complete. %d served, %d enrolled, %d turned away.\n",
		r.counts[sim.Served], r.counts[sim.Enrolled], r.counts[sim.TurnedAway])
}
