package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andresmejia3/kiosk/internal/termui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	metricsAddr string
	reportEvery int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the kiosk in the terminal",
	Long: `Runs the kiosk with a terminal front panel. Type the commands shown on
each screen. With the synthetic detector, "enter <name>" puts someone in
front of the camera and "leave" clears the scene. "quit" exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runKiosk(cmd.Context(), os.Stdin)
	},
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	runCmd.Flags().IntVar(&reportEvery, "report-every", 0, "Print a frame counter every N camera frames (0 = off)")
	rootCmd.AddCommand(runCmd)
}

func runKiosk(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	k := newKiosk(ctx, Cfg, Faces, termui.NewTerminal(os.Stdout, reportEvery), os.Stdout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := k.Loop.Run(gctx, Cfg.UI.Tick); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return handleCommands(gctx, k, readLines(in))
	})
	if metricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, metricsAddr, k) })
	}

	err := g.Wait()
	if cerr := k.shutdown(); cerr != nil {
		log.Warn().Err(cerr).Msg("Kiosk shutdown incomplete")
	}
	fmt.Fprintln(os.Stderr, "👋 Kiosk stopped.")
	return err
}

// readLines scans in on its own goroutine. The channel closes at EOF.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// handleCommands returns on quit, EOF, or when ctx is done.
func handleCommands(ctx context.Context, k *kiosk, lines <-chan string) error {
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(verb) {
		case "":
		case "quit", "exit":
			return nil
		case "enter":
			k.Scene.Enter(strings.TrimSpace(arg))
		case "leave":
			k.Scene.Leave()
		default:
			k.Loop.Post(func() {
				view, _ := k.Ctrl.Navigator().Active()
				if err := termui.Dispatch(k.Ctrl, view, line); err != nil {
					log.Warn().Err(err).Msg("Ignored input")
				}
			})
		}
	}
}

func serveMetrics(ctx context.Context, addr string, k *kiosk) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(k.Metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
