package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/kiosk/internal/config"
	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/logging"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// storeNamespace is the key prefix (badger) or namespace column (postgres)
// of the face blob.
const storeNamespace = "face_storage"

var (
	// Cfg is the loaded configuration shared by subcommands
	Cfg *config.Config
	// Faces is the face store shared by subcommands
	Faces *store.FaceStore

	backend  kv.Store
	cfgPath  string
	dbURL    string
	logLevel string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "kiosk",
	Short:   "Face-recognizing coffee kiosk",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			Cfg.Log.Level = logLevel
		}
		logging.Init(Cfg.Log.Level)

		// --db or the environment switch the face store to PostgreSQL.
		if dbURL == "" {
			dbURL = dsnFromEnv()
		}
		if dbURL != "" {
			Cfg.Store.Backend = "postgres"
			Cfg.Store.DSN = dbURL
		}

		// Use the command's context (which will be cancellable) for the connection
		backend, err = openBackend(cmd.Context(), Cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open face storage: %w", err)
		}
		Faces = store.New(backend, Cfg.Store.Capacity)
		if err := Faces.Load(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load faces: %w", err)
		}
		log.Debug().Str("backend", Cfg.Store.Backend).Int("faces", Faces.Count()).Msg("Face storage ready")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if backend != nil {
			if err := backend.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing face storage failed")
			}
		}
	},
}

// openBackend opens the blob store named by sc.Backend.
func openBackend(ctx context.Context, sc config.StoreConfig) (kv.Store, error) {
	switch sc.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "postgres":
		if sc.DSN == "" {
			return nil, fmt.Errorf("postgres backend needs a connection string (--db or KIOSK_DB)")
		}
		return kv.OpenPostgres(ctx, sc.DSN, storeNamespace)
	default:
		return kv.OpenBadger(kv.BadgerConfig{Path: sc.Path, Namespace: storeNamespace})
	}
}

// dsnFromEnv builds a PostgreSQL connection string from KIOSK_DB or the
// POSTGRES_* variables. Empty when none are set.
func dsnFromEnv() string {
	if dsn := os.Getenv("KIOSK_DB"); dsn != "" {
		return dsn
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "kiosk.yaml", "Path to the YAML configuration (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string; stores faces in PostgreSQL instead of badger")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
}
