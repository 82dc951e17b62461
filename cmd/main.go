package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"

	"geostack_service/internal/config"
	"geostack_service/internal/domain/model"
	"geostack_service/internal/domain/repository"
	"geostack_service/internal/infrastructure/compute"
)

var (
	verbose        bool
	configPath     string
	boundarySource string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "geostack",
	Short: "Assemble multi-source feature stacks and sample them over an AOI",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML run configuration")
	rootCmd.PersistentFlags().StringVar(&boundarySource, "boundary-source", "gaul", "administrative boundary source: gaul, osm or postgis")

	addSampleFlags(sampleCmd)
	rootCmd.AddCommand(sampleCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newBackend opens the remote compute service named by COMPUTE_URL.
func newBackend(env config.Env) (model.ComputeBackend, error) {
	if env.ComputeURL == "" {
		return nil, &model.ConfigurationError{Field: "COMPUTE_URL", Reason: "compute endpoint is not set"}
	}
	return compute.NewHTTPBackend(env.ComputeURL, env.ComputeToken, env.ComputeTimeout), nil
}

// newBoundaries picks the administrative lookup. nil means GAUL on the
// compute backend.
func newBoundaries(env config.Env) (model.BoundarySource, func(), error) {
	switch boundarySource {
	case "", "gaul":
		return nil, func() {}, nil
	case "osm":
		return repository.NewOverpassRepository(env.OverpassURL, 60*time.Second), func() {}, nil
	case "postgis":
		if env.PostgresURL == "" {
			return nil, nil, &model.ConfigurationError{Field: "POSTGRES_URL", Reason: "required for postgis boundaries"}
		}
		repo, err := repository.NewPostgresRepository(env.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.DB().Close() }, nil
	default:
		return nil, nil, &model.ConfigurationError{Field: "boundary-source", Reason: "unknown source " + boundarySource}
	}
}

// newRecorder opens the optional SQL export target named by EXPORT_DSN.
func newRecorder(ctx context.Context, env config.Env) (*repository.SQLSampleRecorder, error) {
	if env.ExportDSN == "" {
		return nil, nil
	}
	return repository.OpenSQLSampleRecorder(ctx, env.ExportDriver, env.ExportDSN)
}
