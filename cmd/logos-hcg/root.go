package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c-daly/logos/internal/config"
	"github.com/c-daly/logos/internal/graph"
	"github.com/c-daly/logos/internal/hcg"
	"github.com/c-daly/logos/internal/observability"
	"github.com/c-daly/logos/internal/shacl"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
	log *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "logos-hcg",
	Short: "Logos HCG - hybrid causal graph access tooling",
	Long: `logos-hcg inspects and exercises the shared hybrid causal graph:
backend health probes, bounded graph snapshots and offline shape validation
of candidate deltas.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.NewLoader(config.NewValidator()).Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	cfg = loaded
	log = observability.NewLogger(os.Stderr, cfg.Logging.Level)
	return nil
}

// connectEngine dials the backend and builds an engine over it. The returned
// cleanup closes the pool and the driver.
func connectEngine(ctx context.Context) (*hcg.Engine, func(), error) {
	client, err := graph.NewNeo4jClient(cfg.GraphConfig())
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}

	vocab, err := hcg.LoadVocabulary()
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}

	engine := hcg.NewEngine(client, cfg.RetryPolicy(), vocab, log)
	cleanup := func() { _ = client.Close(context.WithoutCancel(ctx)) }
	return engine, cleanup, nil
}

// shapeRegistry loads the configured shape set, falling back to the embedded
// default shapes when no path is configured.
func shapeRegistry() (*shacl.Registry, error) {
	if cfg.Validation.ShapesPath != "" {
		return shacl.LoadRegistry(cfg.Validation.ShapesPath)
	}
	return hcg.DefaultShapeRegistry()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(validateCmd)
}
