// Command lensctl runs the attribution engine against a FunnelLens
// database from a terminal.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/funnellens/funnellens/internal/config"
	"github.com/funnellens/funnellens/internal/pkg/logger"
	"github.com/funnellens/funnellens/internal/repository/postgres"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/ingest"
)

// app is what every subcommand needs.
type app struct {
	engine   *attribution.Service
	importer *ingest.Service
	close    func() error
}

// opener builds the app once flags are parsed.
type opener func(ctx context.Context, g *globalFlags) (*app, error)

type globalFlags struct {
	configPath  string
	databaseURL string
	salt        string
	verbose     bool
}

func main() {
	if err := newRootCmd(openDatabase, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "lensctl",
		Short:         "Content-to-revenue attribution from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logger.WARN
			if g.verbose {
				level = logger.DEBUG
			}
			logger.SetLevel(level)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "config file (YAML)")
	root.PersistentFlags().StringVar(&g.databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	root.PersistentFlags().StringVar(&g.salt, "salt", "", "fan id salt for imports (defaults to FAN_ID_SALT)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		baselineCmd(g, open),
		windowCmd(g, open),
		performanceCmd(g, open),
		reportCmd(g, open),
		attributeFansCmd(g, open),
		importCmd(g, open),
	)
	return root
}

func openDatabase(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := config.LoadFromEnv(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.databaseURL != "" {
		cfg.Database.URL = g.databaseURL
	}
	if g.salt != "" {
		cfg.Ingest.FanIDSalt = g.salt
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return newApp(db, cfg), nil
}

func newApp(db *sql.DB, cfg *config.Config) *app {
	return &app{
		engine: attribution.NewService(postgres.NewAttributionRepo(db),
			attribution.WithBaselineLookback(cfg.Attribution.BaselineLookbackDays)),
		importer: ingest.NewService(postgres.NewIngestRepo(db), cfg.Ingest.FanIDSalt),
		close:    db.Close,
	}
}

// withApp opens the app, runs fn and closes it.
func withApp(cmd *cobra.Command, g *globalFlags, open opener, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx, g)
	if err != nil {
		return err
	}
	if a.close != nil {
		defer a.close()
	}
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
