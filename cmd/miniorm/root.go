package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"miniorm/internal/config"
	"miniorm/internal/logging"
	"miniorm/internal/softuni"
	"miniorm/pkg/observability"
	"miniorm/pkg/orm"
	"miniorm/pkg/store"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// app carries the state shared by the subcommands of one invocation.
type app struct {
	envFiles []string
	cfg      config.Config
	logger   *slog.Logger
	metrics  observability.Exporter
	db       *store.DB
}

// run executes one CLI invocation and releases the database afterwards.
func run(args []string, stdout, stderr io.Writer, envFiles []string) error {
	a := &app{envFiles: envFiles}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close()
	return root.Execute()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "miniorm",
		Short:        "Manage the sample company database",
		Long:         "miniorm loads the departments, employees and projects of the sample company\nand saves changes back in one transaction. Every flag can also be set as\nMINIORM_<FLAG> in the environment or in .env files.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.finish(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.initCmd(),
		a.seedCmd(),
		a.showCmd(),
		a.hireCmd(),
		a.fireCmd(),
		a.statsCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags(), a.envFiles...)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if cfg.Metrics != "" {
		if a.metrics, err = observability.NewExporter(cfg.Metrics); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) finish(cmd *cobra.Command) error {
	if a.metrics != nil {
		return a.metrics.WriteText(cmd.OutOrStdout())
	}
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
	a.db = nil
}

func (a *app) store() (*store.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(a.cfg.Driver, a.cfg.DSN, store.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database opened", "driver", a.cfg.Driver, "dialect", db.Dialect().Name())
	a.db = db
	return db, nil
}

func (a *app) open(ctx context.Context) (*softuni.Context, error) {
	db, err := a.store()
	if err != nil {
		return nil, err
	}
	opts := []orm.Option{orm.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, orm.WithMetrics(a.metrics))
	}
	return softuni.Open(ctx, db, opts...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "miniorm v%s\n", Version)
			return err
		},
	}
}
