package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/config"
	"github.com/ndewijer/portfolio-rebalancer/internal/database"
	"github.com/ndewijer/portfolio-rebalancer/internal/logging"
	"github.com/ndewijer/portfolio-rebalancer/internal/selector"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/version"
)

// app holds the global flags and the state opened for a command.
type app struct {
	dbPath   string
	userID   string
	logLevel string

	cfg      *config.Config
	logger   *log.Logger
	db       *sql.DB
	services *service.Services
}

// run executes the command line args and releases the database afterwards.
func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "portfolioctl",
		Short:         "Portfolio rebalancing and performance tool",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path of the SQLite database (defaults to DB_PATH)")
	root.PersistentFlags().StringVarP(&a.userID, "user", "u", middleware.DefaultUserID, "User whose portfolio is read")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (defaults to LOG_LEVEL)")

	root.AddCommand(
		newMigrateCmd(a),
		newRebalanceCmd(a),
		newPerformanceCmd(a),
		newLotsCmd(a),
		newVerifyCmd(a),
		newSnapshotCmd(a),
		newAccountCmd(a),
		newHoldingCmd(a),
		newPriceCmd(a),
	)
	return root
}

// open loads the configuration and opens the database. Unless migrate is
// set, a database with pending migrations is refused.
func (a *app) open(cmd *cobra.Command, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log.Level, cmd.ErrOrStderr())

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	a.db = db

	if !migrate {
		current, pending, err := database.SchemaStatus(cmd.Context(), db)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("database schema is at version %d with pending migrations, run 'portfolioctl migrate'", current)
		}
	}

	rates := selector.Rates{
		ShortTerm:    cfg.Engine.Tax.ShortTermRate,
		LongTerm:     cfg.Engine.Tax.LongTermRate,
		LongTermDays: cfg.Engine.Tax.LongTermDays,
	}
	a.services = service.NewServices(db, rates, cfg.Engine.Performance.BenchmarkTicker, a.logger)
	a.logger.Debug().Str("path", cfg.Database.Path).Str("user_id", a.userID).Msg("Opened database")
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

// withServices adapts a command body that needs an opened database.
func (a *app) withServices(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(cmd, false); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd, true); err != nil {
				return err
			}
			applied, err := database.Migrate(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			a.logger.Info().Int64("schema_version", applied).Msg("Migrated database")
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d\n", applied)
			return nil
		},
	}
}
