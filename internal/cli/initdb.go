package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/internal/schema"
	"github.com/movierank-dev/movierank/internal/ui"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var initCmd = &cobra.Command{
	Use:   "init [database]",
	Short: "Create the database and schema",
	Long: `Init creates the target database (if missing) and the movierank schema:
the vector and pg_search extensions, the movies, users, ratings and tags
tables, the HNSW vector indexes and the BM25 search index.

Running init on an existing schema is a no-op; every statement uses
IF NOT EXISTS. Use --drop to start over.

Examples:
  # Create database and schema
  movierank init movies

  # Recreate the schema from scratch (interactive confirmation)
  movierank init movies --drop

  # Recreate without prompting (CI/CD)
  movierank init -d movies --drop --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initConnFlags connFlagValues
	initDrop      bool
	initForce     bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	registerConnectionFlags(initCmd, &initConnFlags)

	initCmd.Flags().BoolVar(&initDrop, "drop", false,
		"Drop existing movierank tables before creating the schema\n"+
			"Requires interactive confirmation unless --force is used")
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"Skip interactive approval prompt for destructive operations\n"+
			"Use with --drop for CI/CD pipelines")
}

func runInit(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	// The positional database argument is a shorthand for -d.
	if len(args) == 1 {
		if initConnFlags.database != "" && initConnFlags.database != args[0] {
			return fmt.Errorf("conflicting database names %q and %q: %w",
				args[0], initConnFlags.database, movierank.ErrInvalidConfig)
		}
		initConnFlags.database = args[0]
	}

	connConfig, managementDB, err := resolveConnection(&initConnFlags, projectCfg, verbose)
	if err != nil {
		return err
	}
	if err := requireDatabase(connConfig.Database, "init"); err != nil {
		return err
	}

	var configTimeout string
	if projectCfg != nil {
		configTimeout = projectCfg.Timeout
	}
	ctx, cancel, err := commandContext(cmd, configTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	targetDB := connConfig.Database

	// Create the database through the management connection first.
	mgmtConfig := *connConfig
	mgmtConfig.Database = managementDB
	mgmtPool, err := connectPool(ctx, &mgmtConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", movierank.ErrConnectionFailed, err)
	}
	if err := schema.EnsureDatabase(ctx, mgmtPool, targetDB, logger); err != nil {
		mgmtPool.Close()
		return err
	}
	mgmtPool.Close()

	pool, err := connectPool(ctx, connConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", movierank.ErrConnectionFailed, err)
	}
	defer pool.Close()

	manager := schema.NewManager(pool, logger)

	if initDrop {
		exists, err := manager.TablesExist(ctx)
		if err != nil {
			return err
		}
		if exists {
			var approver movierank.Approver
			if initForce {
				approver = ui.NewForcedApprover(verbose)
			} else {
				approver = ui.NewInteractiveApprover(verbose)
			}

			approved, err := approver.RequestApproval(ctx, targetDB)
			if err != nil {
				return fmt.Errorf("approval failed: %w", err)
			}
			if !approved {
				return fmt.Errorf("schema drop not confirmed: %w", movierank.ErrApprovalDenied)
			}

			if err := manager.Drop(ctx); err != nil {
				return err
			}
		}
	}

	if err := manager.Create(ctx); err != nil {
		return err
	}

	logger.Info("Database %q is ready", targetDB)
	return nil
}
