package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/ingest"
	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <data_dir>",
	Short: "Load MovieLens CSV files into the database",
	Long: `Ingest loads a MovieLens dataset directory into the database.

Expected files:
  movies.csv    required  (movieId, title, genres)
  ratings.csv   required  (userId, movieId, rating, timestamp)
  links.csv     optional  (movieId, imdbId, tmdbId) merged into movies
  tags.csv      optional  (userId, movieId, tag, timestamp)

Every load is an upsert keyed on the natural primary keys, so re-running
ingest refreshes existing rows instead of duplicating them. Rows are staged
through session temp tables and merged in batches.

Examples:
  movierank ingest ./ml-latest-small -d movies
  movierank ingest ./ml-latest -d movies --batch-size 50000 --skip-tags`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestConnFlags connFlagValues
	ingestBatchSize int
	ingestSkipTags  bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	registerConnectionFlags(ingestCmd, &ingestConnFlags)

	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", movierank.DefaultIngestBatchSize,
		"Number of CSV rows staged per merge batch")
	ingestCmd.Flags().BoolVar(&ingestSkipTags, "skip-tags", false,
		"Skip tags.csv even when present")
}

func runIngest(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	connConfig, _, err := resolveConnection(&ingestConnFlags, projectCfg, verbose)
	if err != nil {
		return err
	}
	if err := requireDatabase(connConfig.Database, "ingest"); err != nil {
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

	pool, err := connectPool(ctx, connConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", movierank.ErrConnectionFailed, err)
	}
	defer pool.Close()

	ingester, err := ingest.NewIngester(pool, logger, movierank.IngestConfig{
		DataDir:   args[0],
		BatchSize: ingestBatchSize,
		SkipTags:  ingestSkipTags,
		Verbose:   verbose,
	})
	if err != nil {
		return err
	}

	summary, err := ingester.IngestAll(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	logger.Info("Ingestion complete (run %s)", summary.RunID)
	logger.Info("  Movies:  %d", summary.Movies)
	logger.Info("  Users:   %d", summary.Users)
	logger.Info("  Ratings: %d", summary.Ratings)
	logger.Info("  Tags:    %d", summary.Tags)
	return nil
}
