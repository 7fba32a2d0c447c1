package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/embeddings"
	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var loadEmbeddingsCmd = &cobra.Command{
	Use:   "load-embeddings <embeddings_csv>",
	Short: "Load generated embeddings into the movies table",
	Long: `Load-embeddings reads an embeddings.csv produced by the embed command
and writes the vectors into movies.content_embedding.

Vectors are staged through a temp table and merged in batches; each batch
commits on its own, so a failed batch is logged and skipped while the rest
of the file still loads. The command finishes with a coverage report.

Examples:
  movierank load-embeddings embeddings.csv -d movies
  movierank load-embeddings embeddings.csv -d movies --batch-size 5000`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadEmbeddings,
}

var (
	loadEmbConnFlags connFlagValues
	loadEmbBatchSize int
)

func init() {
	rootCmd.AddCommand(loadEmbeddingsCmd)
	registerConnectionFlags(loadEmbeddingsCmd, &loadEmbConnFlags)

	loadEmbeddingsCmd.Flags().IntVar(&loadEmbBatchSize, "batch-size", movierank.DefaultLoadBatchSize,
		"Number of vectors staged per merge batch")
}

func runLoadEmbeddings(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	connConfig, _, err := resolveConnection(&loadEmbConnFlags, projectCfg, verbose)
	if err != nil {
		return err
	}
	if err := requireDatabase(connConfig.Database, "load-embeddings"); err != nil {
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

	loader, err := embeddings.NewLoader(pool, logger, loadEmbBatchSize)
	if err != nil {
		return err
	}

	summary, err := loader.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading embeddings failed: %w", err)
	}
	if summary.FailedBatches > 0 {
		logger.Error("%d batches failed; re-run load-embeddings to retry them", summary.FailedBatches)
	}

	stats, err := loader.Verify(ctx)
	if err != nil {
		return err
	}
	logger.Info("Coverage: %d of %d movies have embeddings", stats.WithVector, stats.Total)
	for i, id := range stats.SampleMovies {
		logger.Verbose("  movie %d: %d dimensions", id, stats.SampleDims[i])
	}

	return nil
}
