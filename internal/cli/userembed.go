package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/embeddings"
	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var userEmbeddingsCmd = &cobra.Command{
	Use:   "user-embeddings",
	Short: "Derive per-user taste embeddings from ratings",
	Long: `User-embeddings computes users.embedding as a weighted average of the
content embeddings of the movies each user rated. Ratings of 4.0 and above
pull the taste vector toward the movie; ratings below 3.0 push it away at
reduced strength. Lukewarm ratings (3.0 to 3.9) are ignored.

The whole computation runs as a single SQL statement inside the database,
so it needs no data transfer and is safe to re-run at any time. Users
without qualifying ratings keep a NULL embedding and are skipped by search.

Examples:
  movierank user-embeddings -d movies`,
	Args: cobra.NoArgs,
	RunE: runUserEmbeddings,
}

var userEmbConnFlags connFlagValues

func init() {
	rootCmd.AddCommand(userEmbeddingsCmd)
	registerConnectionFlags(userEmbeddingsCmd, &userEmbConnFlags)
}

func runUserEmbeddings(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	connConfig, _, err := resolveConnection(&userEmbConnFlags, projectCfg, verbose)
	if err != nil {
		return err
	}
	if err := requireDatabase(connConfig.Database, "user-embeddings"); err != nil {
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

	embedder := embeddings.NewUserEmbedder(pool, logger)

	updated, err := embedder.GenerateAll(ctx)
	if err != nil {
		return fmt.Errorf("user embedding generation failed: %w", err)
	}
	logger.Info("Generated embeddings for %d users", updated)

	stats, err := embedder.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("Coverage: %d of %d users have embeddings", stats.WithVector, stats.Total)

	statuses, err := embedder.VerifyTestUsers(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		switch {
		case !s.Exists:
			logger.Verbose("Test user %d: not present", s.UserID)
		case s.HasVector:
			logger.Info("Test user %d: embedded (%d ratings)", s.UserID, s.RatingCount)
		default:
			logger.Error("Test user %d exists but has no embedding (%d ratings)", s.UserID, s.RatingCount)
		}
	}

	return nil
}
