package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/config"
	"github.com/movierank-dev/movierank/internal/embeddings"
	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var embedCmd = &cobra.Command{
	Use:   "embed <data_dir | movies_csv>",
	Short: "Generate movie content embeddings",
	Long: `Embed formats each movie as "Title (Year). Genres: ..." and sends the
texts in batches to an OpenAI-compatible embeddings API, writing the
resulting vectors to an embeddings.csv file for load-embeddings.

The API key is read from $OPENROUTER_API_KEY (never from a flag).
Rate-limit and server errors are retried with exponential backoff; a
short pause between batches keeps the request rate polite.

Examples:
  movierank embed ./ml-latest
  movierank embed ./ml-latest/movies.csv -o vectors.csv --limit 1000
  movierank embed ./ml-latest --base-url http://localhost:8080/v1`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

var (
	embedOutput    string
	embedLimit     int
	embedBatchSize int
	embedBaseURL   string
	embedModel     string
)

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "embeddings.csv",
		"Output CSV file for the generated embeddings")
	embedCmd.Flags().IntVar(&embedLimit, "limit", 0,
		"Embed only the first N movies (0 = all)")
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", 0,
		fmt.Sprintf("Number of texts sent per API request (default %d, or movierank.yaml)",
			movierank.DefaultEmbeddingBatchSize))
	embedCmd.Flags().StringVar(&embedBaseURL, "base-url", "",
		fmt.Sprintf("Embeddings API base URL (default %s, or movierank.yaml)",
			movierank.DefaultEmbeddingBaseURL))
	embedCmd.Flags().StringVar(&embedModel, "model", "",
		fmt.Sprintf("Embedding model identifier (default %s, or movierank.yaml)",
			movierank.DefaultEmbeddingModel))
}

func runEmbed(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("$OPENROUTER_API_KEY is not set: %w\n"+
			"The embeddings API key must come from the environment:\n"+
			"  export OPENROUTER_API_KEY=sk-...", movierank.ErrInvalidConfig)
	}

	baseURL, model, batchSize := resolveEmbeddingSettings(projectCfg)

	var configTimeout string
	if projectCfg != nil {
		configTimeout = projectCfg.Timeout
	}
	ctx, cancel, err := commandContext(cmd, configTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	client := embeddings.NewClient(baseURL, apiKey, model, logger)
	generator, err := embeddings.NewGenerator(client, logger, batchSize, embedLimit)
	if err != nil {
		return err
	}

	// Accept either a dataset directory or a direct movies.csv path.
	moviesCSV := args[0]
	if info, statErr := os.Stat(moviesCSV); statErr == nil && info.IsDir() {
		moviesCSV = filepath.Join(moviesCSV, "movies.csv")
	}

	written, err := generator.Generate(ctx, moviesCSV, embedOutput)
	if err != nil {
		return fmt.Errorf("embedding generation failed after %d movies: %w", written, err)
	}

	return nil
}

// resolveEmbeddingSettings applies precedence: flag > movierank.yaml > default.
func resolveEmbeddingSettings(projectCfg *config.ProjectConfig) (baseURL, model string, batchSize int) {
	baseURL = embedBaseURL
	model = embedModel
	batchSize = embedBatchSize

	if projectCfg != nil {
		if baseURL == "" {
			baseURL = projectCfg.Embedding.BaseURL
		}
		if model == "" {
			model = projectCfg.Embedding.Model
		}
		if batchSize == 0 {
			batchSize = projectCfg.Embedding.BatchSize
		}
	}

	if baseURL == "" {
		baseURL = movierank.DefaultEmbeddingBaseURL
	}
	if model == "" {
		model = movierank.DefaultEmbeddingModel
	}
	if batchSize == 0 {
		batchSize = movierank.DefaultEmbeddingBatchSize
	}
	return baseURL, model, batchSize
}
