package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/internal/search"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Personalized movie search",
	Long: `Search runs the personalized hybrid pipeline three times with different
weightings and shows the results side by side:

  BM25 Only     pure full-text relevance (ParadeDB)
  100% Rerank   pure cosine similarity against the user's taste vector
  50/50 Hybrid  equal blend of both normalized scores

The user must exist and have an embedding (run user-embeddings first).

Examples:
  movierank search -q "lord" -u 10001 -d movies
  movierank search -q "king" -u 10002 -d movies --show-scores
  movierank search -q "ring" -u 20001 -d movies --limit 20`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var (
	searchConnFlags  connFlagValues
	searchQuery      string
	searchUserID     int32
	searchLimit      int
	searchShowScores bool
)

func init() {
	rootCmd.AddCommand(searchCmd)
	registerConnectionFlags(searchCmd, &searchConnFlags)

	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "",
		"Search query for movies (e.g. 'lord', 'king', 'ring')")
	searchCmd.Flags().Int32VarP(&searchUserID, "user-id", "u", 0,
		"User ID for personalized recommendations")
	searchCmd.Flags().IntVar(&searchLimit, "limit", movierank.DefaultSearchLimit,
		"Number of candidates retrieved by the BM25 first pass")
	searchCmd.Flags().BoolVarP(&searchShowScores, "show-scores", "s", false,
		"Show the score column in each result table")

	_ = searchCmd.MarkFlagRequired("query")
	_ = searchCmd.MarkFlagRequired("user-id")
}

func runSearch(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	connConfig, _, err := resolveConnection(&searchConnFlags, projectCfg, verbose)
	if err != nil {
		return err
	}
	if err := requireDatabase(connConfig.Database, "search"); err != nil {
		return err
	}

	searchCfg := movierank.SearchConfig{
		Query:      searchQuery,
		UserID:     searchUserID,
		Limit:      searchLimit,
		ShowScores: searchShowScores,
	}
	if err := searchCfg.Validate(); err != nil {
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

	engine := search.NewEngine(pool, logger)

	if err := engine.ValidateUser(ctx, searchCfg.UserID); err != nil {
		return err
	}

	cmp, err := engine.Compare(ctx, searchCfg)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Println(search.RenderHeader(searchCfg.Query, searchCfg.UserID, searchCfg.ShowScores))
	fmt.Println(search.Render(cmp, searchCfg.Limit, searchCfg.ShowScores))
	return nil
}
