package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "movierank",
	Short: "Personalized movie search on PostgreSQL",
	Long: `movierank loads MovieLens data into PostgreSQL and serves personalized
hybrid search: a ParadeDB BM25 first pass re-ranked by pgvector cosine
similarity against per-user taste embeddings.

Typical workflow:
  movierank init -d movies                 # create database and schema
  movierank ingest ./ml-latest -d movies   # load movies, ratings, tags
  movierank embed ./ml-latest/movies.csv   # generate content embeddings
  movierank load-embeddings embeddings.csv -d movies
  movierank user-embeddings -d movies      # derive user taste vectors
  movierank search -q "lord" -u 10001 -d movies

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - User denied drop approval
  13 - SQL execution failed
  14 - Input CSV file not found
  15 - Embeddings API request failed`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for movierank")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().Duration("timeout", 0,
		"Catastrophic failure protection timeout (0 = no limit)\n"+
			"Prevents indefinite hangs from network issues or deadlocks\n"+
			"Examples: 30s, 5m, 1h30m")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

// commandContext builds the run context for a command: the --timeout flag
// (falling back to the movierank.yaml timeout) bounds the whole run, and
// SIGINT/SIGTERM cancel it for graceful shutdown.
func commandContext(cmd *cobra.Command, configTimeout string) (context.Context, context.CancelFunc, error) {
	flags := cmd.Root().PersistentFlags()
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return nil, nil, fmt.Errorf("could not get timeout flag: %w", err)
	}

	if !flags.Changed("timeout") && configTimeout != "" {
		parsed, parseErr := time.ParseDuration(configTimeout)
		if parseErr != nil {
			return nil, nil, fmt.Errorf("invalid timeout in movierank.yaml: %w", parseErr)
		}
		timeout = parsed
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel, nil
}
