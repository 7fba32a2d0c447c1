// Package retry provides automatic retry logic with exponential backoff
// for transient database and HTTP failures.
//
// The package supports pluggable error classification and backoff strategies.
// Two classifiers are provided: PostgreSQLErrorClassifier for pgx connection
// and SQLSTATE errors, and HTTPErrorClassifier for embeddings API calls
// (rate limiting and server-side failures).
//
// # Example Usage
//
//	classifier := retry.NewPostgreSQLErrorClassifier()
//	strategy := retry.NewExponentialBackoff(3)
//	executor := retry.NewExecutor(classifier, strategy)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return connectToDatabase(ctx)
//	})
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Use WithOnRetry() to create
// independent configurations per goroutine.
package retry
