package movierank

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitApprovalDenied  = 12 // User denied drop approval
	ExitExecutionFailed = 13 // SQL execution failed
	ExitInputMissing    = 14 // Required input file not found
	ExitEmbeddingError  = 15 // Embeddings API request failed
)

const (
	// EmbeddingDim is the dimensionality of all stored vectors.
	// Both movies.content_embedding and users.embedding are vector(384),
	// matching the all-MiniLM-L12-v2 model family.
	EmbeddingDim = 384

	// DefaultIngestBatchSize is the number of CSV rows staged per
	// temp-table merge during data ingestion.
	DefaultIngestBatchSize = 10000

	// DefaultEmbeddingBatchSize is the number of texts sent per
	// embeddings API request.
	DefaultEmbeddingBatchSize = 100

	// DefaultLoadBatchSize is the number of vectors staged per
	// temp-table update when loading embeddings into the movies table.
	DefaultLoadBatchSize = 1000

	// DefaultSearchLimit is the number of candidates retrieved by the
	// BM25 first pass and the number of rows shown per ranking column.
	DefaultSearchLimit = 10

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultForceApprovalCountdown is how long the forced approver counts
	// down before a destructive operation proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultManagementDB is the default database to connect to for management operations.
	DefaultManagementDB = "postgres"

	// DefaultPort is the default PostgreSQL port. The reference docker-compose
	// maps the search-enabled PostgreSQL to 5433 to avoid colliding with a
	// stock local install, so the tools default to it as well.
	DefaultPort = 5433
)

// Default embeddings API settings. The endpoint is OpenAI-compatible:
// POST {base}/embeddings with a bearer key.
const (
	DefaultEmbeddingBaseURL = "https://openrouter.ai/api/v1"
	DefaultEmbeddingModel   = "sentence-transformers/all-minilm-l12-v2"
)
