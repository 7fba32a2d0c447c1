package movierank

import (
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWS RDS IAM authentication parameters (used when AuthMethod is AuthMethodAWSIAM)
	AWSRegion string

	// Google Cloud SQL instance connection name, "project:region:instance"
	// (used when AuthMethod is AuthMethodGoogleIAM)
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// Movie is one row of the movies table as parsed from MovieLens CSV data.
// Year is nil when the title carries no release year, and the external IDs
// are nil when links.csv has no mapping for the movie.
type Movie struct {
	MovieID int32
	Title   string
	Year    *int16
	Genres  []string
	IMDBID  *string
	TMDBID  *int32
}

// Rating is one row of ratings.csv with the Unix timestamp already
// converted to wall-clock time.
type Rating struct {
	UserID    int32
	MovieID   int32
	Rating    float32
	Timestamp time.Time
}

// Tag is one row of tags.csv with the Unix timestamp already converted.
type Tag struct {
	UserID    int32
	MovieID   int32
	Tag       string
	Timestamp time.Time
}

// MovieEmbedding pairs a movie with its content embedding, as stored in
// embeddings.csv and in movies.content_embedding.
type MovieEmbedding struct {
	MovieID   int32
	Embedding pgvector.Vector
}

// ScoredMovie is one row of the unified search query output. All three
// scores are populated regardless of the weights used; the caller picks
// which one to display.
type ScoredMovie struct {
	MovieID        int32
	Title          string
	Year           *int16
	Genres         []string
	NormalizedBM25 float64
	Similarity     float64
	Combined       float64
}

// SearchConfig contains all parameters needed for one search invocation.
type SearchConfig struct {
	// Query is the full-text query passed to the BM25 first pass.
	Query string

	// UserID selects the user embedding used for personalization.
	UserID int32

	// Limit is the number of candidates retrieved by the BM25 first pass.
	Limit int

	// ShowScores includes score columns in the rendered tables.
	ShowScores bool
}

// Validate checks if the SearchConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *SearchConfig) Validate() error {
	var errs []error

	if c.Query == "" {
		errs = append(errs, fmt.Errorf("query is required: %w", ErrInvalidConfig))
	}

	if c.UserID <= 0 {
		errs = append(errs, fmt.Errorf("user ID must be positive: %w", ErrInvalidConfig))
	}

	if c.Limit <= 0 {
		errs = append(errs, fmt.Errorf("limit must be positive: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// IngestConfig contains all parameters needed for a data ingestion run.
type IngestConfig struct {
	// DataDir is the directory containing the MovieLens CSV files.
	DataDir string

	// BatchSize is the number of rows staged per temp-table merge.
	BatchSize int

	// SkipTags skips tags.csv even when present.
	SkipTags bool

	// Timeout bounds the entire run. Zero means no limit.
	Timeout time.Duration

	// Verbose enables detailed logging.
	Verbose bool
}

// Validate checks if the IngestConfig has all required fields and valid values.
func (c *IngestConfig) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data directory is required: %w", ErrInvalidConfig))
	}

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
