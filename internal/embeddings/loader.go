package embeddings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// LoadSummary reports the outcome of loading embeddings.csv into movies.
type LoadSummary struct {
	Processed     int
	FailedBatches int
}

// Loader writes precomputed movie embeddings into movies.content_embedding.
// Each batch commits independently so a failure mid-file keeps earlier work.
type Loader struct {
	pool      *pgxpool.Pool
	logger    movierank.Logger
	batchSize int
}

// NewLoader creates a loader.
func NewLoader(pool *pgxpool.Pool, logger movierank.Logger, batchSize int) (*Loader, error) {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive: %w", movierank.ErrInvalidConfig)
	}
	return &Loader{pool: pool, logger: logger, batchSize: batchSize}, nil
}

// Load streams csvPath and updates movies in batches. A batch that fails is
// logged and counted, not fatal; corrupt file contents still abort.
func (l *Loader) Load(ctx context.Context, csvPath string) (LoadSummary, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("%w: %w", movierank.ErrConnectionFailed, err)
	}
	defer conn.Release()

	var summary LoadSummary
	batchNum := 0

	err = StreamEmbeddings(csvPath, l.batchSize, func(batch []movierank.MovieEmbedding) error {
		batchNum++

		if err := l.loadBatch(ctx, conn.Conn(), batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.FailedBatches++
			l.logger.Info("Batch %d failed (%d rows): %v", batchNum, len(batch), err)
			return nil
		}

		summary.Processed += len(batch)
		l.logger.Verbose("Batch %d committed (%d rows, %d total)", batchNum, len(batch), summary.Processed)
		return nil
	})
	if err != nil {
		return summary, err
	}

	l.logger.Info("Loaded %d embeddings (%d failed batches)", summary.Processed, summary.FailedBatches)
	return summary, nil
}

func (l *Loader) loadBatch(ctx context.Context, conn *pgx.Conn, batch []movierank.MovieEmbedding) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`CREATE TEMP TABLE temp_embeddings (
			movie_id INTEGER,
			content_embedding vector(%d)
		) ON COMMIT DROP`, movierank.EmbeddingDim))
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}

	rows := make([][]any, len(batch))
	for i, e := range batch {
		rows[i] = []any{e.MovieID, e.Embedding}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"temp_embeddings"},
		[]string{"movie_id", "content_embedding"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy batch: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE movies m
		 SET content_embedding = t.content_embedding,
		     updated_at = NOW()
		 FROM temp_embeddings t
		 WHERE m.movie_id = t.movie_id`); err != nil {
		return fmt.Errorf("update movies: %w", err)
	}

	return tx.Commit(ctx)
}

// CoverageStats counts how far embedding coverage has come.
type CoverageStats struct {
	Total        int64
	WithVector   int64
	SampleDims   []int
	SampleMovies []int32
}

// Verify reports embedding coverage and spot-checks stored dimensions.
func (l *Loader) Verify(ctx context.Context) (CoverageStats, error) {
	var stats CoverageStats
	err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(content_embedding) FROM movies`).
		Scan(&stats.Total, &stats.WithVector)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT movie_id, array_length(content_embedding::real[], 1)
		 FROM movies
		 WHERE content_embedding IS NOT NULL
		 ORDER BY movie_id
		 LIMIT 3`)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int32
		var dims int
		if err := rows.Scan(&id, &dims); err != nil {
			return stats, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
		}
		stats.SampleMovies = append(stats.SampleMovies, id)
		stats.SampleDims = append(stats.SampleDims, dims)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}

	return stats, nil
}
