// Package search runs the personalized hybrid search pipeline: a BM25 first
// pass over the movies index, min-max normalization, cosine re-ranking
// against the user's taste embedding, and a weighted combination of the two.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// Standard weight presets compared side by side by the search command.
var (
	WeightsBM25Only = Weights{BM25: 1.0, Similarity: 0.0}
	WeightsRerank   = Weights{BM25: 0.0, Similarity: 1.0}
	WeightsHybrid   = Weights{BM25: 0.5, Similarity: 0.5}
)

// Weights blends the two normalized scores into the combined score.
type Weights struct {
	BM25       float64
	Similarity float64
}

// unifiedSearchSQL runs the whole pipeline in one statement. The first pass
// keeps the top candidates by BM25 score with movie_id as tiebreaker; the
// window normalization maps those scores onto [0, 1] (NULL when all
// candidates tie); cosine distance against the user embedding is rescaled
// from [-1, 1] to [0, 1] before weighting.
const unifiedSearchSQL = `
WITH first_pass_retrieval AS (
    SELECT
        movie_id, title, year, genres,
        paradedb.score(movie_id) AS bm25_score
    FROM movies
    WHERE movies @@@ $1
    ORDER BY paradedb.score(movie_id) DESC, movie_id ASC
    LIMIT $2
),
normalization AS (
    SELECT
        *,
        (bm25_score - MIN(bm25_score) OVER ()) /
            NULLIF(MAX(bm25_score) OVER () - MIN(bm25_score) OVER (), 0) AS normalized_bm25
    FROM first_pass_retrieval
),
personalized_ranker AS (
    SELECT
        n.*,
        (1 - (u.embedding <=> m.content_embedding)) AS cosine_similarity,
        (1 - (u.embedding <=> m.content_embedding) + 1) / 2 AS normalized_similarity
    FROM normalization n
    JOIN movies m ON n.movie_id = m.movie_id
    CROSS JOIN users u WHERE u.user_id = $3
),
joint_ranker AS (
    SELECT
        movie_id, title, year, genres,
        normalized_bm25,
        normalized_similarity,
        ($4 * normalized_bm25 + $5 * normalized_similarity) AS combined_score
    FROM personalized_ranker
)
SELECT * FROM joint_ranker
ORDER BY combined_score DESC`

// Engine executes personalized searches against an ingested database.
type Engine struct {
	pool   *pgxpool.Pool
	logger movierank.Logger
}

// NewEngine creates a search engine.
func NewEngine(pool *pgxpool.Pool, logger movierank.Logger) *Engine {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Engine{pool: pool, logger: logger}
}

// ValidateUser confirms the user exists and has a taste embedding.
func (e *Engine) ValidateUser(ctx context.Context, userID int32) error {
	var hasEmbedding bool
	err := e.pool.QueryRow(ctx,
		`SELECT embedding IS NOT NULL FROM users WHERE user_id = $1`, userID).
		Scan(&hasEmbedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, movierank.ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}
	if !hasEmbedding {
		return fmt.Errorf("user %d: %w", userID, movierank.ErrUserNotEmbedded)
	}
	return nil
}

// Search runs the unified query once with the given weights.
func (e *Engine) Search(ctx context.Context, cfg movierank.SearchConfig, w Weights) ([]movierank.ScoredMovie, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rows, err := e.pool.Query(ctx, unifiedSearchSQL,
		cfg.Query, cfg.Limit, cfg.UserID, w.BM25, w.Similarity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}
	defer rows.Close()

	var results []movierank.ScoredMovie
	for rows.Next() {
		var m movierank.ScoredMovie
		var bm25, sim, combined *float64
		if err := rows.Scan(&m.MovieID, &m.Title, &m.Year, &m.Genres, &bm25, &sim, &combined); err != nil {
			return nil, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
		}
		// Normalization yields NULL when every candidate has the same BM25
		// score; similarity is NULL for movies without a content embedding.
		if bm25 != nil {
			m.NormalizedBM25 = *bm25
		}
		if sim != nil {
			m.Similarity = *sim
		}
		if combined != nil {
			m.Combined = *combined
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}

	e.logger.Verbose("Search %q for user %d (bm25=%.2f, similarity=%.2f): %d results",
		cfg.Query, cfg.UserID, w.BM25, w.Similarity, len(results))
	return results, nil
}

// Comparison holds the three result lists the search command displays.
type Comparison struct {
	BM25Only []movierank.ScoredMovie
	Rerank   []movierank.ScoredMovie
	Hybrid   []movierank.ScoredMovie
}

// Compare runs the three standard weight presets for one query.
func (e *Engine) Compare(ctx context.Context, cfg movierank.SearchConfig) (Comparison, error) {
	var cmp Comparison
	var err error

	if cmp.BM25Only, err = e.Search(ctx, cfg, WeightsBM25Only); err != nil {
		return cmp, err
	}
	if cmp.Rerank, err = e.Search(ctx, cfg, WeightsRerank); err != nil {
		return cmp, err
	}
	if cmp.Hybrid, err = e.Search(ctx, cfg, WeightsHybrid); err != nil {
		return cmp, err
	}

	return cmp, nil
}
