package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// TestUserIDs are synthetic users seeded with strongly polarized ratings,
// handy for eyeballing whether the taste vectors point the right way.
var TestUserIDs = []int32{10001, 10002, 20001, 20002}

// userEmbeddingSQL derives users.embedding as a weighted average of the
// content embeddings of movies the user rated. Positive ratings (>= 4.0)
// pull the vector toward the movie, negative ratings (< 3.0) push it away
// at reduced strength; lukewarm ratings are ignored. Users with no
// qualifying ratings keep a NULL embedding.
const userEmbeddingSQL = `
UPDATE users u
SET embedding = (
    WITH weighted AS (
        SELECT
            r.user_id,
            m.content_embedding,
            CASE
                WHEN r.rating >= 4.0 THEN (r.rating - 3.5)
                ELSE -(3.5 - r.rating) * 0.8
            END + 0.1 AS weight
        FROM ratings r
        JOIN movies m ON m.movie_id = r.movie_id
        WHERE r.user_id = u.user_id
          AND m.content_embedding IS NOT NULL
          AND (r.rating >= 4.0 OR r.rating < 3.0)
    ),
    aggregated AS (
        SELECT
            SUM(
                ARRAY(
                    SELECT elem * weighted.weight
                    FROM unnest(weighted.content_embedding::float4[]) AS elem
                )::vector(%d)
            ) AS weighted_sum,
            SUM(weight) AS total_weight
        FROM weighted
    )
    SELECT CASE
        WHEN total_weight IS NULL OR total_weight = 0 THEN NULL
        ELSE (
            SELECT ARRAY(
                SELECT elem / aggregated.total_weight
                FROM unnest(aggregated.weighted_sum::float4[]) AS elem
            )::vector(%d)
        )
    END
    FROM aggregated
),
updated_at = NOW()
WHERE EXISTS (
    SELECT 1
    FROM ratings r
    JOIN movies m ON m.movie_id = r.movie_id
    WHERE r.user_id = u.user_id
      AND m.content_embedding IS NOT NULL
      AND (r.rating >= 4.0 OR r.rating < 3.0)
)`

// UserEmbedder computes per-user taste embeddings entirely in SQL.
type UserEmbedder struct {
	pool   *pgxpool.Pool
	logger movierank.Logger
}

// NewUserEmbedder creates a user embedder.
func NewUserEmbedder(pool *pgxpool.Pool, logger movierank.Logger) *UserEmbedder {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &UserEmbedder{pool: pool, logger: logger}
}

// GenerateAll recomputes embeddings for every user with qualifying ratings
// in a single statement. Returns the number of updated users.
func (ue *UserEmbedder) GenerateAll(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(userEmbeddingSQL, movierank.EmbeddingDim, movierank.EmbeddingDim)

	tag, err := ue.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}

	updated := tag.RowsAffected()
	ue.logger.Info("Updated embeddings for %d users", updated)
	return updated, nil
}

// UserStats reports embedding coverage across users.
type UserStats struct {
	Total      int64
	WithVector int64
}

// Stats counts users with and without an embedding.
func (ue *UserEmbedder) Stats(ctx context.Context) (UserStats, error) {
	var stats UserStats
	err := ue.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(embedding) FROM users`).
		Scan(&stats.Total, &stats.WithVector)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}
	return stats, nil
}

// TestUserStatus is the embedding state of one synthetic test user.
type TestUserStatus struct {
	UserID      int32
	Exists      bool
	HasVector   bool
	RatingCount int64
}

// VerifyTestUsers reports the state of the synthetic test users, if present.
func (ue *UserEmbedder) VerifyTestUsers(ctx context.Context) ([]TestUserStatus, error) {
	statuses := make([]TestUserStatus, 0, len(TestUserIDs))
	for _, id := range TestUserIDs {
		status := TestUserStatus{UserID: id}

		var hasVector bool
		err := ue.pool.QueryRow(ctx,
			`SELECT embedding IS NOT NULL FROM users WHERE user_id = $1`, id).Scan(&hasVector)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Test user was never ingested; report it as absent.
		case err != nil:
			return nil, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
		default:
			status.Exists = true
			status.HasVector = hasVector
			if err := ue.pool.QueryRow(ctx,
				`SELECT COUNT(*) FROM ratings WHERE user_id = $1`, id).Scan(&status.RatingCount); err != nil {
				return nil, fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
			}
		}

		statuses = append(statuses, status)
	}
	return statuses, nil
}
