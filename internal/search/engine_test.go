package search

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/internal/schema"
	"github.com/movierank-dev/movierank/internal/testinfra"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

func newIdlePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig("postgresql://nobody@localhost:1/none")
	require.NoError(t, err)
	cfg.MinConns = 0
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestSearch_InvalidConfig(t *testing.T) {
	engine := NewEngine(newIdlePool(t), logging.NewNullLogger())

	tests := []struct {
		name   string
		config movierank.SearchConfig
	}{
		{"empty query", movierank.SearchConfig{UserID: 1, Limit: 10}},
		{"zero user", movierank.SearchConfig{Query: "lord", Limit: 10}},
		{"zero limit", movierank.SearchConfig{Query: "lord", UserID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(context.Background(), tt.config, WeightsHybrid)
			require.Error(t, err)
			assert.True(t, errors.Is(err, movierank.ErrInvalidConfig))
		})
	}
}

func TestNewEngine_NilArgsPanic(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewEngine(newIdlePool(t), nil) })
}

func TestWeightPresets(t *testing.T) {
	assert.Equal(t, 1.0, WeightsBM25Only.BM25)
	assert.Equal(t, 0.0, WeightsBM25Only.Similarity)
	assert.Equal(t, 0.0, WeightsRerank.BM25)
	assert.Equal(t, 1.0, WeightsRerank.Similarity)
	assert.Equal(t, 0.5, WeightsHybrid.BM25)
	assert.Equal(t, 0.5, WeightsHybrid.Similarity)
}

func TestSearch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	ctr, err := testinfra.StartPostgres(ctx)
	require.NoError(t, err)
	defer ctr.Terminate(ctx) //nolint:errcheck

	pool, err := ctr.Pool(ctx)
	require.NoError(t, err)
	defer pool.Close()

	logger := logging.NewNullLogger()
	require.NoError(t, schema.NewManager(pool, logger).Create(ctx))

	seedSearchFixtures(t, ctx, pool)

	engine := NewEngine(pool, logger)

	t.Run("validate user", func(t *testing.T) {
		require.NoError(t, engine.ValidateUser(ctx, 1))

		err := engine.ValidateUser(ctx, 999)
		assert.True(t, errors.Is(err, movierank.ErrUserNotFound))

		err = engine.ValidateUser(ctx, 2)
		assert.True(t, errors.Is(err, movierank.ErrUserNotEmbedded))
	})

	cfg := movierank.SearchConfig{Query: "lord", UserID: 1, Limit: 10}

	t.Run("bm25 matches title tokens", func(t *testing.T) {
		results, err := engine.Search(ctx, cfg, WeightsBM25Only)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		for _, m := range results {
			assert.Contains(t, m.Title, "Lord")
		}
	})

	t.Run("rerank prefers movies near the user vector", func(t *testing.T) {
		results, err := engine.Search(ctx, cfg, WeightsRerank)
		require.NoError(t, err)
		require.Len(t, results, 2)
		// User 1's embedding equals movie 1's vector, so it wins on similarity.
		assert.Equal(t, int32(1), results[0].MovieID)
		assert.Greater(t, results[0].Similarity, results[1].Similarity)
	})

	t.Run("combined score blends both signals", func(t *testing.T) {
		results, err := engine.Search(ctx, cfg, WeightsHybrid)
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, m := range results {
			want := 0.5*m.NormalizedBM25 + 0.5*m.Similarity
			assert.InDelta(t, want, m.Combined, 1e-9)
		}
	})

	t.Run("compare runs all three presets", func(t *testing.T) {
		cmp, err := engine.Compare(ctx, cfg)
		require.NoError(t, err)
		assert.NotEmpty(t, cmp.BM25Only)
		assert.NotEmpty(t, cmp.Rerank)
		assert.NotEmpty(t, cmp.Hybrid)
	})

	t.Run("no matches yields empty results", func(t *testing.T) {
		none := cfg
		none.Query = "zzzznomatch"
		results, err := engine.Search(ctx, none, WeightsHybrid)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

// seedSearchFixtures inserts two "lord" movies with orthogonal unit vectors,
// user 1 whose embedding matches movie 1, and user 2 without an embedding.
func seedSearchFixtures(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		INSERT INTO movies (movie_id, title, year, genres) VALUES
			(1, 'The Lord of the Rings: The Fellowship of the Ring', 2001, '{Adventure,Fantasy}'),
			(2, 'Lord of War', 2005, '{Action,Crime}'),
			(3, 'Heat', 1995, '{Action,Crime}');
		INSERT INTO users (user_id) VALUES (1), (2);
	`)
	require.NoError(t, err)

	vec := func(slot int) pgvector.Vector {
		v := make([]float32, movierank.EmbeddingDim)
		v[slot] = 1.0
		return pgvector.NewVector(v)
	}

	_, err = pool.Exec(ctx,
		`UPDATE movies SET content_embedding = $1 WHERE movie_id = 1`, vec(0))
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE movies SET content_embedding = $1 WHERE movie_id = 2`, vec(1))
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`UPDATE users SET embedding = $1 WHERE user_id = 1`, vec(0))
	require.NoError(t, err)
}
