package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/internal/schema"
	"github.com/movierank-dev/movierank/internal/testinfra"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// newIdlePool creates a pool that never dials; pgxpool connects lazily, so
// tests that fail before any query can use it.
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

func TestNewIngester_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config movierank.IngestConfig
	}{
		{"missing data dir", movierank.IngestConfig{BatchSize: 10}},
		{"zero batch size", movierank.IngestConfig{DataDir: "/data"}},
		{"negative timeout", movierank.IngestConfig{DataDir: "/data", BatchSize: 10, Timeout: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIngester(newIdlePool(t), logging.NewNullLogger(), tt.config)
			require.Error(t, err)
			assert.True(t, errors.Is(err, movierank.ErrInvalidConfig))
		})
	}
}

func TestIngestAll_MissingRequiredFiles(t *testing.T) {
	dir := t.TempDir()
	// movies.csv present, ratings.csv missing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies.csv"),
		[]byte("movieId,title,genres\n1,Toy Story (1995),Animation\n"), 0644))

	in, err := NewIngester(newIdlePool(t), logging.NewNullLogger(), movierank.IngestConfig{
		DataDir:   dir,
		BatchSize: 10,
	})
	require.NoError(t, err)

	_, err = in.IngestAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, movierank.ErrInputFileMissing))
	assert.Equal(t, movierank.ExitInputMissing, movierank.ExitCodeForError(err))
}

func TestIngester_RunIDsAreUnique(t *testing.T) {
	cfg := movierank.IngestConfig{DataDir: t.TempDir(), BatchSize: 10}

	a, err := NewIngester(newIdlePool(t), logging.NewNullLogger(), cfg)
	require.NoError(t, err)
	b, err := NewIngester(newIdlePool(t), logging.NewNullLogger(), cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestIngestAll_Integration(t *testing.T) {
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

	dir := t.TempDir()
	writeFile(t, dir, "movies.csv", `movieId,title,genres
1,Toy Story (1995),Adventure|Animation
2,Jumanji (1995),Adventure|Children
3,Cosmos,(no genres listed)
`)
	writeFile(t, dir, "links.csv", `movieId,imdbId,tmdbId
1,0114709,862
2,0113497,8844
`)
	writeFile(t, dir, "ratings.csv", `userId,movieId,rating,timestamp
1,1,4.0,964982703
1,2,3.5,964981247
2,1,5.0,964982224
`)
	writeFile(t, dir, "tags.csv", `userId,movieId,tag,timestamp
1,1,pixar,1445714994
2,1,pixar,1445714994
`)

	in, err := NewIngester(pool, logger, movierank.IngestConfig{
		DataDir:   dir,
		BatchSize: 2,
	})
	require.NoError(t, err)

	summary, err := in.IngestAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Movies)
	assert.Equal(t, 2, summary.Users)
	assert.Equal(t, 3, summary.Ratings)
	assert.Equal(t, 2, summary.Tags)

	var title string
	var year *int16
	var imdbID *string
	err = pool.QueryRow(ctx,
		`SELECT title, year, imdb_id FROM movies WHERE movie_id = 1`).Scan(&title, &year, &imdbID)
	require.NoError(t, err)
	assert.Equal(t, "Toy Story", title)
	require.NotNil(t, year)
	assert.Equal(t, int16(1995), *year)
	require.NotNil(t, imdbID)
	assert.Equal(t, "tt0114709", *imdbID)

	// Re-running is an upsert, not a duplicate insert.
	summary, err = in.IngestAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Movies)

	var movieCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&movieCount))
	assert.Equal(t, 3, movieCount)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}
