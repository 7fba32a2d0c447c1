// Package ingest loads the MovieLens CSV dataset into PostgreSQL.
//
// Each batch is staged into a session-scoped temp table with COPY and merged
// into the target table with INSERT ... ON CONFLICT, preserving created_at on
// updates. All work for a run happens on a single pooled connection so temp
// tables and transaction state stay together.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/movierank-dev/movierank/internal/movielens"
	"github.com/movierank-dev/movierank/internal/ui"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// Summary reports what one ingest run loaded.
type Summary struct {
	RunID   uuid.UUID
	Movies  int
	Users   int
	Ratings int
	Tags    int
}

// Ingester runs the MovieLens ingestion pipeline.
type Ingester struct {
	pool   *pgxpool.Pool
	logger movierank.Logger
	config movierank.IngestConfig
	runID  uuid.UUID
}

// NewIngester creates an ingester for one run. The run ID ties log lines of a
// run together.
func NewIngester(pool *pgxpool.Pool, logger movierank.Logger, config movierank.IngestConfig) (*Ingester, error) {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Ingester{
		pool:   pool,
		logger: logger,
		config: config,
		runID:  uuid.New(),
	}, nil
}

// RunID returns the identifier stamped on this run's log output.
func (in *Ingester) RunID() uuid.UUID { return in.runID }

// IngestAll runs the complete pipeline: movies (with links.csv external IDs
// when present), users extracted from ratings, ratings, then tags. The order
// satisfies the foreign keys.
func (in *Ingester) IngestAll(ctx context.Context) (*Summary, error) {
	moviesCSV := filepath.Join(in.config.DataDir, "movies.csv")
	linksCSV := filepath.Join(in.config.DataDir, "links.csv")
	ratingsCSV := filepath.Join(in.config.DataDir, "ratings.csv")
	tagsCSV := filepath.Join(in.config.DataDir, "tags.csv")

	for _, required := range []string{moviesCSV, ratingsCSV} {
		if _, err := os.Stat(required); err != nil {
			return nil, fmt.Errorf("%s: %w", required, movierank.ErrInputFileMissing)
		}
	}

	in.logger.Info("Ingest run %s starting from %s", in.runID, in.config.DataDir)

	// Temp tables are session-scoped, so the whole run uses one connection.
	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	summary := &Summary{RunID: in.runID}

	if summary.Movies, err = in.ingestMovies(ctx, conn, moviesCSV, linksCSV); err != nil {
		return nil, err
	}
	if summary.Users, err = in.ingestUsers(ctx, conn, ratingsCSV); err != nil {
		return nil, err
	}
	if summary.Ratings, err = in.ingestRatings(ctx, conn, ratingsCSV); err != nil {
		return nil, err
	}

	if in.config.SkipTags {
		in.logger.Info("Skipping tags ingestion (--skip-tags)")
	} else if _, err := os.Stat(tagsCSV); err != nil {
		in.logger.Info("No tags.csv found, skipping tags ingestion")
	} else {
		if summary.Tags, err = in.ingestTags(ctx, conn, tagsCSV); err != nil {
			return nil, err
		}
	}

	in.logger.Info("Ingest run %s complete: %d movies, %d users, %d ratings, %d tags",
		in.runID, summary.Movies, summary.Users, summary.Ratings, summary.Tags)

	return summary, nil
}

func (in *Ingester) ingestMovies(ctx context.Context, conn *pgxpool.Conn, moviesCSV, linksCSV string) (int, error) {
	var links map[int32]movielens.Link
	if _, err := os.Stat(linksCSV); err == nil {
		in.logger.Verbose("Loading external IDs from %s", linksCSV)
		var lerr error
		if links, lerr = movielens.ReadLinks(linksCSV); lerr != nil {
			return 0, lerr
		}
	}

	total, err := movielens.CountRows(moviesCSV)
	if err != nil {
		return 0, err
	}
	bar := ui.NewProgressBar("Ingesting movies ", total)

	count := 0
	err = movielens.StreamMovies(moviesCSV, links, in.config.BatchSize, func(batch []movierank.Movie) error {
		if err := in.mergeMovieBatch(ctx, conn, batch); err != nil {
			return err
		}
		count += len(batch)
		bar.Add(len(batch))
		return nil
	})
	bar.Finish()
	if err != nil {
		return 0, fmt.Errorf("movie ingestion failed: %w", err)
	}

	return count, nil
}

func (in *Ingester) mergeMovieBatch(ctx context.Context, conn *pgxpool.Conn, batch []movierank.Movie) error {
	rows := make([][]any, len(batch))
	for i, m := range batch {
		rows[i] = []any{m.MovieID, m.Title, m.Year, m.Genres, m.IMDBID, m.TMDBID}
	}

	return in.withBatchTx(ctx, conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TEMP TABLE temp_movies (
				movie_id INTEGER,
				title    VARCHAR(500),
				year     SMALLINT,
				genres   TEXT[],
				imdb_id  VARCHAR(20),
				tmdb_id  INTEGER
			) ON COMMIT DROP`)
		if err != nil {
			return err
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"temp_movies"},
			[]string{"movie_id", "title", "year", "genres", "imdb_id", "tmdb_id"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO movies (movie_id, title, year, genres, imdb_id, tmdb_id)
			SELECT movie_id, title, year, genres, imdb_id, tmdb_id FROM temp_movies
			ON CONFLICT (movie_id) DO UPDATE SET
				title = EXCLUDED.title,
				year = EXCLUDED.year,
				genres = EXCLUDED.genres,
				imdb_id = EXCLUDED.imdb_id,
				tmdb_id = EXCLUDED.tmdb_id,
				updated_at = NOW()`)
		return err
	})
}

func (in *Ingester) ingestUsers(ctx context.Context, conn *pgxpool.Conn, ratingsCSV string) (int, error) {
	in.logger.Verbose("Extracting unique users from %s", ratingsCSV)
	userIDs, err := movielens.UniqueUserIDs(ratingsCSV)
	if err != nil {
		return 0, err
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	in.logger.Info("Found %d unique users", len(userIDs))
	bar := ui.NewProgressBar("Ingesting users  ", len(userIDs))

	for start := 0; start < len(userIDs); start += in.config.BatchSize {
		end := start + in.config.BatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch := userIDs[start:end]

		_, err := conn.Exec(ctx, `
			INSERT INTO users (user_id)
			SELECT unnest($1::integer[])
			ON CONFLICT (user_id) DO NOTHING`, batch)
		if err != nil {
			bar.Finish()
			return 0, fmt.Errorf("user ingestion failed: %w", err)
		}
		bar.Add(len(batch))
	}
	bar.Finish()

	return len(userIDs), nil
}

func (in *Ingester) ingestRatings(ctx context.Context, conn *pgxpool.Conn, ratingsCSV string) (int, error) {
	total, err := movielens.CountRows(ratingsCSV)
	if err != nil {
		return 0, err
	}
	bar := ui.NewProgressBar("Ingesting ratings", total)

	count := 0
	err = movielens.StreamRatings(ratingsCSV, in.config.BatchSize, func(batch []movierank.Rating) error {
		if err := in.mergeRatingBatch(ctx, conn, batch); err != nil {
			return err
		}
		count += len(batch)
		bar.Add(len(batch))
		return nil
	})
	bar.Finish()
	if err != nil {
		return 0, fmt.Errorf("rating ingestion failed: %w", err)
	}

	return count, nil
}

func (in *Ingester) mergeRatingBatch(ctx context.Context, conn *pgxpool.Conn, batch []movierank.Rating) error {
	rows := make([][]any, len(batch))
	for i, r := range batch {
		rows[i] = []any{r.UserID, r.MovieID, r.Rating, r.Timestamp}
	}

	return in.withBatchTx(ctx, conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TEMP TABLE temp_ratings (
				user_id          INTEGER,
				movie_id         INTEGER,
				rating           REAL,
				rating_timestamp TIMESTAMPTZ
			) ON COMMIT DROP`)
		if err != nil {
			return err
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"temp_ratings"},
			[]string{"user_id", "movie_id", "rating", "rating_timestamp"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ratings (user_id, movie_id, rating, rating_timestamp)
			SELECT user_id, movie_id, rating, rating_timestamp FROM temp_ratings
			ON CONFLICT (user_id, movie_id) DO UPDATE SET
				rating = EXCLUDED.rating,
				rating_timestamp = EXCLUDED.rating_timestamp`)
		return err
	})
}

func (in *Ingester) ingestTags(ctx context.Context, conn *pgxpool.Conn, tagsCSV string) (int, error) {
	total, err := movielens.CountRows(tagsCSV)
	if err != nil {
		return 0, err
	}
	bar := ui.NewProgressBar("Ingesting tags   ", total)

	count := 0
	err = movielens.StreamTags(tagsCSV, in.config.BatchSize, func(batch []movierank.Tag) error {
		if err := in.mergeTagBatch(ctx, conn, batch); err != nil {
			return err
		}
		count += len(batch)
		bar.Add(len(batch))
		return nil
	})
	bar.Finish()
	if err != nil {
		return 0, fmt.Errorf("tag ingestion failed: %w", err)
	}

	return count, nil
}

func (in *Ingester) mergeTagBatch(ctx context.Context, conn *pgxpool.Conn, batch []movierank.Tag) error {
	rows := make([][]any, len(batch))
	for i, t := range batch {
		rows[i] = []any{t.UserID, t.MovieID, t.Tag, t.Timestamp}
	}

	return in.withBatchTx(ctx, conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TEMP TABLE temp_tags (
				user_id       INTEGER,
				movie_id      INTEGER,
				tag           TEXT,
				tag_timestamp TIMESTAMPTZ
			) ON COMMIT DROP`)
		if err != nil {
			return err
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"temp_tags"},
			[]string{"user_id", "movie_id", "tag", "tag_timestamp"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}

		// The source data can repeat (user, movie, tag) rows; collapse them
		// before hitting the primary key.
		_, err = tx.Exec(ctx, `
			INSERT INTO tags (user_id, movie_id, tag, tag_timestamp)
			SELECT DISTINCT ON (user_id, movie_id, tag)
				user_id, movie_id, tag, tag_timestamp
			FROM temp_tags
			ORDER BY user_id, movie_id, tag, tag_timestamp DESC
			ON CONFLICT (user_id, movie_id, tag) DO UPDATE SET
				tag_timestamp = EXCLUDED.tag_timestamp`)
		return err
	})
}

// withBatchTx runs one staged batch inside its own transaction. A failed
// batch rolls back and aborts the run; partial batches never reach the
// target tables.
func (in *Ingester) withBatchTx(ctx context.Context, conn *pgxpool.Conn, fn func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			in.logger.Error("rollback failed: %v", rbErr)
		}
		return fmt.Errorf("%w: %w", movierank.ErrExecutionFailed, err)
	}

	return tx.Commit(ctx)
}
