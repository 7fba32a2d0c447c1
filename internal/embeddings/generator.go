package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/movierank-dev/movierank/internal/movielens"
	"github.com/movierank-dev/movierank/internal/ui"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// Generator turns movies.csv into embeddings.csv through the embeddings API.
type Generator struct {
	client    *Client
	logger    movierank.Logger
	batchSize int
	limit     int

	// pause spaces out API calls to stay under rate limits.
	pause time.Duration
}

// NewGenerator creates a generator. limit <= 0 means all movies.
func NewGenerator(client *Client, logger movierank.Logger, batchSize, limit int) (*Generator, error) {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive: %w", movierank.ErrInvalidConfig)
	}

	return &Generator{
		client:    client,
		logger:    logger,
		batchSize: batchSize,
		limit:     limit,
		pause:     500 * time.Millisecond,
	}, nil
}

// Generate reads movies from moviesCSV, embeds their formatted text in
// batches, and writes outputCSV. Returns the number of embedded movies.
func (g *Generator) Generate(ctx context.Context, moviesCSV, outputCSV string) (int, error) {
	movies, err := g.loadMovies(moviesCSV)
	if err != nil {
		return 0, err
	}
	if g.limit > 0 && len(movies) > g.limit {
		movies = movies[:g.limit]
		g.logger.Info("Limited to %d movies", g.limit)
	}

	g.logger.Info("Generating embeddings for %d movies (batch size %d)", len(movies), g.batchSize)
	for i, m := range movies {
		if i >= 3 {
			break
		}
		g.logger.Verbose("Sample text: %q", movielens.FormatMovieText(m.Title, m.Year, m.Genres))
	}

	out, err := NewWriter(outputCSV)
	if err != nil {
		return 0, err
	}

	bar := ui.NewProgressBar("Embedding movies ", len(movies))
	written := 0

	for start := 0; start < len(movies); start += g.batchSize {
		end := start + g.batchSize
		if end > len(movies) {
			end = len(movies)
		}
		batch := movies[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = movielens.FormatMovieText(m.Title, m.Year, m.Genres)
		}

		vectors, err := g.client.Embed(ctx, texts)
		if err != nil {
			bar.Finish()
			out.Close()
			return written, fmt.Errorf("batch starting at movie %d: %w", batch[0].MovieID, err)
		}

		for i, m := range batch {
			if len(vectors[i]) != movierank.EmbeddingDim {
				bar.Finish()
				out.Close()
				return written, fmt.Errorf("movie %d: got %d dimensions, expected %d: %w",
					m.MovieID, len(vectors[i]), movierank.EmbeddingDim, movierank.ErrEmbeddingAPI)
			}
			if err := out.Write(m.MovieID, vectors[i]); err != nil {
				bar.Finish()
				out.Close()
				return written, err
			}
			written++
		}
		bar.Add(len(batch))

		if end < len(movies) && g.pause > 0 {
			select {
			case <-ctx.Done():
				bar.Finish()
				out.Close()
				return written, ctx.Err()
			case <-time.After(g.pause):
			}
		}
	}
	bar.Finish()

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", outputCSV, err)
	}

	g.logger.Info("Wrote %d embeddings to %s", written, outputCSV)
	return written, nil
}

func (g *Generator) loadMovies(moviesCSV string) ([]movierank.Movie, error) {
	var movies []movierank.Movie
	err := movielens.StreamMovies(moviesCSV, nil, g.batchSize, func(batch []movierank.Movie) error {
		movies = append(movies, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("Loaded %d movies from %s", len(movies), moviesCSV)
	return movies, nil
}
