package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movierank-dev/movierank/internal/logging"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// embeddingServer answers every input with a full-size vector whose first
// element encodes the request order, so tests can check batching.
func embeddingServer(t *testing.T, requests *atomic.Int32, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests.Add(1)

		resp := embeddingResponse{}
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestGenerator(t *testing.T, srv *httptest.Server, batchSize, limit int) *Generator {
	t.Helper()
	client := NewClient(srv.URL, "k", "m", logging.NewNullLogger())
	client.httpClient = srv.Client()
	g, err := NewGenerator(client, logging.NewNullLogger(), batchSize, limit)
	require.NoError(t, err)
	g.pause = 0
	return g
}

func writeMoviesCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "movies.csv")
	content := `movieId,title,genres
1,Toy Story (1995),Adventure|Animation
2,Jumanji (1995),Adventure|Children
3,Heat (1995),Action|Crime
4,Cosmos,(no genres listed)
5,Sabrina (1995),Comedy|Romance
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGenerate_WritesAllMovies(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests, movierank.EmbeddingDim)
	defer srv.Close()

	dir := t.TempDir()
	moviesCSV := writeMoviesCSV(t, dir)
	outputCSV := filepath.Join(dir, "embeddings.csv")

	written, err := newTestGenerator(t, srv, 2, 0).Generate(context.Background(), moviesCSV, outputCSV)
	require.NoError(t, err)
	assert.Equal(t, 5, written)
	assert.Equal(t, int32(3), requests.Load(), "5 movies at batch size 2")

	var ids []int32
	err = StreamEmbeddings(outputCSV, 10, func(batch []movierank.MovieEmbedding) error {
		for _, e := range batch {
			ids = append(ids, e.MovieID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, ids)
}

func TestGenerate_HonorsLimit(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests, movierank.EmbeddingDim)
	defer srv.Close()

	dir := t.TempDir()
	moviesCSV := writeMoviesCSV(t, dir)
	outputCSV := filepath.Join(dir, "embeddings.csv")

	written, err := newTestGenerator(t, srv, 10, 2).Generate(context.Background(), moviesCSV, outputCSV)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, int32(1), requests.Load())
}

func TestGenerate_RejectsWrongDimensions(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests, 3)
	defer srv.Close()

	dir := t.TempDir()
	moviesCSV := writeMoviesCSV(t, dir)

	_, err := newTestGenerator(t, srv, 10, 0).Generate(context.Background(),
		moviesCSV, filepath.Join(dir, "embeddings.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, movierank.ErrEmbeddingAPI))
	assert.Contains(t, err.Error(), "got 3 dimensions")
}

func TestGenerate_MissingMoviesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := newTestGenerator(t, srv, 10, 0).Generate(context.Background(),
		filepath.Join(dir, "movies.csv"), filepath.Join(dir, "embeddings.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, movierank.ErrInputFileMissing))
}

func TestGenerate_APIFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	moviesCSV := writeMoviesCSV(t, dir)

	_, err := newTestGenerator(t, srv, 10, 0).Generate(context.Background(),
		moviesCSV, filepath.Join(dir, "embeddings.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, movierank.ErrEmbeddingAPI))
	assert.Equal(t, movierank.ExitEmbeddingError, movierank.ExitCodeForError(err))
}

func TestNewGenerator_InvalidBatchSize(t *testing.T) {
	client := NewClient("http://unused.invalid", "k", "m", logging.NewNullLogger())
	_, err := NewGenerator(client, logging.NewNullLogger(), 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, movierank.ErrInvalidConfig))
}
