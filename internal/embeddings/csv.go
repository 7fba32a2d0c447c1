package embeddings

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// embeddings.csv columns. The vector is stored as a JSON float array so the
// file round-trips through any CSV tooling.
var csvHeader = []string{"movie_id", "movie_embedding"}

// Writer appends movie embeddings to a CSV file.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	w   *csv.Writer
}

// NewWriter creates (or truncates) the output file and writes the header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Writer{f: f, buf: buf, w: w}, nil
}

// Write appends one embedding row.
func (w *Writer) Write(movieID int32, vector []float32) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding for movie %d: %w", movieID, err)
	}
	return w.w.Write([]string{strconv.FormatInt(int64(movieID), 10), string(encoded)})
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// StreamEmbeddings reads embeddings.csv in batches. Every vector must have
// the expected dimensionality; anything else is a corrupt file, not a
// skippable row.
func StreamEmbeddings(path string, batchSize int, fn func([]movierank.MovieEmbedding) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, movierank.ErrInputFileMissing)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	idCol, vecCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "movie_id":
			idCol = i
		case "movie_embedding":
			vecCol = i
		}
	}
	if idCol < 0 || vecCol < 0 {
		return fmt.Errorf("%s: expected columns movie_id, movie_embedding", path)
	}

	batch := make([]movierank.MovieEmbedding, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		line++

		movieID, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 32)
		if err != nil {
			return fmt.Errorf("%s line %d: invalid movie_id %q: %w", path, line, record[idCol], err)
		}

		var values []float32
		if err := json.Unmarshal([]byte(record[vecCol]), &values); err != nil {
			return fmt.Errorf("%s line %d: invalid embedding for movie %d: %w", path, line, movieID, err)
		}
		if len(values) != movierank.EmbeddingDim {
			return fmt.Errorf("%s line %d: movie %d has %d dimensions, expected %d",
				path, line, movieID, len(values), movierank.EmbeddingDim)
		}

		batch = append(batch, movierank.MovieEmbedding{
			MovieID:   int32(movieID),
			Embedding: pgvector.NewVector(values),
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
