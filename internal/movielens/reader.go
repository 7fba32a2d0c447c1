package movielens

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

// Link holds the external IDs for one movie from links.csv.
type Link struct {
	IMDBID *string
	TMDBID *int32
}

// openCSV opens a CSV file and reads its header, returning a reader and a
// column-name-to-index map. Missing files map to ErrInputFileMissing so
// callers can exit with the right code.
func openCSV(path string) (*os.File, *csv.Reader, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, fmt.Errorf("%s: %w", path, movierank.ErrInputFileMissing)
		}
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := csv.NewReader(bufio.NewReader(f))
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	return f, r, cols, nil
}

// requireColumns verifies the header contains every named column.
func requireColumns(path string, cols map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%s: missing column %q", path, name)
		}
	}
	return nil
}

// CountRows returns the number of data rows (excluding the header) in a CSV
// file. Used to size progress bars before streaming.
func CountRows(path string) (int, error) {
	f, r, _, err := openCSV(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Counting only; quoted fields with embedded newlines still parse as
	// single records.
	r.FieldsPerRecord = -1

	count := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("count rows of %s: %w", path, err)
		}
		count++
	}
}

// ReadLinks loads links.csv into a movie-ID-keyed map. The imdbId column gets
// the "tt" prefix IMDb uses; blank IDs become nil.
func ReadLinks(path string) (map[int32]Link, error) {
	f, r, cols, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := requireColumns(path, cols, "movieId", "imdbId", "tmdbId"); err != nil {
		return nil, err
	}

	links := make(map[int32]Link)
	for {
		record, err := r.Read()
		if err == io.EOF {
			return links, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		movieID, err := parseInt32(record[cols["movieId"]])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid movieId %q: %w", path, record[cols["movieId"]], err)
		}

		var link Link
		if raw := strings.TrimSpace(record[cols["imdbId"]]); raw != "" {
			imdb := "tt" + raw
			link.IMDBID = &imdb
		}
		if raw := strings.TrimSpace(record[cols["tmdbId"]]); raw != "" {
			tmdb, err := parseInt32(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid tmdbId %q: %w", path, raw, err)
			}
			link.TMDBID = &tmdb
		}

		links[movieID] = link
	}
}

// StreamMovies reads movies.csv in batches, attaching external IDs from the
// links map (may be nil), and calls fn for each batch. fn errors abort the
// stream.
func StreamMovies(path string, links map[int32]Link, batchSize int, fn func([]movierank.Movie) error) error {
	f, r, cols, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireColumns(path, cols, "movieId", "title", "genres"); err != nil {
		return err
	}

	batch := make([]movierank.Movie, 0, batchSize)
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

	for {
		record, err := r.Read()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		movieID, err := parseInt32(record[cols["movieId"]])
		if err != nil {
			return fmt.Errorf("%s: invalid movieId %q: %w", path, record[cols["movieId"]], err)
		}

		title, year := ExtractYear(record[cols["title"]])
		movie := movierank.Movie{
			MovieID: movieID,
			Title:   title,
			Year:    year,
			Genres:  ParseGenres(record[cols["genres"]]),
		}
		if link, ok := links[movieID]; ok {
			movie.IMDBID = link.IMDBID
			movie.TMDBID = link.TMDBID
		}

		batch = append(batch, movie)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// StreamRatings reads ratings.csv in batches, converting the Unix timestamp
// column to wall-clock time.
func StreamRatings(path string, batchSize int, fn func([]movierank.Rating) error) error {
	f, r, cols, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireColumns(path, cols, "userId", "movieId", "rating", "timestamp"); err != nil {
		return err
	}

	batch := make([]movierank.Rating, 0, batchSize)
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

	for {
		record, err := r.Read()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		rating, err := parseRating(record, cols)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		batch = append(batch, rating)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// StreamTags reads tags.csv in batches. Tag text is trimmed.
func StreamTags(path string, batchSize int, fn func([]movierank.Tag) error) error {
	f, r, cols, err := openCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := requireColumns(path, cols, "userId", "movieId", "tag", "timestamp"); err != nil {
		return err
	}

	batch := make([]movierank.Tag, 0, batchSize)
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

	for {
		record, err := r.Read()
		if err == io.EOF {
			return flush()
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		userID, err := parseInt32(record[cols["userId"]])
		if err != nil {
			return fmt.Errorf("%s: invalid userId %q: %w", path, record[cols["userId"]], err)
		}
		movieID, err := parseInt32(record[cols["movieId"]])
		if err != nil {
			return fmt.Errorf("%s: invalid movieId %q: %w", path, record[cols["movieId"]], err)
		}
		ts, err := parseUnixTimestamp(record[cols["timestamp"]])
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		batch = append(batch, movierank.Tag{
			UserID:    userID,
			MovieID:   movieID,
			Tag:       strings.TrimSpace(record[cols["tag"]]),
			Timestamp: ts,
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// UniqueUserIDs scans ratings.csv and returns the distinct user IDs.
// Order is not defined.
func UniqueUserIDs(path string) ([]int32, error) {
	f, r, cols, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := requireColumns(path, cols, "userId"); err != nil {
		return nil, err
	}

	seen := make(map[int32]struct{})
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		userID, err := parseInt32(record[cols["userId"]])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid userId %q: %w", path, record[cols["userId"]], err)
		}
		seen[userID] = struct{}{}
	}

	users := make([]int32, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	return users, nil
}

func parseRating(record []string, cols map[string]int) (movierank.Rating, error) {
	userID, err := parseInt32(record[cols["userId"]])
	if err != nil {
		return movierank.Rating{}, fmt.Errorf("invalid userId %q: %w", record[cols["userId"]], err)
	}
	movieID, err := parseInt32(record[cols["movieId"]])
	if err != nil {
		return movierank.Rating{}, fmt.Errorf("invalid movieId %q: %w", record[cols["movieId"]], err)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(record[cols["rating"]]), 32)
	if err != nil {
		return movierank.Rating{}, fmt.Errorf("invalid rating %q: %w", record[cols["rating"]], err)
	}
	ts, err := parseUnixTimestamp(record[cols["timestamp"]])
	if err != nil {
		return movierank.Rating{}, err
	}

	return movierank.Rating{
		UserID:    userID,
		MovieID:   movieID,
		Rating:    float32(value),
		Timestamp: ts,
	}, nil
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func parseUnixTimestamp(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}
