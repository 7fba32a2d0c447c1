package movielens

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCountRows(t *testing.T) {
	path := writeCSV(t, "ratings.csv", "userId,movieId,rating,timestamp\n1,1,4.0,100\n1,2,3.0,200\n")

	count, err := CountRows(path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCountRows_MissingFile(t *testing.T) {
	_, err := CountRows(filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, movierank.ErrInputFileMissing))
}

func TestReadLinks(t *testing.T) {
	path := writeCSV(t, "links.csv", "movieId,imdbId,tmdbId\n1,0114709,862\n2,0113497,\n3,,\n")

	links, err := ReadLinks(path)
	require.NoError(t, err)
	require.Len(t, links, 3)

	require.NotNil(t, links[1].IMDBID)
	assert.Equal(t, "tt0114709", *links[1].IMDBID)
	require.NotNil(t, links[1].TMDBID)
	assert.Equal(t, int32(862), *links[1].TMDBID)

	assert.NotNil(t, links[2].IMDBID)
	assert.Nil(t, links[2].TMDBID)

	assert.Nil(t, links[3].IMDBID)
	assert.Nil(t, links[3].TMDBID)
}

func TestStreamMovies(t *testing.T) {
	path := writeCSV(t, "movies.csv",
		`movieId,title,genres
1,Toy Story (1995),Adventure|Animation
2,"American President, The (1995)",Comedy|Drama|Romance
3,Cosmos,(no genres listed)
`)
	links := map[int32]Link{
		1: {IMDBID: strPtr("tt0114709"), TMDBID: int32Ptr(862)},
	}

	var batches [][]movierank.Movie
	err := StreamMovies(path, links, 2, func(batch []movierank.Movie) error {
		copied := make([]movierank.Movie, len(batch))
		copy(copied, batch)
		batches = append(batches, copied)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)

	first := batches[0][0]
	assert.Equal(t, int32(1), first.MovieID)
	assert.Equal(t, "Toy Story", first.Title)
	require.NotNil(t, first.Year)
	assert.Equal(t, int16(1995), *first.Year)
	assert.Equal(t, []string{"Adventure", "Animation"}, first.Genres)
	require.NotNil(t, first.IMDBID)
	assert.Equal(t, "tt0114709", *first.IMDBID)

	second := batches[0][1]
	assert.Equal(t, "American President, The", second.Title)
	assert.Nil(t, second.IMDBID)

	third := batches[1][0]
	assert.Equal(t, "Cosmos", third.Title)
	assert.Nil(t, third.Year)
	assert.Empty(t, third.Genres)
}

func TestStreamMovies_CallbackError(t *testing.T) {
	path := writeCSV(t, "movies.csv", "movieId,title,genres\n1,A,Drama\n2,B,Drama\n")

	sentinel := errors.New("stop")
	err := StreamMovies(path, nil, 1, func(batch []movierank.Movie) error {
		return sentinel
	})
	assert.True(t, errors.Is(err, sentinel))
}

func TestStreamMovies_MissingColumn(t *testing.T) {
	path := writeCSV(t, "movies.csv", "movieId,name\n1,A\n")

	err := StreamMovies(path, nil, 10, func([]movierank.Movie) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "title"`)
}

func TestStreamRatings(t *testing.T) {
	path := writeCSV(t, "ratings.csv", "userId,movieId,rating,timestamp\n7,42,4.5,964982703\n")

	var got []movierank.Rating
	err := StreamRatings(path, 100, func(batch []movierank.Rating) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, int32(7), got[0].UserID)
	assert.Equal(t, int32(42), got[0].MovieID)
	assert.Equal(t, float32(4.5), got[0].Rating)
	assert.Equal(t, time.Unix(964982703, 0).UTC(), got[0].Timestamp)
}

func TestStreamRatings_InvalidRow(t *testing.T) {
	path := writeCSV(t, "ratings.csv", "userId,movieId,rating,timestamp\n7,42,not-a-number,100\n")

	err := StreamRatings(path, 100, func([]movierank.Rating) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rating")
}

func TestStreamTags(t *testing.T) {
	path := writeCSV(t, "tags.csv", "userId,movieId,tag,timestamp\n7,42, epic ,964982703\n")

	var got []movierank.Tag
	err := StreamTags(path, 100, func(batch []movierank.Tag) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "epic", got[0].Tag, "tag text is trimmed")
}

func TestUniqueUserIDs(t *testing.T) {
	path := writeCSV(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n1,1,4.0,100\n2,1,3.0,100\n1,2,5.0,100\n")

	users, err := UniqueUserIDs(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{1, 2}, users)
}

func strPtr(s string) *string { return &s }
func int32Ptr(v int32) *int32 { return &v }
