package movielens

import (
	"fmt"
	"regexp"
	"strings"
)

// noGenres is the MovieLens placeholder for movies without genre labels.
const noGenres = "(no genres listed)"

// yearSuffix matches a trailing "(1995)" release year in a MovieLens title.
var yearSuffix = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)\s*$`)

// ExtractYear splits a MovieLens title into the bare title and release year.
// "Toy Story (1995)" yields ("Toy Story", 1995). Titles without a trailing
// year yield a nil year.
func ExtractYear(title string) (string, *int16) {
	m := yearSuffix.FindStringSubmatch(title)
	if m == nil {
		return strings.TrimSpace(title), nil
	}

	var year int16
	// The regexp guarantees four digits, so this cannot fail.
	fmt.Sscanf(m[2], "%d", &year)

	return strings.TrimSpace(m[1]), &year
}

// ParseGenres splits the pipe-delimited genres column.
// "(no genres listed)" and blank values yield an empty slice.
func ParseGenres(genres string) []string {
	genres = strings.TrimSpace(genres)
	if genres == "" || genres == noGenres {
		return []string{}
	}

	parts := strings.Split(genres, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatMovieText renders a movie as the text sent to the embeddings API,
// e.g. `Toy Story (1995). Genres: Animation, Comedy`.
func FormatMovieText(title string, year *int16, genres []string) string {
	var b strings.Builder
	b.WriteString(title)
	if year != nil {
		fmt.Fprintf(&b, " (%d)", *year)
	}
	if len(genres) > 0 {
		b.WriteString(". Genres: ")
		b.WriteString(strings.Join(genres, ", "))
	}
	return b.String()
}
