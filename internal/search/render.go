package search

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/movierank-dev/movierank/pkg/movierank"
)

const maxTitleWidth = 40

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	columnHeader = lipgloss.NewStyle().Bold(true)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// scorePicker selects which of the three scores a table column shows.
type scorePicker func(movierank.ScoredMovie) float64

// Render formats the three result lists side by side for comparison.
// Every table shows exactly limit rows; shorter result lists are padded
// with blanks so the tables line up.
func Render(cmp Comparison, limit int, showScores bool) string {
	sections := []struct {
		heading string
		results []movierank.ScoredMovie
		score   scorePicker
	}{
		{"BM25 Only", cmp.BM25Only, func(m movierank.ScoredMovie) float64 { return m.NormalizedBM25 }},
		{"100% Rerank", cmp.Rerank, func(m movierank.ScoredMovie) float64 { return m.Similarity }},
		{"50/50 Hybrid", cmp.Hybrid, func(m movierank.ScoredMovie) float64 { return m.Combined }},
	}

	rendered := make([]string, len(sections))
	for i, s := range sections {
		tbl := renderTable(s.results, limit, showScores, s.score)
		heading := headerStyle.Render(s.heading)
		rendered[i] = lipgloss.JoinVertical(lipgloss.Center, heading, tbl)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		rendered[0], "   ", rendered[1], "   ", rendered[2])
}

func renderTable(results []movierank.ScoredMovie, limit int, showScores bool, score scorePicker) string {
	headers := []string{"Rank", "Movie", "Year"}
	if showScores {
		headers = append(headers, "Score")
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return columnHeader.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(headers...)

	for i := 0; i < limit; i++ {
		if i >= len(results) {
			tbl.Row(padRow(fmt.Sprintf("%d", i+1), len(headers))...)
			continue
		}

		m := results[i]
		year := ""
		if m.Year != nil {
			year = fmt.Sprintf("%d", *m.Year)
		}
		row := []string{fmt.Sprintf("%d", i+1), truncateTitle(m.Title), year}
		if showScores {
			row = append(row, fmt.Sprintf("%.3f", score(m)))
		}
		tbl.Row(row...)
	}

	return tbl.Render()
}

func padRow(rank string, width int) []string {
	row := make([]string, width)
	row[0] = rank
	return row
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleWidth {
		return title
	}
	return string(runes[:maxTitleWidth]) + "..."
}

// RenderHeader prints the search banner shown above the comparison tables.
func RenderHeader(query string, userID int32, showScores bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Personalized Movie Search"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Query: %q\n", query)
	fmt.Fprintf(&b, "  User ID: %d\n", userID)
	fmt.Fprintf(&b, "  Show Scores: %t\n", showScores)
	b.WriteString(strings.Repeat("=", 80))
	return b.String()
}
