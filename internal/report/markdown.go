package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Markdown renders the snapshot as a markdown document. topN limits every
// table; zero means LeaderboardSize.
func Markdown(s *Snapshot, topN int) string {
	if topN <= 0 || topN > LeaderboardSize {
		topN = LeaderboardSize
	}

	var b strings.Builder
	b.WriteString("# Channel Stats\n\n")
	if !s.PulledAt.IsZero() {
		fmt.Fprintf(&b, "Collection event %d, pulled %s.\n\n", s.EventID, s.PulledAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "%s videos across %s games, %s total views.\n\n",
		humanize.Comma(int64(len(s.Videos))), humanize.Comma(int64(len(s.Games))), humanize.Comma(s.TotalViews()))

	for _, lb := range s.Leaderboards {
		fmt.Fprintf(&b, "## %s\n\n", lb.Title)
		if len(lb.Rows) == 0 {
			b.WriteString("_No entries._\n\n")
			continue
		}
		writeTable(&b, append([]string{"Rank"}, lb.Columns...), limitRows(lb.Rows, topN))
	}

	if len(s.Monthly) > 0 {
		b.WriteString("## Top Game Per Month\n\n")
		var rows [][]string
		for i := len(s.Monthly) - 1; i >= 0 && len(rows) < topN; i-- {
			m := s.Monthly[i]
			rows = append(rows, []string{m.Month.Format("2006 January"), m.Game, count(m.GameCount), count(m.TotalVideos)})
		}
		writeTable(&b, []string{"Month", "Game", "Game Count", "Total Videos"}, rows)
	}

	return b.String()
}

func limitRows(rows []LeaderboardRow, n int) [][]string {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string{fmt.Sprint(r.Rank)}, r.Cells...)
	}
	return out
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
}
