package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// LeaderboardSize caps the rows shown per leaderboard.
const LeaderboardSize = 50

// Leaderboard is a ranked table ready for display.
type Leaderboard struct {
	Slug    string
	Title   string
	Columns []string
	Rows    []LeaderboardRow
}

// LeaderboardRow is one ranked entry. Cells line up with Columns.
type LeaderboardRow struct {
	Rank  int
	Cells []string
}

// Ranked pairs an item with its rank.
type Ranked[T any] struct {
	Rank int
	Item T
}

// RankDescending sorts items by score, highest first, and ranks them so
// tied items share the lowest rank of their group ("min" method).
// Ties keep their input order.
func RankDescending[T any](items []T, score func(T) float64) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		out[i] = Ranked[T]{Item: it}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i].Item) > score(out[j].Item)
	})
	for i := range out {
		if i > 0 && score(out[i].Item) == score(out[i-1].Item) {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

func buildLeaderboards(videos []Video, games []GameStats) []Leaderboard {
	series := make([]GameStats, 0, len(games))
	for _, g := range games {
		if g.VideoCount > MinSeriesVideos {
			series = append(series, g)
		}
	}

	var rated []Video
	for _, v := range videos {
		if v.LikesPer1000Views != nil {
			rated = append(rated, v)
		}
	}

	return []Leaderboard{
		board("most-viewed-games", "Most Viewed Games", games,
			func(g GameStats) float64 { return float64(g.Views) },
			[]string{"Game", "Views", "Video Count"},
			func(g GameStats) []string { return []string{g.Game, humanize.Comma(g.Views), count(g.VideoCount)} }),
		board("biggest-view-getters", "Biggest View Getters", series,
			func(g GameStats) float64 { return float64(g.AverageViewsPerVideo) },
			[]string{"Game", "Average Views Per Video", "Video Count"},
			func(g GameStats) []string {
				return []string{g.Game, humanize.Comma(g.AverageViewsPerVideo), count(g.VideoCount)}
			}),
		board("most-viewed-videos", "Most Viewed Videos", videos,
			func(v Video) float64 { return float64(v.Views) },
			[]string{"Title", "Publish Date", "Views"},
			func(v Video) []string { return []string{v.Title, day(v.PublishDate), humanize.Comma(v.Views)} }),
		board("highest-like-rate-games", "Highest Like Rate Games", series,
			func(g GameStats) float64 { return g.LikesPer1000Views },
			[]string{"Game", "Likes per 1000 Views", "Video Count"},
			func(g GameStats) []string {
				return []string{g.Game, fmt.Sprintf("%.2f", g.LikesPer1000Views), count(g.VideoCount)}
			}),
		board("biggest-like-getters", "Biggest Like Getters", series,
			func(g GameStats) float64 { return g.AverageLikeRate },
			[]string{"Game", "Average Like Rate Per Video", "Video Count"},
			func(g GameStats) []string {
				return []string{g.Game, fmt.Sprintf("%.2f", g.AverageLikeRate), count(g.VideoCount)}
			}),
		board("highest-like-rate-videos", "Highest Like Rate Videos", rated,
			func(v Video) float64 { return *v.LikesPer1000Views },
			[]string{"Title", "Publish Date", "Likes per 1000 Views", "Views"},
			func(v Video) []string {
				return []string{v.Title, day(v.PublishDate), fmt.Sprintf("%.2f", *v.LikesPer1000Views), humanize.Comma(v.Views)}
			}),
		board("most-published-games", "Most Published Games", games,
			func(g GameStats) float64 { return float64(g.VideoCount) },
			[]string{"Game", "Video Count"},
			func(g GameStats) []string { return []string{g.Game, count(g.VideoCount)} }),
		board("longest-videos", "Longest Videos", videos,
			func(v Video) float64 { return float64(v.DurationSeconds) },
			[]string{"Title", "Publish Date", "Views", "Duration"},
			func(v Video) []string {
				return []string{v.Title, day(v.PublishDate), humanize.Comma(v.Views), FormatDuration(v.DurationSeconds)}
			}),
	}
}

func board[T any](slug, title string, items []T, score func(T) float64, cols []string, cells func(T) []string) Leaderboard {
	ranked := RankDescending(items, score)
	if len(ranked) > LeaderboardSize {
		ranked = ranked[:LeaderboardSize]
	}
	b := Leaderboard{Slug: slug, Title: title, Columns: cols}
	for _, r := range ranked {
		b.Rows = append(b.Rows, LeaderboardRow{Rank: r.Rank, Cells: cells(r.Item)})
	}
	return b
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// FormatDuration renders seconds as H:MM:SS, with a day prefix past 24 hours.
func FormatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	switch {
	case days == 1:
		return fmt.Sprintf("1 day, %d:%02d:%02d", h, m, s)
	case days > 1:
		return fmt.Sprintf("%d days, %d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
