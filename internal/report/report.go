// Package report materializes the statistics the dashboard and the report
// command show: per-game aggregates, ranked leaderboards, the top game of
// every month and views published per week.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/NLStats/internal/database"
	"github.com/TobiSchelling/NLStats/internal/normalize"
)

// MinSeriesVideos is the video count a game needs to exceed to appear on the
// per-video average leaderboards.
const MinSeriesVideos = 4

// Video is one video as the reports see it.
type Video struct {
	ID                   string
	Title                string
	Game                 string
	PublishDate          time.Time
	Views                int64
	Likes                int64
	Comments             int64
	DurationSeconds      int64
	LikesPer1000Views    *float64
	CommentsPer1000Views *float64
}

// GameStats aggregates the videos of one game.
type GameStats struct {
	Game                 string
	Views                int64
	Likes                int64
	VideoCount           int
	LikesPer1000Views    float64
	AverageViewsPerVideo int64
	AverageLikeRate      float64
}

// MonthlyTop is the most uploaded game of a calendar month. Month is the
// first of the month at UTC midnight.
type MonthlyTop struct {
	Month       time.Time
	Game        string
	GameCount   int
	TotalVideos int
}

// WeeklyViews sums the views of videos published in the week ending WeekEnd.
type WeeklyViews struct {
	WeekEnd time.Time
	Views   int64
}

// Snapshot is everything reported about one complete collection event.
type Snapshot struct {
	EventID      int64
	PulledAt     time.Time
	Videos       []Video
	Games        []GameStats
	Leaderboards []Leaderboard
	Monthly      []MonthlyTop
	Weekly       []WeeklyViews
}

// TotalViews sums views over all videos.
func (s *Snapshot) TotalViews() int64 {
	var total int64
	for _, v := range s.Videos {
		total += v.Views
	}
	return total
}

// Leaderboard returns the leaderboard with the given slug, or nil.
func (s *Snapshot) Leaderboard(slug string) *Leaderboard {
	for i := range s.Leaderboards {
		if s.Leaderboards[i].Slug == slug {
			return &s.Leaderboards[i]
		}
	}
	return nil
}

// FromVideoStats converts joined database rows to report videos.
func FromVideoStats(stats []database.VideoStat) []Video {
	videos := make([]Video, 0, len(stats))
	for _, s := range stats {
		v := Video{
			ID:                   s.ID,
			Title:                s.Title,
			Game:                 s.Game,
			Views:                s.Views,
			Likes:                s.Likes,
			Comments:             s.Comments,
			DurationSeconds:      s.DurationSeconds,
			LikesPer1000Views:    s.LikesPer1000Views,
			CommentsPer1000Views: s.CommentsPer1000Views,
		}
		if s.PublishDate != nil {
			v.PublishDate = *s.PublishDate
		}
		videos = append(videos, v)
	}
	return videos
}

// FromRows converts normalized rows to report videos.
func FromRows(rows []normalize.Row) []Video {
	videos := make([]Video, len(rows))
	for i, r := range rows {
		videos[i] = Video{
			ID:                   r.VideoID,
			Title:                r.Title,
			Game:                 r.Game,
			PublishDate:          r.PublishDate,
			Views:                r.Views,
			Likes:                r.Likes,
			Comments:             r.Comments,
			DurationSeconds:      r.DurationSeconds,
			LikesPer1000Views:    r.LikesPer1000Views,
			CommentsPer1000Views: r.CommentsPer1000Views,
		}
	}
	return videos
}

// Build computes a snapshot from videos. Videos without a game only count
// toward the per-video leaderboards and the weekly series.
func Build(videos []Video) *Snapshot {
	s := &Snapshot{Videos: videos}
	s.Games = PerGameStats(videos)
	s.Leaderboards = buildLeaderboards(videos, s.Games)
	s.Monthly = MonthlyTopGames(videos)
	s.Weekly = WeeklyViewSeries(videos)
	return s
}

// PerGameStats aggregates videos by game, most viewed first.
func PerGameStats(videos []Video) []GameStats {
	byGame := make(map[string]*GameStats)
	for _, v := range videos {
		if v.Game == "" {
			continue
		}
		g, ok := byGame[v.Game]
		if !ok {
			g = &GameStats{Game: v.Game}
			byGame[v.Game] = g
		}
		g.Views += v.Views
		g.Likes += v.Likes
		g.VideoCount++
	}

	games := make([]GameStats, 0, len(byGame))
	for _, g := range byGame {
		if g.Views > 0 {
			g.LikesPer1000Views = float64(g.Likes) / (float64(g.Views) / 1000)
		}
		g.AverageViewsPerVideo = g.Views / int64(g.VideoCount)
		g.AverageLikeRate = g.LikesPer1000Views / float64(g.VideoCount)
		games = append(games, *g)
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].Views != games[j].Views {
			return games[i].Views > games[j].Views
		}
		return games[i].Game < games[j].Game
	})
	return games
}

// MonthlyTopGames returns the most uploaded game per publish month, oldest
// month first. Tied games are joined with ", ".
func MonthlyTopGames(videos []Video) []MonthlyTop {
	type monthKey struct {
		year  int
		month time.Month
	}
	counts := make(map[monthKey]map[string]int)
	totals := make(map[monthKey]int)

	for _, v := range videos {
		if v.Game == "" || v.PublishDate.IsZero() {
			continue
		}
		k := monthKey{v.PublishDate.Year(), v.PublishDate.Month()}
		if counts[k] == nil {
			counts[k] = make(map[string]int)
		}
		counts[k][v.Game]++
		totals[k]++
	}

	out := make([]MonthlyTop, 0, len(counts))
	for k, games := range counts {
		best := 0
		var top []string
		for game, n := range games {
			switch {
			case n > best:
				best, top = n, []string{game}
			case n == best:
				top = append(top, game)
			}
		}
		sort.Strings(top)
		out = append(out, MonthlyTop{
			Month:       time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC),
			Game:        strings.Join(top, ", "),
			GameCount:   best,
			TotalVideos: totals[k],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// WeeklyViewSeries sums views by publish week. Weeks end on Sunday and
// weeks without uploads appear with zero views. Week ends are calendar dates
// at UTC midnight.
func WeeklyViewSeries(videos []Video) []WeeklyViews {
	sums := make(map[time.Time]int64)
	var first, last time.Time
	for _, v := range videos {
		if v.PublishDate.IsZero() {
			continue
		}
		end := weekEnd(v.PublishDate)
		sums[end] += v.Views
		if first.IsZero() || end.Before(first) {
			first = end
		}
		if last.IsZero() || end.After(last) {
			last = end
		}
	}
	if first.IsZero() {
		return nil
	}

	var out []WeeklyViews
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		out = append(out, WeeklyViews{WeekEnd: w, Views: sums[w]})
	}
	return out
}

// weekEnd returns the Sunday on or after t's calendar date.
func weekEnd(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}
