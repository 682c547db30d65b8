// Package normalize flattens raw video payloads into one scalar row per video
// and derives the engagement ratios reporting works from.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/TobiSchelling/NLStats/internal/collect"
	"github.com/TobiSchelling/NLStats/internal/titleparse"
)

// DefaultTimezone is the reporting timezone publish times are converted to.
const DefaultTimezone = "America/New_York"

// Columns are the stable column names of a Row, in order.
var Columns = []string{
	"Video ID",
	"Title",
	"Game",
	"Publish Date",
	"Views",
	"Likes",
	"Comments",
	"Description",
	"Duration (Seconds)",
	"Likes per 1000 Views",
	"Comments per 1000 Views",
}

// Row is one normalized video. Display-only payload fields (thumbnails,
// tags, channel info, localization, content rating) are never carried.
type Row struct {
	VideoID              string
	Title                string
	Game                 string
	PublishDate          time.Time
	Views                int64
	Likes                int64
	Comments             int64
	Description          string
	DurationSeconds      int64
	LikesPer1000Views    *float64
	CommentsPer1000Views *float64
}

// Dataset is the normalized output of one collection.
type Dataset struct {
	Rows []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Stats counts what happened to the input.
type Stats struct {
	Input       int
	Kept        int
	Unparsed    int
	Malformed   int
	BeforeStart int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d in, %d kept, %d without a game, %d malformed, %d before start date",
		s.Input, s.Kept, s.Unparsed, s.Malformed, s.BeforeStart)
}

// Options controls normalization.
type Options struct {
	// Location is the reporting timezone. Nil means DefaultTimezone.
	Location *time.Location
	// Since drops videos published before this calendar date. Zero keeps all.
	Since time.Time
	// Parser infers games from titles. Nil means the default cascade.
	Parser *titleparse.Parser
}

type snippet struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
}

type contentDetails struct {
	Duration string `json:"duration"`
}

type statistics struct {
	ViewCount    *string `json:"viewCount"`
	LikeCount    *string `json:"likeCount"`
	CommentCount *string `json:"commentCount"`
}

// Normalize turns items into rows. Rows whose title yields no game are
// dropped and counted in Stats.Unparsed; rows with unreadable payloads are
// dropped and counted in Stats.Malformed.
func Normalize(items []collect.Item, opts Options) (*Dataset, Stats) {
	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	parser := opts.Parser
	if parser == nil {
		parser = titleparse.Default()
	}

	var since time.Time
	if !opts.Since.IsZero() {
		since = time.Date(opts.Since.Year(), opts.Since.Month(), opts.Since.Day(), 0, 0, 0, 0, loc)
	}

	stats := Stats{Input: len(items)}
	ds := &Dataset{Rows: make([]Row, 0, len(items))}

	for _, item := range items {
		row, err := flatten(item, loc)
		if err != nil {
			log.Printf("warning: skipping video %s: %v", item.ID, err)
			stats.Malformed++
			continue
		}

		if !since.IsZero() && row.PublishDate.Before(since) {
			stats.BeforeStart++
			continue
		}

		game, ok := parser.Parse(row.Title)
		if !ok {
			stats.Unparsed++
			continue
		}
		row.Game = game

		ds.Rows = append(ds.Rows, row)
	}

	stats.Kept = len(ds.Rows)
	return ds, stats
}

func flatten(item collect.Item, loc *time.Location) (Row, error) {
	row := Row{VideoID: item.ID}
	if row.VideoID == "" {
		return row, fmt.Errorf("missing video id")
	}

	var sn snippet
	if err := unmarshalFragment(item.Snippet, &sn); err != nil {
		return row, fmt.Errorf("snippet: %w", err)
	}
	row.Title = sn.Title
	row.Description = sn.Description

	published, err := time.Parse(time.RFC3339, sn.PublishedAt)
	if err != nil {
		return row, fmt.Errorf("publishedAt: %w", err)
	}
	row.PublishDate = published.In(loc)

	var cd contentDetails
	if err := unmarshalFragment(item.ContentDetails, &cd); err != nil {
		return row, fmt.Errorf("contentDetails: %w", err)
	}
	if cd.Duration != "" {
		row.DurationSeconds, err = ParseDuration(cd.Duration)
		if err != nil {
			return row, err
		}
	}

	var st statistics
	if err := unmarshalFragment(item.Statistics, &st); err != nil {
		return row, fmt.Errorf("statistics: %w", err)
	}
	if row.Views, err = parseCount("viewCount", st.ViewCount); err != nil {
		return row, err
	}
	if row.Likes, err = parseCount("likeCount", st.LikeCount); err != nil {
		return row, err
	}
	if row.Comments, err = parseCount("commentCount", st.CommentCount); err != nil {
		return row, err
	}

	row.LikesPer1000Views = PerThousand(row.Likes, row.Views)
	row.CommentsPer1000Views = PerThousand(row.Comments, row.Views)
	return row, nil
}

func unmarshalFragment(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// parseCount reads a decimal count. An absent count (hidden likes, disabled
// comments) is zero.
func parseCount(field string, s *string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(*s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid count %q", field, *s)
	}
	return n, nil
}

// PerThousand returns count per 1000 views rounded to two decimals, or nil
// when views is zero.
func PerThousand(count, views int64) *float64 {
	if views == 0 {
		return nil
	}
	v := Round2(float64(count) * 1000 / float64(views))
	return &v
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
