package normalize

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/TobiSchelling/NLStats/internal/collect"
)

func makeItem(id, title, published, duration string, stats string) collect.Item {
	return collect.Item{
		ID:             id,
		Kind:           "youtube#video",
		Etag:           "etag-" + id,
		Snippet:        json.RawMessage(fmt.Sprintf(`{"title":%q,"description":"desc %s","publishedAt":%q,"thumbnails":{"default":{"url":"x"}},"channelTitle":"Northernlion"}`, title, id, published)),
		ContentDetails: json.RawMessage(fmt.Sprintf(`{"duration":%q,"definition":"hd"}`, duration)),
		Statistics:     json.RawMessage(stats),
	}
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading timezone: %v", err)
	}
	return loc
}

func TestNormalizeXcomScenario(t *testing.T) {
	items := []collect.Item{
		makeItem("vid1", "Let's Play: XCOM: Enemy Within! [Episode 19]", "2014-01-15T17:00:00Z", "PT24M10S",
			`{"viewCount":"45678","likeCount":"1200","commentCount":"90"}`),
	}

	ds, stats := Normalize(items, Options{Location: newYork(t)})
	if stats.Kept != 1 || ds.Len() != 1 {
		t.Fatalf("expected 1 row, got %d (%s)", ds.Len(), stats)
	}

	row := ds.Rows[0]
	if row.Game != "XCOM: Enemy Within" {
		t.Errorf("Game = %q", row.Game)
	}
	if row.Views != 45678 || row.Likes != 1200 || row.Comments != 90 {
		t.Errorf("counts = %d/%d/%d", row.Views, row.Likes, row.Comments)
	}
	if row.DurationSeconds != 24*60+10 {
		t.Errorf("DurationSeconds = %d", row.DurationSeconds)
	}
	if row.LikesPer1000Views == nil || *row.LikesPer1000Views != 26.27 {
		t.Errorf("LikesPer1000Views = %v, want 26.27", row.LikesPer1000Views)
	}
	if row.CommentsPer1000Views == nil || *row.CommentsPer1000Views != 1.97 {
		t.Errorf("CommentsPer1000Views = %v, want 1.97", row.CommentsPer1000Views)
	}
	if row.Description != "desc vid1" {
		t.Errorf("Description = %q", row.Description)
	}
}

func TestNormalizeConvertsTimezone(t *testing.T) {
	loc := newYork(t)
	items := []collect.Item{
		makeItem("v", "Let's Play: Spelunky", "2020-07-01T02:30:00Z", "PT1M", `{"viewCount":"1"}`),
	}

	ds, _ := Normalize(items, Options{Location: loc})
	got := ds.Rows[0].PublishDate
	if got.Location().String() != "America/New_York" {
		t.Errorf("location = %s", got.Location())
	}
	// 02:30 UTC is the previous evening on the east coast.
	if got.Day() != 30 || got.Month() != time.June || got.Hour() != 22 {
		t.Errorf("PublishDate = %s", got)
	}
}

func TestNormalizeZeroViewsHasNilRatios(t *testing.T) {
	items := []collect.Item{
		makeItem("v", "Let's Play: Spelunky", "2020-07-01T12:00:00Z", "PT1M",
			`{"viewCount":"0","likeCount":"0","commentCount":"0"}`),
	}

	ds, _ := Normalize(items, Options{})
	row := ds.Rows[0]
	if row.LikesPer1000Views != nil || row.CommentsPer1000Views != nil {
		t.Errorf("ratios = %v/%v, want nil", row.LikesPer1000Views, row.CommentsPer1000Views)
	}
}

func TestNormalizeMissingCountsAreZero(t *testing.T) {
	items := []collect.Item{
		makeItem("v", "Let's Play: Spelunky", "2020-07-01T12:00:00Z", "PT1M", `{"viewCount":"500"}`),
	}

	ds, stats := Normalize(items, Options{})
	if stats.Malformed != 0 {
		t.Fatalf("Malformed = %d", stats.Malformed)
	}
	row := ds.Rows[0]
	if row.Likes != 0 || row.Comments != 0 {
		t.Errorf("Likes/Comments = %d/%d", row.Likes, row.Comments)
	}
	if row.LikesPer1000Views == nil || *row.LikesPer1000Views != 0 {
		t.Errorf("LikesPer1000Views = %v, want 0", row.LikesPer1000Views)
	}
}

func TestNormalizeCountsDrops(t *testing.T) {
	items := []collect.Item{
		makeItem("ok", "Let's Play: Spelunky", "2020-07-01T12:00:00Z", "PT1M", `{"viewCount":"5"}`),
		makeItem("vlog", "Just talking today", "2020-07-01T12:00:00Z", "PT1M", `{"viewCount":"5"}`),
		makeItem("bad", "Let's Play: Spelunky", "2020-07-01T12:00:00Z", "PT1M", `{"viewCount":"lots"}`),
		makeItem("old", "Let's Play: Spelunky", "2009-01-01T12:00:00Z", "PT1M", `{"viewCount":"5"}`),
		{ID: "broken", Snippet: json.RawMessage(`{not json`)},
	}

	ds, stats := Normalize(items, Options{Since: time.Date(2010, 11, 8, 0, 0, 0, 0, time.UTC)})
	want := Stats{Input: 5, Kept: 1, Unparsed: 1, Malformed: 2, BeforeStart: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if ds.Rows[0].VideoID != "ok" {
		t.Errorf("kept %q", ds.Rows[0].VideoID)
	}
}

func TestNormalizeStartDateIsInclusive(t *testing.T) {
	loc := newYork(t)
	items := []collect.Item{
		// 2010-11-08 00:30 in New York.
		makeItem("first", "Let's Play: Spelunky", "2010-11-08T05:30:00Z", "PT1M", `{"viewCount":"5"}`),
		// 2010-11-07 23:30 in New York.
		makeItem("early", "Let's Play: Spelunky", "2010-11-08T04:30:00Z", "PT1M", `{"viewCount":"5"}`),
	}

	ds, stats := Normalize(items, Options{Location: loc, Since: time.Date(2010, 11, 8, 0, 0, 0, 0, time.UTC)})
	if ds.Len() != 1 || ds.Rows[0].VideoID != "first" || stats.BeforeStart != 1 {
		t.Errorf("rows = %+v, stats = %+v", ds.Rows, stats)
	}
}

func TestColumnsStable(t *testing.T) {
	want := []string{
		"Video ID", "Title", "Game", "Publish Date", "Views", "Likes", "Comments",
		"Description", "Duration (Seconds)", "Likes per 1000 Views", "Comments per 1000 Views",
	}
	if len(Columns) != len(want) {
		t.Fatalf("Columns = %v", Columns)
	}
	for i := range want {
		if Columns[i] != want[i] {
			t.Errorf("Columns[%d] = %q, want %q", i, Columns[i], want[i])
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"PT0S", 0},
		{"P0D", 0},
		{"PT45S", 45},
		{"PT24M10S", 1450},
		{"PT1H", 3600},
		{"PT2H3M4S", 7384},
		{"P1DT2H", 93600},
		{"P1W", 604800},
		{"PT1.5S", 1},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "P", "PT", "1H", "PT5", "P1H", "PT1D", "P1Y", "PTxS"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) accepted", bad)
		}
	}
}

func TestPerThousand(t *testing.T) {
	if PerThousand(5, 0) != nil {
		t.Error("zero views must give nil")
	}
	if got := PerThousand(1, 3); *got != 333.33 {
		t.Errorf("PerThousand(1, 3) = %v", *got)
	}
	if got := PerThousand(2, 3); *got != 666.67 {
		t.Errorf("PerThousand(2, 3) = %v", *got)
	}
}
