package report

import (
	"time"

	"github.com/TobiSchelling/NLStats/internal/database"
)

// PullTotal sums the channel over one complete collection event.
type PullTotal struct {
	EventID  int64
	PulledAt time.Time
	Videos   int
	Views    int64
	Likes    int64
	Comments int64
	// ViewsGained is the change in total views since the previous pull.
	ViewsGained int64
}

// ChannelHistory sums snapshots per collection event. Stats must be grouped
// by event in pull order, as GetAllVideoStats returns them.
func ChannelHistory(stats []database.VideoStat) []PullTotal {
	var out []PullTotal
	for _, s := range stats {
		if len(out) == 0 || out[len(out)-1].EventID != s.CollectionEventID {
			out = append(out, PullTotal{EventID: s.CollectionEventID, PulledAt: s.PullDatetime})
		}
		t := &out[len(out)-1]
		t.Videos++
		t.Views += s.Views
		t.Likes += s.Likes
		t.Comments += s.Comments
	}
	for i := 1; i < len(out); i++ {
		out[i].ViewsGained = out[i].Views - out[i-1].Views
	}
	return out
}
