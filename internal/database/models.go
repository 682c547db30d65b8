package database

import "time"

// Stage is the lifecycle position of a collection event.
type Stage string

const (
	StageOpen         Stage = "open"
	StageRawPersisted Stage = "raw_persisted"
	StageProcessed    Stage = "processed"
	StageComplete     Stage = "complete"
)

// Next returns the stage that follows s, or "" if s is terminal.
func (s Stage) Next() Stage {
	switch s {
	case StageOpen:
		return StageRawPersisted
	case StageRawPersisted:
		return StageProcessed
	case StageProcessed:
		return StageComplete
	}
	return ""
}

// CollectionEvent is one ingestion run.
type CollectionEvent struct {
	ID           int64
	RunID        string
	PullDatetime time.Time
	Stage        Stage
	Complete     bool
}

// RawItem is the captured payload of one video in one run. The payload
// fragments are serialized JSON.
type RawItem struct {
	ID                int64
	VideoID           string
	CollectionEventID int64
	Kind              string
	Etag              string
	Snippet           string
	ContentDetails    string
	Statistics        string
}

// Video holds the slowly changing fields of a video, keyed by platform id.
type Video struct {
	ID              string
	Title           string
	Description     string
	Game            string
	DurationSeconds int64
	PublishDate     *time.Time
}

// ProcessedStat is a point-in-time engagement snapshot of one video.
type ProcessedStat struct {
	ID                   int64
	VideoID              string
	CollectionEventID    int64
	Views                int64
	Likes                int64
	Comments             int64
	LikesPer1000Views    *float64
	CommentsPer1000Views *float64
}

// ConversionRule rewrites a parsed game label to its canonical name.
type ConversionRule struct {
	ID          int64
	ParsedTitle string
	FinalTitle  string
}

// VideoConversionRule pins the game of a single video.
type VideoConversionRule struct {
	ID         int64
	VideoID    string
	FinalTitle string
}

// VideoStat joins a video with one of its snapshots.
type VideoStat struct {
	Video
	CollectionEventID    int64
	PullDatetime         time.Time
	Views                int64
	Likes                int64
	Comments             int64
	LikesPer1000Views    *float64
	CommentsPer1000Views *float64
}

// Stats contains aggregate database statistics.
type Stats struct {
	Events               int
	CompleteEvents       int
	Videos               int
	RawItems             int
	ProcessedStats       int
	ConversionRules      int
	VideoConversionRules int
	LatestComplete       *time.Time
	EarliestComplete     *time.Time
}
