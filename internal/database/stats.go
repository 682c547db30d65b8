package database

import (
	"database/sql"
	"errors"
	"fmt"
)

const videoStatSelect = `SELECT v.id, v.title, v.description, v.game, v.duration_seconds, v.publish_date,
		e.id, e.pull_datetime, s.views, s.likes, s.comments,
		s.likes_per_1000_views, s.comments_per_1000_views
	FROM processed_stats s
	JOIN videos v ON v.id = s.video_id
	JOIN collection_events e ON e.id = s.collection_event_id`

// GetCurrentVideoStats joins every video with its snapshot from the most
// recent complete event. It returns ErrNotFound if no event is complete.
func (db *DB) GetCurrentVideoStats() ([]VideoStat, error) {
	event, err := db.GetMostRecentCompleteEvent()
	if err != nil {
		return nil, err
	}
	return db.GetVideoStatsForEvent(event.ID)
}

// GetVideoStatsForEvent returns the snapshots of one event, newest video first.
func (db *DB) GetVideoStatsForEvent(eventID int64) ([]VideoStat, error) {
	return db.queryVideoStats(videoStatSelect+`
	WHERE e.id = ?
	ORDER BY v.publish_date DESC, v.id`, eventID)
}

// GetAllVideoStats returns every snapshot of every complete event, oldest
// pull first.
func (db *DB) GetAllVideoStats() ([]VideoStat, error) {
	return db.queryVideoStats(videoStatSelect + `
	WHERE e.complete = 1
	ORDER BY e.pull_datetime, v.id`)
}

// GetVideoHistory returns the snapshots of one video across complete events,
// oldest first.
func (db *DB) GetVideoHistory(videoID string) ([]VideoStat, error) {
	return db.queryVideoStats(videoStatSelect+`
	WHERE e.complete = 1 AND v.id = ?
	ORDER BY e.pull_datetime`, videoID)
}

func (db *DB) queryVideoStats(query string, args ...any) ([]VideoStat, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []VideoStat
	for rows.Next() {
		var s VideoStat
		var pulled string
		var game, published sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &game, &duration, &published,
			&s.CollectionEventID, &pulled, &s.Views, &s.Likes, &s.Comments,
			&s.LikesPer1000Views, &s.CommentsPer1000Views); err != nil {
			return nil, err
		}
		s.Game = game.String
		s.DurationSeconds = duration.Int64
		if published.Valid {
			t, err := parseTime(published.String)
			if err != nil {
				return nil, fmt.Errorf("video %s publish_date: %w", s.ID, err)
			}
			s.PublishDate = &t
		}
		if s.PullDatetime, err = parseTime(pulled); err != nil {
			return nil, fmt.Errorf("event %d pull_datetime: %w", s.CollectionEventID, err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM collection_events", &s.Events},
		{"SELECT COUNT(*) FROM collection_events WHERE complete = 1", &s.CompleteEvents},
		{"SELECT COUNT(*) FROM videos", &s.Videos},
		{"SELECT COUNT(*) FROM raw_items", &s.RawItems},
		{"SELECT COUNT(*) FROM processed_stats", &s.ProcessedStats},
		{"SELECT COUNT(*) FROM conversion_rules", &s.ConversionRules},
		{"SELECT COUNT(*) FROM video_conversion_rules", &s.VideoConversionRules},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	if latest, err := db.GetMostRecentCompleteEvent(); err == nil {
		s.LatestComplete = &latest.PullDatetime
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if earliest, err := db.GetEarliestCompleteEvent(); err == nil {
		s.EarliestComplete = &earliest.PullDatetime
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s, nil
}
