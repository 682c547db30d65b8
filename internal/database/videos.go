package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertVideoSQL = `INSERT INTO videos (id, title, description, game, duration_seconds, publish_date, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		game = excluded.game,
		duration_seconds = excluded.duration_seconds,
		publish_date = excluded.publish_date,
		updated_at = excluded.updated_at`

// PersistRaw appends the raw payloads of one event and moves it from open to
// raw_persisted. Videos not seen before get a stub row. Everything happens in
// one transaction; on error nothing is written and the stage is unchanged.
func (db *DB) PersistRaw(eventID int64, items []RawItem) error {
	const op = "persist raw items"

	tx, err := db.conn.Begin()
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	stub, err := tx.Prepare(`INSERT INTO videos (id) VALUES (?) ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return persistErr(op, err)
	}
	defer stub.Close()

	insert, err := tx.Prepare(
		`INSERT INTO raw_items (video_id, collection_event_id, kind, etag, snippet, content_details, statistics)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return persistErr(op, err)
	}
	defer insert.Close()

	for _, it := range items {
		if _, err := stub.Exec(it.VideoID); err != nil {
			return persistErr(op, fmt.Errorf("video %s: %w", it.VideoID, err))
		}
		if _, err := insert.Exec(it.VideoID, eventID, it.Kind, it.Etag,
			it.Snippet, it.ContentDetails, it.Statistics); err != nil {
			return persistErr(op, fmt.Errorf("video %s: %w", it.VideoID, err))
		}
	}

	if err := advanceStage(tx, eventID, StageOpen, StageRawPersisted); err != nil {
		return persistErr(op, err)
	}
	return persistErr(op, tx.Commit())
}

// PersistProcessed upserts video fields, appends the event's stat snapshots
// and moves it from raw_persisted to processed, in one transaction.
func (db *DB) PersistProcessed(eventID int64, videos []Video, stats []ProcessedStat) error {
	const op = "persist processed stats"

	tx, err := db.conn.Begin()
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	upsert, err := tx.Prepare(upsertVideoSQL)
	if err != nil {
		return persistErr(op, err)
	}
	defer upsert.Close()

	for _, v := range videos {
		if _, err := upsert.Exec(videoArgs(v)...); err != nil {
			return persistErr(op, fmt.Errorf("video %s: %w", v.ID, err))
		}
	}

	insert, err := tx.Prepare(
		`INSERT INTO processed_stats (video_id, collection_event_id, views, likes, comments,
			likes_per_1000_views, comments_per_1000_views)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return persistErr(op, err)
	}
	defer insert.Close()

	for _, s := range stats {
		if _, err := insert.Exec(s.VideoID, eventID, s.Views, s.Likes, s.Comments,
			s.LikesPer1000Views, s.CommentsPer1000Views); err != nil {
			return persistErr(op, fmt.Errorf("video %s: %w", s.VideoID, err))
		}
	}

	if err := advanceStage(tx, eventID, StageRawPersisted, StageProcessed); err != nil {
		return persistErr(op, err)
	}
	return persistErr(op, tx.Commit())
}

// GetVideo returns a video by platform id.
func (db *DB) GetVideo(id string) (*Video, error) {
	row := db.conn.QueryRow(
		`SELECT id, title, description, game, duration_seconds, publish_date
		FROM videos WHERE id = ?`, id,
	)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// GameUpdater rewrites the game of stored videos.
type GameUpdater interface {
	// RenameGame sets game to final on every video whose game equals parsed.
	RenameGame(parsed, final string) (int64, error)
	// SetVideoGame sets the game of one video.
	SetVideoGame(videoID, game string) (int64, error)
}

type gameTx struct {
	tx *sql.Tx
}

func (g gameTx) RenameGame(parsed, final string) (int64, error) {
	return g.update("rename game",
		"UPDATE videos SET game = ?, updated_at = datetime('now') WHERE game = ?",
		final, parsed)
}

func (g gameTx) SetVideoGame(videoID, game string) (int64, error) {
	return g.update("set video game",
		"UPDATE videos SET game = ?, updated_at = datetime('now') WHERE id = ?",
		game, videoID)
}

func (g gameTx) update(op, query string, args ...any) (int64, error) {
	result, err := g.tx.Exec(query, args...)
	if err != nil {
		return 0, persistErr(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr(op, err)
	}
	return n, nil
}

// UpdateGames runs fn inside one transaction. When fn returns an error every
// rewrite it made is rolled back and the error is returned unchanged.
func (db *DB) UpdateGames(fn func(GameUpdater) error) error {
	const op = "update games"

	tx, err := db.conn.Begin()
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(gameTx{tx: tx}); err != nil {
		return err
	}
	return persistErr(op, tx.Commit())
}

func videoArgs(v Video) []any {
	var game *string
	if v.Game != "" {
		game = &v.Game
	}
	var published *string
	if v.PublishDate != nil {
		s := v.PublishDate.Format(time.RFC3339)
		published = &s
	}
	return []any{v.ID, v.Title, v.Description, game, v.DurationSeconds, published}
}

func scanVideo(s scanner) (*Video, error) {
	var v Video
	var game, published sql.NullString
	var duration sql.NullInt64
	if err := s.Scan(&v.ID, &v.Title, &v.Description, &game, &duration, &published); err != nil {
		return nil, err
	}
	v.Game = game.String
	v.DurationSeconds = duration.Int64
	if published.Valid {
		t, err := time.Parse(time.RFC3339, published.String)
		if err != nil {
			return nil, fmt.Errorf("video %s publish_date: %w", v.ID, err)
		}
		v.PublishDate = &t
	}
	return &v, nil
}
