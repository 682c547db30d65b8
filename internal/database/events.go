package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout keeps stored timestamps lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

const eventColumns = "id, run_id, pull_datetime, stage, complete"

// CreateCollectionEvent opens a new event in the open stage.
func (db *DB) CreateCollectionEvent(runID string, pulled time.Time) (*CollectionEvent, error) {
	result, err := db.conn.Exec(
		`INSERT INTO collection_events (run_id, pull_datetime, stage) VALUES (?, ?, ?)`,
		runID, formatTime(pulled), StageOpen,
	)
	if err != nil {
		return nil, persistErr("create collection event", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, persistErr("create collection event", err)
	}
	return &CollectionEvent{
		ID:           id,
		RunID:        runID,
		PullDatetime: pulled.UTC(),
		Stage:        StageOpen,
	}, nil
}

// GetCollectionEvent returns one event by id.
func (db *DB) GetCollectionEvent(id int64) (*CollectionEvent, error) {
	row := db.conn.QueryRow("SELECT "+eventColumns+" FROM collection_events WHERE id = ?", id)
	return scanEvent(row)
}

// GetMostRecentCompleteEvent returns the latest complete event by pull time.
// Reporting reads exclusively through this event.
func (db *DB) GetMostRecentCompleteEvent() (*CollectionEvent, error) {
	row := db.conn.QueryRow(
		"SELECT " + eventColumns + ` FROM collection_events
		WHERE complete = 1 ORDER BY pull_datetime DESC, id DESC LIMIT 1`,
	)
	return scanEvent(row)
}

// GetEarliestCompleteEvent returns the first complete event by pull time.
func (db *DB) GetEarliestCompleteEvent() (*CollectionEvent, error) {
	row := db.conn.QueryRow(
		"SELECT " + eventColumns + ` FROM collection_events
		WHERE complete = 1 ORDER BY pull_datetime ASC, id ASC LIMIT 1`,
	)
	return scanEvent(row)
}

// ListCollectionEvents returns events newest first. A limit <= 0 returns all.
func (db *DB) ListCollectionEvents(limit int) ([]CollectionEvent, error) {
	query := "SELECT " + eventColumns + " FROM collection_events ORDER BY pull_datetime DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CollectionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CompleteCollectionEvent marks a processed event complete. Completion is
// final; any other starting stage returns ErrInvalidTransition.
func (db *DB) CompleteCollectionEvent(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return persistErr("complete collection event", err)
	}
	defer tx.Rollback()

	if err := advanceStage(tx, id, StageProcessed, StageComplete); err != nil {
		return persistErr("complete collection event", err)
	}
	return persistErr("complete collection event", tx.Commit())
}

// advanceStage moves an incomplete event from one stage to the next.
func advanceStage(tx *sql.Tx, id int64, from, to Stage) error {
	if from.Next() != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	complete := 0
	if to == StageComplete {
		complete = 1
	}
	result, err := tx.Exec(
		`UPDATE collection_events SET stage = ?, complete = ?
		WHERE id = ? AND stage = ? AND complete = 0`,
		to, complete, id, from,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current Stage
		err := tx.QueryRow("SELECT stage FROM collection_events WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("collection event %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: event %d is %s, want %s", ErrInvalidTransition, id, current, from)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*CollectionEvent, error) {
	var e CollectionEvent
	var pulled string
	var complete int
	err := s.Scan(&e.ID, &e.RunID, &pulled, &e.Stage, &complete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Complete = complete != 0
	if e.PullDatetime, err = parseTime(pulled); err != nil {
		return nil, fmt.Errorf("event %d pull_datetime: %w", e.ID, err)
	}
	return &e, nil
}
