package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS collection_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    pull_datetime TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT 'open'
        CHECK(stage IN ('open', 'raw_persisted', 'processed', 'complete')),
    complete INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    game TEXT,
    duration_seconds INTEGER,
    publish_date TEXT,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL REFERENCES videos(id),
    collection_event_id INTEGER NOT NULL REFERENCES collection_events(id),
    kind TEXT,
    etag TEXT,
    snippet TEXT,
    content_details TEXT,
    statistics TEXT
);

CREATE TABLE IF NOT EXISTS processed_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL REFERENCES videos(id),
    collection_event_id INTEGER NOT NULL REFERENCES collection_events(id),
    views INTEGER NOT NULL DEFAULT 0,
    likes INTEGER NOT NULL DEFAULT 0,
    comments INTEGER NOT NULL DEFAULT 0,
    likes_per_1000_views REAL,
    comments_per_1000_views REAL,
    UNIQUE(video_id, collection_event_id)
);

CREATE TABLE IF NOT EXISTS conversion_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    parsed_title TEXT UNIQUE NOT NULL,
    final_title TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_collection_events_pull ON collection_events(pull_datetime);
CREATE INDEX IF NOT EXISTS idx_raw_items_event ON raw_items(collection_event_id);
CREATE INDEX IF NOT EXISTS idx_processed_stats_event ON processed_stats(collection_event_id);
CREATE INDEX IF NOT EXISTS idx_processed_stats_video ON processed_stats(video_id);
CREATE INDEX IF NOT EXISTS idx_videos_game ON videos(game);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "per-video conversion rules",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS video_conversion_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT UNIQUE NOT NULL,
    final_title TEXT NOT NULL
);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
