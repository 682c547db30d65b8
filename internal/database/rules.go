package database

import "fmt"

// AddConversionRule stores a rule. A second rule for the same parsed title
// returns ErrDuplicateRule, which keeps parsed labels disjoint.
func (db *DB) AddConversionRule(parsed, final string) (*ConversionRule, error) {
	result, err := db.conn.Exec(
		"INSERT INTO conversion_rules (parsed_title, final_title) VALUES (?, ?)",
		parsed, final,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%q: %w", parsed, ErrDuplicateRule)
	}
	if err != nil {
		return nil, persistErr("add conversion rule", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &ConversionRule{ID: id, ParsedTitle: parsed, FinalTitle: final}, nil
}

// ListConversionRules returns all rules in table order.
func (db *DB) ListConversionRules() ([]ConversionRule, error) {
	rows, err := db.conn.Query("SELECT id, parsed_title, final_title FROM conversion_rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []ConversionRule
	for rows.Next() {
		var r ConversionRule
		if err := rows.Scan(&r.ID, &r.ParsedTitle, &r.FinalTitle); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// RemoveConversionRule deletes a rule by id.
func (db *DB) RemoveConversionRule(id int64) error {
	return db.deleteByID("conversion_rules", id)
}

// AddVideoConversionRule pins the game of one video.
func (db *DB) AddVideoConversionRule(videoID, final string) (*VideoConversionRule, error) {
	result, err := db.conn.Exec(
		"INSERT INTO video_conversion_rules (video_id, final_title) VALUES (?, ?)",
		videoID, final,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrDuplicateRule)
	}
	if err != nil {
		return nil, persistErr("add video conversion rule", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &VideoConversionRule{ID: id, VideoID: videoID, FinalTitle: final}, nil
}

// ListVideoConversionRules returns all per-video rules in table order.
func (db *DB) ListVideoConversionRules() ([]VideoConversionRule, error) {
	rows, err := db.conn.Query("SELECT id, video_id, final_title FROM video_conversion_rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []VideoConversionRule
	for rows.Next() {
		var r VideoConversionRule
		if err := rows.Scan(&r.ID, &r.VideoID, &r.FinalTitle); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// RemoveVideoConversionRule deletes a per-video rule by id.
func (db *DB) RemoveVideoConversionRule(id int64) error {
	return db.deleteByID("video_conversion_rules", id)
}

func (db *DB) deleteByID(table string, id int64) error {
	result, err := db.conn.Exec("DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return persistErr("delete from "+table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}
