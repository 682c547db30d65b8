// Package localcache keeps dated parquet snapshots of raw and processed
// payloads on disk, so a pull can be reprocessed without spending quota.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/TobiSchelling/NLStats/internal/collect"
	"github.com/TobiSchelling/NLStats/internal/normalize"
)

const (
	rawPrefix       = "raw_youtube_"
	processedPrefix = "youtube_"
	dateLayout      = "2006_01_02"

	// LookbackDays is how many days, today included, are searched for a file.
	LookbackDays = 7
)

// ErrNoRecentFile is returned when no cache file exists within LookbackDays.
var ErrNoRecentFile = errors.New("no recent local cache file")

type rawRecord struct {
	ID             string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind           string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Etag           string `parquet:"name=etag, type=BYTE_ARRAY, convertedtype=UTF8"`
	Snippet        string `parquet:"name=snippet, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContentDetails string `parquet:"name=content_details, type=BYTE_ARRAY, convertedtype=UTF8"`
	Statistics     string `parquet:"name=statistics, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type processedRecord struct {
	VideoID              string   `parquet:"name=video_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title                string   `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Game                 string   `parquet:"name=game, type=BYTE_ARRAY, convertedtype=UTF8"`
	PublishDate          string   `parquet:"name=publish_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Views                int64    `parquet:"name=views, type=INT64"`
	Likes                int64    `parquet:"name=likes, type=INT64"`
	Comments             int64    `parquet:"name=comments, type=INT64"`
	Description          string   `parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	DurationSeconds      int64    `parquet:"name=duration_seconds, type=INT64"`
	LikesPer1000Views    *float64 `parquet:"name=likes_per_1000_views, type=DOUBLE, repetitiontype=OPTIONAL"`
	CommentsPer1000Views *float64 `parquet:"name=comments_per_1000_views, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// Cache reads and writes dated snapshot files under one directory.
type Cache struct {
	dir string
	now func() time.Time
}

// New creates a Cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{dir: dir, now: time.Now}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// RawPath returns the raw snapshot path for the given day.
func (c *Cache) RawPath(day time.Time) string {
	return filepath.Join(c.dir, rawPrefix+day.Format(dateLayout)+".parquet")
}

// ProcessedPath returns the processed snapshot path for the given day.
func (c *Cache) ProcessedPath(day time.Time) string {
	return filepath.Join(c.dir, processedPrefix+day.Format(dateLayout)+".parquet")
}

// WriteRaw stores items as today's raw snapshot and returns the file path.
func (c *Cache) WriteRaw(items []collect.Item) (string, error) {
	records := make([]rawRecord, len(items))
	for i, it := range items {
		records[i] = rawRecord{
			ID:             it.ID,
			Kind:           it.Kind,
			Etag:           it.Etag,
			Snippet:        string(it.Snippet),
			ContentDetails: string(it.ContentDetails),
			Statistics:     string(it.Statistics),
		}
	}

	path := c.RawPath(c.now())
	if err := writeFile(path, new(rawRecord), func(pw *writer.ParquetWriter) error {
		for _, r := range records {
			if err := pw.Write(r); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("writing raw cache: %w", err)
	}
	log.Printf("Wrote %d raw items to %s", len(records), path)
	return path, nil
}

// ReadLatestRaw returns the items of the newest raw snapshot within the
// lookback window, and the file they came from.
func (c *Cache) ReadLatestRaw() ([]collect.Item, string, error) {
	path, err := c.latest(c.RawPath)
	if err != nil {
		return nil, "", err
	}

	var records []rawRecord
	if err := readFile(path, new(rawRecord), &records); err != nil {
		return nil, path, fmt.Errorf("reading raw cache %s: %w", path, err)
	}

	items := make([]collect.Item, len(records))
	for i, r := range records {
		items[i] = collect.Item{
			ID:             r.ID,
			Kind:           r.Kind,
			Etag:           r.Etag,
			Snippet:        rawJSON(r.Snippet),
			ContentDetails: rawJSON(r.ContentDetails),
			Statistics:     rawJSON(r.Statistics),
		}
	}
	return items, path, nil
}

// WriteProcessed stores rows as today's processed snapshot.
func (c *Cache) WriteProcessed(rows []normalize.Row) (string, error) {
	path := c.ProcessedPath(c.now())
	if err := writeFile(path, new(processedRecord), func(pw *writer.ParquetWriter) error {
		for _, row := range rows {
			if err := pw.Write(toProcessedRecord(row)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("writing processed cache: %w", err)
	}
	log.Printf("Wrote %d processed rows to %s", len(rows), path)
	return path, nil
}

// ReadLatestProcessed returns the rows of the newest processed snapshot
// within the lookback window.
func (c *Cache) ReadLatestProcessed() ([]normalize.Row, string, error) {
	path, err := c.latest(c.ProcessedPath)
	if err != nil {
		return nil, "", err
	}

	var records []processedRecord
	if err := readFile(path, new(processedRecord), &records); err != nil {
		return nil, path, fmt.Errorf("reading processed cache %s: %w", path, err)
	}

	rows := make([]normalize.Row, 0, len(records))
	for _, r := range records {
		row, err := fromProcessedRecord(r)
		if err != nil {
			return nil, path, err
		}
		rows = append(rows, row)
	}
	return rows, path, nil
}

// latest finds the newest existing file for today and the days before it.
func (c *Cache) latest(pathFor func(time.Time) string) (string, error) {
	today := c.now()
	for i := 0; i < LookbackDays; i++ {
		path := pathFor(today.AddDate(0, 0, -i))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (searched %d days back from %s)",
		ErrNoRecentFile, c.dir, LookbackDays-1, today.Format("2006-01-02"))
}

// writeFile writes a parquet file next to path and renames it into place.
func writeFile(path string, schema any, write func(*writer.ParquetWriter) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, schema, 4)
	if err != nil {
		fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := write(pw); err != nil {
		_ = pw.WriteStop()
		fw.Close()
		os.Remove(tmp)
		return err
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		os.Remove(tmp)
		return err
	}
	if err := fw.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// readFile reads every row of a parquet file into dst, a pointer to a slice
// of the schema type.
func readFile(path string, schema any, dst any) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, schema, 4)
	if err != nil {
		return err
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return nil
	}
	switch d := dst.(type) {
	case *[]rawRecord:
		*d = make([]rawRecord, n)
	case *[]processedRecord:
		*d = make([]processedRecord, n)
	default:
		return fmt.Errorf("unsupported destination %T", dst)
	}
	return pr.Read(dst)
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

func toProcessedRecord(row normalize.Row) processedRecord {
	return processedRecord{
		VideoID:              row.VideoID,
		Title:                row.Title,
		Game:                 row.Game,
		PublishDate:          row.PublishDate.Format(time.RFC3339),
		Views:                row.Views,
		Likes:                row.Likes,
		Comments:             row.Comments,
		Description:          row.Description,
		DurationSeconds:      row.DurationSeconds,
		LikesPer1000Views:    row.LikesPer1000Views,
		CommentsPer1000Views: row.CommentsPer1000Views,
	}
}

func fromProcessedRecord(r processedRecord) (normalize.Row, error) {
	published, err := time.Parse(time.RFC3339, r.PublishDate)
	if err != nil {
		return normalize.Row{}, fmt.Errorf("video %s publish_date: %w", r.VideoID, err)
	}
	return normalize.Row{
		VideoID:              r.VideoID,
		Title:                r.Title,
		Game:                 r.Game,
		PublishDate:          published,
		Views:                r.Views,
		Likes:                r.Likes,
		Comments:             r.Comments,
		Description:          r.Description,
		DurationSeconds:      r.DurationSeconds,
		LikesPer1000Views:    r.LikesPer1000Views,
		CommentsPer1000Views: r.CommentsPer1000Views,
	}, nil
}
