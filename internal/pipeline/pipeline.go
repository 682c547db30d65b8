package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/NLStats/internal/collect"
	"github.com/TobiSchelling/NLStats/internal/config"
	"github.com/TobiSchelling/NLStats/internal/convert"
	"github.com/TobiSchelling/NLStats/internal/database"
	"github.com/TobiSchelling/NLStats/internal/localcache"
	"github.com/TobiSchelling/NLStats/internal/normalize"
	"github.com/TobiSchelling/NLStats/internal/titleparse"
)

// Store is the persistence the pipeline drives.
type Store interface {
	CreateCollectionEvent(runID string, pulled time.Time) (*database.CollectionEvent, error)
	PersistRaw(eventID int64, items []database.RawItem) error
	PersistProcessed(eventID int64, videos []database.Video, stats []database.ProcessedStat) error
	CompleteCollectionEvent(eventID int64) error
	GetMostRecentCompleteEvent() (*database.CollectionEvent, error)
	ListConversionRules() ([]database.ConversionRule, error)
	ListVideoConversionRules() ([]database.VideoConversionRule, error)
}

// Source yields every item of one pull.
type Source interface {
	FetchAllItems(ctx context.Context) ([]collect.Item, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	EventID int64
	RunID   string
	Steps   []StepResult
}

// ProcessResult describes what Process did with one event's items.
type ProcessResult struct {
	Rows      []normalize.Row
	Normalize normalize.Stats
	Convert   convert.Report
}

// StageError wraps whatever failed while an event was in a stage.
type StageError struct {
	Stage   string
	EventID int64
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("collection event %d: %s: %v", e.EventID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options control normalization and conversion.
type Options struct {
	Location       *time.Location
	Since          time.Time
	SponsorMarkers []string
	Parser         *titleparse.Parser

	// Cache, when set, receives a raw and a processed snapshot of each run.
	Cache *localcache.Cache
}

// OptionsFromConfig builds Options from the processing section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Processing.Location()
	if err != nil {
		return Options{}, err
	}
	since, err := cfg.Processing.Since()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Location:       loc,
		Since:          since,
		SponsorMarkers: cfg.Processing.SponsorMarkers,
	}, nil
}

// Pipeline moves a collection event through open, raw_persisted, processed
// and complete. A failure leaves the event in its last successful stage.
type Pipeline struct {
	store Store
	opts  Options
	now   func() time.Time
}

// New creates a new pipeline.
func New(store Store, opts Options) *Pipeline {
	return &Pipeline{store: store, opts: opts, now: time.Now}
}

// Start opens a new collection event.
func (p *Pipeline) Start(ctx context.Context) (*database.CollectionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "start", Err: err}
	}
	ev, err := p.store.CreateCollectionEvent(uuid.NewString(), p.now())
	if err != nil {
		return nil, &StageError{Stage: "start", Err: err}
	}
	log.Printf("Started collection event %d (run %s)", ev.ID, ev.RunID)
	return ev, nil
}

// PersistRaw stores the raw payloads of an event.
func (p *Pipeline) PersistRaw(ctx context.Context, eventID int64, items []collect.Item) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: "persist raw", EventID: eventID, Err: err}
	}

	raw := make([]database.RawItem, len(items))
	for i, it := range items {
		raw[i] = database.RawItem{
			VideoID:           it.ID,
			CollectionEventID: eventID,
			Kind:              it.Kind,
			Etag:              it.Etag,
			Snippet:           string(it.Snippet),
			ContentDetails:    string(it.ContentDetails),
			Statistics:        string(it.Statistics),
		}
	}
	if err := p.store.PersistRaw(eventID, raw); err != nil {
		return &StageError{Stage: "persist raw", EventID: eventID, Err: err}
	}
	return nil
}

// Process normalizes and converts an event's items and stores the result.
func (p *Pipeline) Process(ctx context.Context, eventID int64, items []collect.Item) (*ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: "process", EventID: eventID, Err: err}
	}

	res, err := p.Transform(items)
	if err != nil {
		return nil, &StageError{Stage: "process", EventID: eventID, Err: err}
	}

	videos := make([]database.Video, len(res.Rows))
	stats := make([]database.ProcessedStat, len(res.Rows))
	for i, row := range res.Rows {
		published := row.PublishDate
		videos[i] = database.Video{
			ID:              row.VideoID,
			Title:           row.Title,
			Description:     row.Description,
			Game:            row.Game,
			DurationSeconds: row.DurationSeconds,
			PublishDate:     &published,
		}
		stats[i] = database.ProcessedStat{
			VideoID:              row.VideoID,
			CollectionEventID:    eventID,
			Views:                row.Views,
			Likes:                row.Likes,
			Comments:             row.Comments,
			LikesPer1000Views:    row.LikesPer1000Views,
			CommentsPer1000Views: row.CommentsPer1000Views,
		}
	}

	if err := p.store.PersistProcessed(eventID, videos, stats); err != nil {
		return nil, &StageError{Stage: "process", EventID: eventID, Err: err}
	}
	return res, nil
}

// Transform normalizes items and applies the stored conversion rules without
// writing anything.
func (p *Pipeline) Transform(items []collect.Item) (*ProcessResult, error) {
	rules, err := p.loadRules()
	if err != nil {
		return nil, err
	}

	ds, nstats := normalize.Normalize(items, normalize.Options{
		Location: p.opts.Location,
		Since:    p.opts.Since,
		Parser:   p.opts.Parser,
	})
	log.Printf("Normalized %s", nstats)

	rows, report := convert.Apply(ds.Rows, rules)
	if report.SponsoredDropped > 0 {
		log.Printf("Dropped %d sponsored videos", report.SponsoredDropped)
	}

	return &ProcessResult{Rows: rows, Normalize: nstats, Convert: report}, nil
}

// Complete marks a processed event complete.
func (p *Pipeline) Complete(ctx context.Context, eventID int64) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: "complete", EventID: eventID, Err: err}
	}
	if err := p.store.CompleteCollectionEvent(eventID); err != nil {
		return &StageError{Stage: "complete", EventID: eventID, Err: err}
	}
	return nil
}

// Run drives one event from start to complete with items from src.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	r := &Result{}

	// Step 1: Start
	log.Println("Step 1/5: Opening collection event...")
	ev, err := p.Start(ctx)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Start", Err: err})
		return r, err
	}
	r.EventID, r.RunID = ev.ID, ev.RunID
	r.Steps = append(r.Steps, StepResult{Name: "Start", Summary: fmt.Sprintf("Event %d opened", ev.ID)})

	// Step 2: Fetch
	log.Println("Step 2/5: Fetching items...")
	items, err := src.FetchAllItems(ctx)
	if err != nil {
		err = &StageError{Stage: "fetch", EventID: ev.ID, Err: err}
		r.Steps = append(r.Steps, StepResult{Name: "Fetch", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Fetch", Summary: fmt.Sprintf("Fetched %d items", len(items))})
	if p.opts.Cache != nil {
		if _, err := p.opts.Cache.WriteRaw(items); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	// Step 3: Persist raw
	log.Println("Step 3/5: Persisting raw items...")
	if err := p.PersistRaw(ctx, ev.ID, items); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Persist raw", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Persist raw", Summary: fmt.Sprintf("Stored %d raw items", len(items))})

	// Step 4: Process
	log.Println("Step 4/5: Processing...")
	res, err := p.Process(ctx, ev.ID, items)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Process", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Process",
		Summary: fmt.Sprintf("Stored %d videos (%d without a game, %d malformed, %d sponsored, %d rules without matches)",
			len(res.Rows), res.Normalize.Unparsed, res.Normalize.Malformed,
			res.Convert.SponsoredDropped, len(res.Convert.NoMatch)),
	})
	if p.opts.Cache != nil {
		if _, err := p.opts.Cache.WriteProcessed(res.Rows); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	// Step 5: Complete
	log.Println("Step 5/5: Completing collection event...")
	if err := p.Complete(ctx, ev.ID); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Complete", Err: err})
		return r, err
	}
	r.Steps = append(r.Steps, StepResult{Name: "Complete", Summary: fmt.Sprintf("Event %d complete", ev.ID)})

	return r, nil
}

// DryRun shows what a run would start from without executing it.
func (p *Pipeline) DryRun(src Source) *Result {
	r := &Result{}

	latest, err := p.store.GetMostRecentCompleteEvent()
	switch {
	case errors.Is(err, database.ErrNotFound):
		r.Steps = append(r.Steps, StepResult{Name: "Start", Summary: "[dry-run] No complete collection event yet"})
	case err != nil:
		r.Steps = append(r.Steps, StepResult{Name: "Start", Err: err})
	default:
		r.Steps = append(r.Steps, StepResult{
			Name:    "Start",
			Summary: fmt.Sprintf("[dry-run] Latest complete event %d pulled %s", latest.ID, latest.PullDatetime.Format(time.RFC3339)),
		})
	}

	summary := "[dry-run] Would fetch every item of the uploads playlist"
	if yt, ok := src.(*collect.YouTubeClient); ok && !yt.IsConfigured() {
		summary = "[dry-run] Source is not configured (missing playlist id or API key)"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Fetch", Summary: summary})

	rules, err := p.loadRules()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Process", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Process",
		Summary: fmt.Sprintf("[dry-run] Would apply %d conversion rules and %d video rules", len(rules.ByParsed), len(rules.ByVideo)),
	})
	return r
}

func (p *Pipeline) loadRules() (convert.RuleSet, error) {
	parsed, err := p.store.ListConversionRules()
	if err != nil {
		return convert.RuleSet{}, fmt.Errorf("loading conversion rules: %w", err)
	}
	byVideo, err := p.store.ListVideoConversionRules()
	if err != nil {
		return convert.RuleSet{}, fmt.Errorf("loading video conversion rules: %w", err)
	}

	rules := convert.RuleSet{SponsorMarkers: p.opts.SponsorMarkers}
	for _, r := range parsed {
		rules.ByParsed = append(rules.ByParsed, convert.Rule{ParsedTitle: r.ParsedTitle, FinalTitle: r.FinalTitle})
	}
	for _, r := range byVideo {
		rules.ByVideo = append(rules.ByVideo, convert.VideoRule{VideoID: r.VideoID, FinalTitle: r.FinalTitle})
	}
	return rules, nil
}

// CacheSource reads items from the newest raw snapshot of a local cache.
type CacheSource struct {
	Cache *localcache.Cache
}

// FetchAllItems implements Source.
func (s CacheSource) FetchAllItems(ctx context.Context) ([]collect.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, path, err := s.Cache.ReadLatestRaw()
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d items from %s", len(items), path)
	return items, nil
}
