package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/NLStats/internal/database"
	"github.com/TobiSchelling/NLStats/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Server is the HTTP server for the channel dashboard.
type Server struct {
	db    *database.DB
	cache *report.Cache
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server. Reports are built lazily from the most recent
// complete collection event.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"comma":    humanize.Comma,
		"count":    func(n int) string { return humanize.Comma(int64(n)) },
		"duration": report.FormatDuration,
		"day": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"ratio": func(f *float64) string {
			if f == nil {
				return "-"
			}
			return fmt.Sprintf("%.2f", *f)
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "leaderboards.html", "monthly.html", "video.html", "report.html", "history.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, cache: report.NewCache(db), pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/leaderboards", s.handleLeaderboards)
	s.mux.HandleFunc("/monthly", s.handleMonthly)
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/history", s.handleHistory)
	s.mux.HandleFunc("/video/", s.handleVideo)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// snapshot loads the current report. The snapshot is nil when nothing has
// been collected yet; ok is false once an error response was written.
func (s *Server) snapshot(w http.ResponseWriter) (snap *report.Snapshot, ok bool) {
	snap, err := s.cache.Snapshot()
	if errors.Is(err, report.ErrNoData) {
		return nil, true
	}
	if err != nil {
		log.Printf("Error loading report: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	data := map[string]any{"Snapshot": snap}
	if snap != nil {
		data["TopGames"] = firstN(snap.Games, 10)
		data["Weekly"] = snap.Weekly
	}
	s.render(w, "index.html", data)
}

func (s *Server) handleLeaderboards(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	data := map[string]any{"Snapshot": snap}
	if snap != nil {
		boards := snap.Leaderboards
		if slug := r.URL.Query().Get("board"); slug != "" {
			lb := snap.Leaderboard(slug)
			if lb == nil {
				http.NotFound(w, r)
				return
			}
			boards = []report.Leaderboard{*lb}
		}
		data["Leaderboards"] = boards
	}
	s.render(w, "leaderboards.html", data)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	data := map[string]any{"Snapshot": snap}
	if snap != nil {
		months := make([]report.MonthlyTop, len(snap.Monthly))
		for i, m := range snap.Monthly {
			months[len(months)-1-i] = m
		}
		data["Months"] = months
	}
	s.render(w, "monthly.html", data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	data := map[string]any{"Snapshot": snap}
	if snap != nil {
		data["Markdown"] = report.Markdown(snap, 10)
	}
	s.render(w, "report.html", data)
}

// recentEvents is how many collection events the history page lists.
const recentEvents = 20

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetAllVideoStats()
	if err != nil {
		log.Printf("Error loading channel history: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	events, err := s.db.ListCollectionEvents(recentEvents)
	if err != nil {
		log.Printf("Error loading collection events: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	totals := report.ChannelHistory(stats)
	for i, j := 0, len(totals)-1; i < j; i, j = i+1, j-1 {
		totals[i], totals[j] = totals[j], totals[i]
	}
	s.render(w, "history.html", map[string]any{
		"Totals": totals,
		"Events": events,
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	videoID := strings.TrimPrefix(r.URL.Path, "/video/")
	if videoID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	video, err := s.db.GetVideo(videoID)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Error loading video %s: %v", videoID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	history, err := s.db.GetVideoHistory(videoID)
	if err != nil {
		log.Printf("Error loading history for %s: %v", videoID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "video.html", map[string]any{
		"Video":   video,
		"History": history,
	})
}

type healthResponse struct {
	Status      string `json:"status"`
	LatestEvent int64  `json:"latest_event,omitempty"`
	PulledAt    string `json:"pulled_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{Status: "ok"}
	event, err := s.db.GetMostRecentCompleteEvent()
	switch {
	case errors.Is(err, database.ErrNotFound):
		resp.Status = "empty"
	case err != nil:
		log.Printf("Health check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
	default:
		resp.LatestEvent = event.ID
		resp.PulledAt = event.PullDatetime.Format(time.RFC3339)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error writing health response: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
