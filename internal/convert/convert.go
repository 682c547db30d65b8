// Package convert filters sponsored videos and rewrites noisy parsed game
// labels to their canonical names.
package convert

import (
	"log"
	"strings"

	"github.com/TobiSchelling/NLStats/internal/normalize"
)

// DefaultSponsorMarkers mark a video as sponsored when found in its title.
var DefaultSponsorMarkers = []string{"#ad"}

// Rule rewrites every row whose game equals ParsedTitle.
type Rule struct {
	ParsedTitle string
	FinalTitle  string
}

// VideoRule sets the game of one video regardless of what its title parsed to.
type VideoRule struct {
	VideoID    string
	FinalTitle string
}

// RuleSet is the curated rule table in application order.
type RuleSet struct {
	ByParsed []Rule
	ByVideo  []VideoRule
	// SponsorMarkers are matched case-insensitively. Nil means
	// DefaultSponsorMarkers; an empty non-nil slice disables the filter.
	SponsorMarkers []string
}

// Report summarizes one Apply call.
type Report struct {
	SponsoredDropped int
	// Rewritten counts rewritten rows per rule label.
	Rewritten map[string]int
	// NoMatch lists labels of rules that changed nothing.
	NoMatch []string
}

// Apply drops sponsored rows, then applies the parsed-label rules in order
// and the per-video rules after them. The input slice is not modified.
// Rules that match nothing are logged and reported, never an error.
func Apply(rows []normalize.Row, rules RuleSet) ([]normalize.Row, Report) {
	report := Report{Rewritten: make(map[string]int)}

	markers := rules.SponsorMarkers
	if markers == nil {
		markers = DefaultSponsorMarkers
	}

	out := make([]normalize.Row, 0, len(rows))
	for _, row := range rows {
		if IsSponsored(row.Title, markers) {
			report.SponsoredDropped++
			continue
		}
		out = append(out, row)
	}

	for _, rule := range rules.ByParsed {
		n := 0
		for i := range out {
			if out[i].Game == rule.ParsedTitle {
				out[i].Game = rule.FinalTitle
				n++
			}
		}
		record(&report, rule.ParsedTitle, rule.FinalTitle, n)
	}

	for _, rule := range rules.ByVideo {
		n := 0
		for i := range out {
			if out[i].VideoID == rule.VideoID {
				out[i].Game = rule.FinalTitle
				n++
			}
		}
		record(&report, "video "+rule.VideoID, rule.FinalTitle, n)
	}

	return out, report
}

func record(report *Report, label, final string, n int) {
	if n == 0 {
		log.Printf("warning: couldn't change any videos with name %q", label)
		report.NoMatch = append(report.NoMatch, label)
		return
	}
	log.Printf("Changing %d videos %q to %q", n, label, final)
	report.Rewritten[label] += n
}

// IsSponsored reports whether title contains any of markers, ignoring case.
func IsSponsored(title string, markers []string) bool {
	lower := strings.ToLower(title)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
