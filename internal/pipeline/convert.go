package pipeline

import (
	"fmt"
	"log"

	"github.com/TobiSchelling/NLStats/internal/convert"
	"github.com/TobiSchelling/NLStats/internal/database"
)

// GameStore is the persistence ConvertStored needs.
type GameStore interface {
	ListConversionRules() ([]database.ConversionRule, error)
	ListVideoConversionRules() ([]database.VideoConversionRule, error)
	UpdateGames(fn func(database.GameUpdater) error) error
}

// ConvertStored applies the conversion rules to the games of stored videos,
// in table order, per-video rules last. Rules that change nothing are
// reported, not treated as errors. All rewrites share one transaction: when
// a rule fails none of them are kept.
func ConvertStored(store GameStore) (*convert.Report, error) {
	rules, err := store.ListConversionRules()
	if err != nil {
		return nil, fmt.Errorf("loading conversion rules: %w", err)
	}
	videoRules, err := store.ListVideoConversionRules()
	if err != nil {
		return nil, fmt.Errorf("loading video conversion rules: %w", err)
	}

	var report *convert.Report
	var changes []change
	err = store.UpdateGames(func(u database.GameUpdater) error {
		report = &convert.Report{Rewritten: make(map[string]int)}
		changes = changes[:0]
		for _, r := range rules {
			n, err := u.RenameGame(r.ParsedTitle, r.FinalTitle)
			if err != nil {
				return fmt.Errorf("applying rule %q: %w", r.ParsedTitle, err)
			}
			changes = append(changes, tally(report, r.ParsedTitle, r.FinalTitle, n))
		}
		for _, r := range videoRules {
			n, err := u.SetVideoGame(r.VideoID, r.FinalTitle)
			if err != nil {
				return fmt.Errorf("applying rule for video %s: %w", r.VideoID, err)
			}
			changes = append(changes, tally(report, "video "+r.VideoID, r.FinalTitle, n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		c.log()
	}
	return report, nil
}

type change struct {
	label, final string
	n            int64
}

func (c change) log() {
	if c.n == 0 {
		log.Printf("warning: couldn't change any videos with name %q", c.label)
		return
	}
	log.Printf("Changed %d videos %q to %q", c.n, c.label, c.final)
}

func tally(report *convert.Report, label, final string, n int64) change {
	if n == 0 {
		report.NoMatch = append(report.NoMatch, label)
	} else {
		report.Rewritten[label] += int(n)
	}
	return change{label: label, final: final, n: n}
}
