// Package titleparse infers the game a video is about from its title.
//
// Titles follow no shared schema across the years, so parsing is an ordered
// cascade: literal shows first, then DefaultRules in order, then a couple of
// structural fallbacks. The first rule that matches decides the result.
package titleparse

import "strings"

// Parser holds a literal table and an ordered rule cascade.
type Parser struct {
	literals []Literal
	rules    []Rule
}

// New creates a Parser over the given literals and rules. The slices are
// copied so later changes by the caller do not leak in.
func New(literals []Literal, rules []Rule) *Parser {
	return &Parser{
		literals: append([]Literal(nil), literals...),
		rules:    append([]Rule(nil), rules...),
	}
}

// Default returns a Parser with DefaultLiterals and DefaultRules.
func Default() *Parser {
	return New(DefaultLiterals, DefaultRules)
}

var defaultParser = Default()

// ParseGame parses title with the default cascade.
func ParseGame(title string) (string, bool) {
	return defaultParser.Parse(title)
}

// Parse returns the game for title, or false when nothing matched.
func (p *Parser) Parse(title string) (string, bool) {
	game, _, ok := p.Explain(title)
	return game, ok
}

// Explain is Parse that also reports which rule produced the result.
func (p *Parser) Explain(title string) (game, ruleName string, ok bool) {
	for _, lit := range p.literals {
		for _, s := range lit.Contains {
			if strings.Contains(title, s) {
				return lit.Label, "literal", true
			}
		}
	}

	for _, r := range p.rules {
		m := r.Pattern.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		// A rule matched; it decides even if its capture trims to nothing.
		return nonEmpty(clean(group(m)), r.Name)
	}

	if strings.Contains(title, "Northernlion Tries") {
		if all := triesDashPattern.FindAllStringSubmatch(title, -1); len(all) > 0 {
			return nonEmpty(strings.TrimSpace(group(all[len(all)-1])), "tries-dash")
		}
	}

	if all := parentheticalRegex.FindAllStringSubmatch(title, -1); len(all) > 0 {
		last := group(all[len(all)-1])
		if !strings.Contains(last, "Episode") {
			return nonEmpty(strings.TrimSpace(last), "parenthetical")
		}
		if head, tail, found := strings.Cut(last, ":"); found && strings.Contains(episodeSegment(tail), "Episode") {
			return nonEmpty(strings.TrimSpace(head), "parenthetical-episode")
		}
		before, _, _ := strings.Cut(title, " (")
		return nonEmpty(before, "before-parenthesis")
	}

	return "", "", false
}

// episodeSegment returns the text between the first and second colon.
func episodeSegment(afterFirstColon string) string {
	seg, _, _ := strings.Cut(afterFirstColon, ":")
	return seg
}

func group(m []string) string {
	if len(m) < 2 {
		return m[0]
	}
	return m[1]
}

func clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), "!")
}

func nonEmpty(game, ruleName string) (string, string, bool) {
	if game == "" {
		return "", ruleName, false
	}
	return game, ruleName, true
}
