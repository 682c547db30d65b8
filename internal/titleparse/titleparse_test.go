package titleparse

import (
	"regexp"
	"testing"
)

var regressionTitles = []struct {
	title string
	want  string
}{
	{"Let's Play: XCOM: Enemy Within! [Episode 19]", "XCOM: Enemy Within"},
	{"Northernlion Live Super Show! [March 3rd, 2017] (1/2)", "NLSS"},
	{"Northernlion Live Pseudo Show [Episode 4]", "NLSS"},
	{"The Binding of Isaac: Rebirth - Let's Play - Episode 1 [Reborn]", "The Binding of Isaac: Rebirth"},
	{"Hearthstone Arena Northernlion's Den! [Episode 28]", "Hearthstone"},
	{"Northernlion and Friends Play: Spelunky [Episode 3]", "Spelunky"},
	{"Don't Play - All Outta Bubblegum", "All Outta Bubblegum"},
	{"Let's Hate - The Great Waldo Search [NES]", "The Great Waldo Search"},
	{"Northernlion Tries: EXAPUNKS! [Twitch VOD]", "EXAPUNKS"},
	{"Let's Play - Mega Man: Dr. Wily's Revenge (1)", "Mega Man: Dr. Wily's Revenge"},
	{"Let's Play (Bonus) - Super Meat Boy - Unlockable Meat Boys", "Super Meat Boy"},
	{"Let's Look At: War of the Roses! [PC]", "War of the Roses"},
	{"Let's Look At - Revenge of the Titans", "Revenge of the Titans"},
	{"Northernlion Plays: Pokemon Let's Go Pikachu [Part 1]", "Pokemon Let's Go Pikachu"},
	{"Northernlion Plays - D4: Dark Dreams Don't Die [Episode 6]", "D4: Dark Dreams Don't Die"},
	{"An Alternative XCOM | Gears Tactics (Northernlion Tries)", "Gears Tactics"},
	{"Enter the Gungeon Was Robbed (Factorio Edition)", "Factorio"},
	{"Team Unity Tuesday: Minecraft [Episode 40]", "Minecraft"},
}

func TestParseGameRegressionSet(t *testing.T) {
	for _, tt := range regressionTitles {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := ParseGame(tt.title)
			if !ok {
				t.Fatalf("ParseGame(%q) found nothing, want %q", tt.title, tt.want)
			}
			if got != tt.want {
				t.Errorf("ParseGame(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestParseGameFallbacks(t *testing.T) {
	tests := []struct {
		title    string
		want     string
		wantRule string
	}{
		{"Consider My Timbers Shivered - Pirate Outlaws (Northernlion Tries)", "Pirate Outlaws", "tries-dash"},
		{"A Very Normal Day (Spelunky 2)", "Spelunky 2", "parenthetical"},
		{"Something Happened (Cool Game: Episode 3)", "Cool Game", "parenthetical-episode"},
		{"Something Happened (Episode 3)", "Something Happened", "before-parenthesis"},
	}

	p := Default()
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, rule, ok := p.Explain(tt.title)
			if !ok {
				t.Fatalf("Explain(%q) found nothing", tt.title)
			}
			if got != tt.want {
				t.Errorf("game = %q, want %q", got, tt.want)
			}
			if rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", rule, tt.wantRule)
			}
		})
	}
}

func TestParseGameNone(t *testing.T) {
	for _, title := range []string{"", "Just talking today", "Q&A #12"} {
		if got, ok := ParseGame(title); ok {
			t.Errorf("ParseGame(%q) = %q, want no result", title, got)
		}
	}
}

func TestParseGameFirstRuleWins(t *testing.T) {
	// plays-colon sits before the literal game table.
	got, _ := ParseGame("Northernlion Plays: Overwatch with Friends")
	if got != "Overwatch with Friends" {
		t.Errorf("got %q, want the plays-colon capture", got)
	}

	// season sits before game-dash-lets-play.
	_, rule, _ := Default().Explain("Rimworld - Season 2 - Let's Play - Episode 4")
	if rule != "season" {
		t.Errorf("rule = %q, want season", rule)
	}

	got, _ = ParseGame("Civilization VI: Rise and Fall")
	if got != "Civilization VI" {
		t.Errorf("got %q, want Civilization VI", got)
	}
}

func TestParserExtraRules(t *testing.T) {
	title := "Weekly Recap: Balatro Seeds"
	if got, ok := ParseGame(title); ok {
		t.Fatalf("default cascade parsed %q, want no result", got)
	}

	rules := append([]Rule(nil), DefaultRules...)
	rules = append([]Rule{{Name: "recap", Pattern: regexp.MustCompile(`^Weekly Recap: (\w+)`)}}, rules...)
	p := New(DefaultLiterals, rules)

	got, rule, ok := p.Explain(title)
	if !ok || got != "Balatro" || rule != "recap" {
		t.Errorf("Explain = %q, %q, %v; want Balatro, recap, true", got, rule, ok)
	}

	// The default parser is unaffected.
	if _, rule, _ := Default().Explain(title); rule == "recap" {
		t.Error("extra rule leaked into the default parser")
	}
}

// fallbackRules run after the whole cascade, so an appended rule takes
// precedence over them.
var fallbackRules = map[string]bool{
	"tries-dash":            true,
	"parenthetical":         true,
	"parenthetical-episode": true,
	"before-parenthesis":    true,
}

func TestAppendedRuleKeepsEarlierResults(t *testing.T) {
	extended := append(append([]Rule{}, DefaultRules...), rule("catch-all", `(.+)`))
	p := New(DefaultLiterals, extended)

	titles := []string{"Just talking today", "Q&A #12", "A Very Normal Day (Spelunky 2)"}
	for _, tt := range regressionTitles {
		titles = append(titles, tt.title)
	}

	var newlyMatched int
	for _, title := range titles {
		wantGame, wantRule, wasMatched := Default().Explain(title)
		game, ruleName, ok := p.Explain(title)
		if !ok {
			t.Errorf("extended parser found nothing for %q", title)
			continue
		}
		if wasMatched && !fallbackRules[wantRule] {
			if game != wantGame || ruleName != wantRule {
				t.Errorf("%q: got %q via %s, want %q via %s", title, game, ruleName, wantGame, wantRule)
			}
			continue
		}
		if ruleName != "catch-all" {
			t.Errorf("%q: rule = %q, want catch-all", title, ruleName)
		}
		newlyMatched++
	}
	if newlyMatched < 2 {
		t.Errorf("expected the unmatched titles to be taken by the new rule, got %d", newlyMatched)
	}

	for _, tt := range regressionTitles {
		if got, _ := p.Parse(tt.title); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestParseEmptyCaptureIsNone(t *testing.T) {
	p := New(nil, []Rule{{Name: "bang", Pattern: regexp.MustCompile(`^Play: (!*)`)}})
	if got, ok := p.Parse("Play: !!!"); ok {
		t.Errorf("Parse = %q, want no result", got)
	}
}
