package titleparse

import "regexp"

// Rule extracts a game from a title with the first capture group of Pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Literal maps any title containing one of Contains to Label.
type Literal struct {
	Contains []string
	Label    string
}

func rule(name, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern)}
}

// DefaultLiterals short-circuit recurring shows before the cascade runs.
var DefaultLiterals = []Literal{
	{Contains: []string{"Northernlion Live Super Show", "Northernlion Live Pseudo Show"}, Label: "NLSS"},
}

// DefaultRules is the cascade in priority order. Append new conventions at
// the position they should take; earlier rules always win.
var DefaultRules = []Rule{
	rule("season", `([^-]+) - Season`),
	// Hearthstone Arena Northernlion's Den! [Episode 28]
	rule("hearthstone", `(Hearthstone)`),
	// Northernlion and Friends Play: Spelunky [Episode 3]
	rule("and-friends-play", `^Northernlion [Aa]nd Friends Play: ([^|(\[-]+)`),
	// Don't Play - All Outta Bubblegum
	rule("dont-play", `^Don't Play.*?- ([^|(\[-]+)`),
	// Let's Hate - The Great Waldo Search [NES]
	rule("lets-hate", `^Let's Hate.*?- ([^|(\[-]+)`),
	// The Binding of Isaac: Rebirth - Let's Play - Episode 1 [Reborn]
	rule("game-dash-lets-play", `([^|(\[-]+) - Let's Play -`),
	// Northernlion Tries: EXAPUNKS! [Twitch VOD]
	rule("tries-colon", `Northernlion Tries: ([^|(\[-]+)`),
	// Let's Play: XCOM: Enemy Within! [Episode 19]
	rule("lets-play-colon", `^Let's Play: ([^|(\[-]+)`),
	// Let's Play - Mega Man: Dr. Wily's Revenge (1)
	// Let's Play (Bonus) - Super Meat Boy - Unlockable Meat Boys
	rule("lets-play-dash", `^Let's Play.*?- ([^|(\[-]+)`),
	// Let's Look At: War of the Roses! [PC]
	rule("lets-look-at-colon", `^Let's Look [Aa]t.*?: ([^|(\[-]+)`),
	// Let's Look At - Revenge of the Titans
	rule("lets-look-at-dash", `^Let's Look [Aa]t.*?- ([^|(\[-]+)`),
	// Northernlion Plays: Pokemon Let's Go Pikachu [...
	rule("plays-colon", `Northernlion Plays: ([^\[\(|]+)`),
	// The Binding of Isaac: AFTERBIRTH+ - Northernlion Plays - Episode... (Motto)
	rule("game-dash-plays", `([^-]+) - Northernlion Plays`),
	// Northernlion Plays - D4: Dark Dreams Don't Die [Episode 6]...
	rule("plays-dash", `Northernlion Plays - ([^\[\(|]+)`),
	// An Alternative XCOM | Gears Tactics (Northernlion Tries)
	rule("pipe", `[^|]+ \|([^#(]+)`),
	rule("play-colon", `Play: ([^|(\[-]+)`),
	rule("afterbirth-plus", `(Afterbirth\+)`),
	rule("super-mega-baseball-2", `(Super Mega Baseball 2)`),
	rule("planet-coaster", `(Planet Coaster)`),
	rule("factorio", `(Factorio)`),
	rule("overwatch", `(Overwatch)`),
	rule("rocket-league", `(Rocket League)`),
	rule("europa-universalis-iv", `(Europa Universalis IV)`),
	rule("europa-universalis-4", `(Europa Universalis 4)`),
	rule("pubg", `(PUBG)`),
	rule("nhl-18", `(NHL 18)`),
	rule("fortnite", `(Fortnite)`),
	rule("escapists-2", `(The Escapists 2)`),
	rule("divinity-os2", `(Divinity: Original Sin 2)`),
	rule("playerunknowns-battlegrounds", `(PlayerUnknown's Battlegrounds)`),
	rule("team-unity-minecraft", `Team Unity (Minecraft)`),
	rule("team-unity-tuesday-minecraft", `Team Unity Tuesday: (Minecraft)`),
	rule("oxygen-not-included", `(Oxygen Not Included)`),
	rule("ultimate-chicken-horse", `(Ultimate Chicken Horse)`),
	rule("escape-from-tarkov", `(Escape from Tarkov)`),
	rule("streets-of-rogue", `(Streets of Rogue): `),
	rule("geoguessr", `(Geo[Gg]uessr)`),
	rule("super-mario-maker-2", `(Super Mario Maker 2)`),
	rule("civilization-vi", `(Civilization VI)`),
	rule("civilization-v", `(Civilization V)`),
	rule("civilization-iv", `(Civilization IV)`),
	rule("rainbow-six-siege", `(Rainbow Six Siege)`),
	rule("subnautica", `(Subnautica)`),
	rule("tetris-99", `(Tetris 99)`),
	rule("baba-is-you", `(Baba Is You)`),
	rule("satisfactory", `(Satisfactory)`),
	rule("dicey-dungeons", `(Dicey Dungeons)`),
	rule("crusader-kings-ii", `(Crusader Kings II)`),
}

var (
	// Consider My Timbers Shivered - Pirate Outlaws (Northernlion Tries)
	triesDashPattern   = regexp.MustCompile(`[^-]+ -+([^#(]+)`)
	parentheticalRegex = regexp.MustCompile(`[^(]+\(([^#)]*?)\)`)
)
