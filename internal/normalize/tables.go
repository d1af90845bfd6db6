// Package normalize holds the pure text heuristics shared by every price
// provider: card-name cleanup, set detection in free-text titles, and the
// constant tables those heuristics consume.
//
// Tables are versioned together; bump TablesVersion whenever an entry is
// added or reordered so cached matches can be attributed to a revision.
package normalize

import "regexp"

const TablesVersion = "2024.3"

// QualifierPhrases are grading, variant and rarity qualifiers stripped from a
// title. Longer phrases come first so "Special Illustration Rare" is removed
// before "Rare" gets a chance to split it.
var QualifierPhrases = []string{
	"Special Illustration Rare",
	"Illustration Rare",
	"Secret Rare",
	"Ultra Rare",
	"Hyper Rare",
	"Rainbow Rare",
	"Double Rare",
	"Holo Rare",
	"Rare Holo",
	"Reverse Holofoil",
	"Reverse Holo",
	"Holofoil",
	"Holo",
	"Full Art",
	"Alternate Art",
	"Alt Art",
	"1st Edition",
	"First Edition",
	"Shadowless",
	"Unlimited",
	"Near Mint",
	"Mint",
	"NM",
	"Black Star Promo",
	"Promo",
	"Rare",
	"VMAX",
	"VSTAR",
	"V-UNION",
	"GX",
	"EX",
	"V",
}

// gradeQualifier catches "PSA 10", "BGS 9.5" style tokens inside a title.
var gradeQualifier = regexp.MustCompile(`(?i)\b(?:PSA|BGS|CGC|SGC|Beckett|HGA|GMA|CSG|ACE|TAG)\s*-?\s*\d{1,2}(?:\.\d)?\b`)

// NoiseWords are marketplace nouns that never belong to a card name.
var NoiseWords = []string{
	"Complete Set",
	"Pokemon",
	"Pokémon",
	"Cards",
	"Card",
	"TCG",
	"Sealed",
	"Lot",
	"Bundle",
	"Collection",
	"Booster",
	"Pack",
	"Box",
	"Case",
}

// GradingServiceTokens identify professionally graded copies in a listing title.
var GradingServiceTokens = []string{
	"PSA",
	"BGS",
	"CGC",
	"SGC",
	"Beckett",
	"ACE Grading",
	"HGA",
	"GMA",
	"CSG",
	"TAG Grading",
	"Graded",
	"Slab",
	"Slabbed",
}

// GradeScorePattern matches a grading service followed by a score.
var GradeScorePattern = regexp.MustCompile(`(?i)\b(?:PSA|BGS|CGC|SGC|Beckett|HGA|GMA|CSG|ACE|TAG|AGS|PCA)\s*-?\s*(?:GEM\s*MT\s*|MINT\s*)?\d{1,2}(?:\.\d)?\b`)

// BulkTerms mark listings that are not a single raw card.
var BulkTerms = []string{
	"lot",
	"bundle",
	"collection",
	"booster",
	"pack",
	"box",
	"sealed",
	"case",
	"complete set",
}

// ListingBoilerplate is text the marketplace injects into scraped titles.
var ListingBoilerplate = []string{
	"New Listing",
	"NEW LISTING",
	"Opens in a new window or tab",
	"Shop on eBay",
	"Sponsored",
}

// CardNumberPatterns find an explicit card number inside a listing title.
// The first capture group is the number.
var CardNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b0*(\d+)\s*/\s*\d+\b`),
	regexp.MustCompile(`#\s*0*(\d+)\b`),
	regexp.MustCompile(`(?i)\bNo\.?\s*0*(\d+)\b`),
	regexp.MustCompile(`(?i)\bNumber\s*0*(\d+)\b`),
}

// SetDescriptorSuffixes are trailing words that turn a parent set name into a
// sub-release name ("Crown Zenith Galarian Gallery").
var SetDescriptorSuffixes = []string{
	"Special Gallery",
	"Galarian Gallery",
	"Trainer Gallery",
	"Gallery",
	"Shiny Vault",
	"Classic Collection",
	"Radiant Collection",
	"Black Star Promos",
	"Promos",
	"Trainer Kit",
	"Subset",
	"Expansion",
}

// TeamQualifierWords mark a leading word that makes the first two words of a
// name a poor search term ("Team Rocket's Mewtwo", "Tag Team ...").
var TeamQualifierWords = []string{
	"team",
	"team's",
	"tag",
}

// SetNameMatchRatio is the share of significant set-name words that must
// appear in a listing title when the full set name does not.
const SetNameMatchRatio = 0.6

// MinSignificantWordLen is the length a word must exceed to count as significant.
const MinSignificantWordLen = 2

// UnknownSet is returned by ExtractSetFromTitle when no pattern matches.
const UnknownSet = "Unknown Set"

type setPattern struct {
	name    string
	pattern *regexp.Regexp
}

func sp(name, expr string) setPattern {
	return setPattern{name: name, pattern: regexp.MustCompile(`(?i)` + expr)}
}

// SetPatterns is ordered: specific expansions precede the era names they
// contain, and "Base Set 2" precedes "Base Set". Ambiguous titles resolve to
// the first listed match.
var SetPatterns = []setPattern{
	// Scarlet & Violet
	sp("Prismatic Evolutions", `\bprismatic\s+evolutions?\b`),
	sp("Surging Sparks", `\bsurging\s+sparks\b`),
	sp("Stellar Crown", `\bstellar\s+crown\b`),
	sp("Shrouded Fable", `\bshrouded\s+fable\b`),
	sp("Twilight Masquerade", `\btwilight\s+masquerade\b`),
	sp("Temporal Forces", `\btemporal\s+forces\b`),
	sp("Paldean Fates", `\bpaldean\s+fates\b`),
	sp("Paradox Rift", `\bparadox\s+rift\b`),
	sp("151", `\b(?:pok[eé]mon|sv|scarlet\s*(?:&|and)\s*violet)\s*151\b`),
	sp("Obsidian Flames", `\bobsidian\s+flames\b`),
	sp("Paldea Evolved", `\bpaldea\s+evolved\b`),
	sp("Scarlet & Violet", `\bscarlet\s*(?:&|and)\s*violet\b`),

	// Sword & Shield
	sp("Crown Zenith", `\bcrown\s+zenith\b`),
	sp("Silver Tempest", `\bsilver\s+tempest\b`),
	sp("Lost Origin", `\blost\s+origin\b`),
	sp("Pokemon GO", `\bpok[eé]mon\s+go\b`),
	sp("Astral Radiance", `\bastral\s+radiance\b`),
	sp("Brilliant Stars", `\bbrilliant\s+stars\b`),
	sp("Fusion Strike", `\bfusion\s+strike\b`),
	sp("Celebrations", `\bcelebrations\b`),
	sp("Evolving Skies", `\bevolving\s+skies\b`),
	sp("Chilling Reign", `\bchilling\s+reign\b`),
	sp("Battle Styles", `\bbattle\s+styles\b`),
	sp("Shining Fates", `\bshining\s+fates\b`),
	sp("Vivid Voltage", `\bvivid\s+voltage\b`),
	sp("Champion's Path", `\bchampion'?s\s+path\b`),
	sp("Darkness Ablaze", `\bdarkness\s+ablaze\b`),
	sp("Rebel Clash", `\brebel\s+clash\b`),
	sp("Sword & Shield", `\bsword\s*(?:&|and)\s*shield\b`),

	// Sun & Moon
	sp("Cosmic Eclipse", `\bcosmic\s+eclipse\b`),
	sp("Hidden Fates", `\bhidden\s+fates\b`),
	sp("Unified Minds", `\bunified\s+minds\b`),
	sp("Unbroken Bonds", `\bunbroken\s+bonds\b`),
	sp("Team Up", `\bteam\s+up\b`),
	sp("Lost Thunder", `\blost\s+thunder\b`),
	sp("Dragon Majesty", `\bdragon\s+majesty\b`),
	sp("Celestial Storm", `\bcelestial\s+storm\b`),
	sp("Forbidden Light", `\bforbidden\s+light\b`),
	sp("Ultra Prism", `\bultra\s+prism\b`),
	sp("Crimson Invasion", `\bcrimson\s+invasion\b`),
	sp("Shining Legends", `\bshining\s+legends\b`),
	sp("Burning Shadows", `\bburning\s+shadows\b`),
	sp("Guardians Rising", `\bguardians\s+rising\b`),
	sp("Sun & Moon", `\bsun\s*(?:&|and)\s*moon\b`),

	// XY
	sp("Evolutions", `\bevolutions\b`),
	sp("Steam Siege", `\bsteam\s+siege\b`),
	sp("Fates Collide", `\bfates\s+collide\b`),
	sp("Generations", `\bgenerations\b`),
	sp("BREAKpoint", `\bbreakpoint\b`),
	sp("BREAKthrough", `\bbreakthrough\b`),
	sp("Ancient Origins", `\bancient\s+origins\b`),
	sp("Roaring Skies", `\broaring\s+skies\b`),
	sp("Primal Clash", `\bprimal\s+clash\b`),
	sp("Phantom Forces", `\bphantom\s+forces\b`),
	sp("Furious Fists", `\bfurious\s+fists\b`),
	sp("Flashfire", `\bflashfire\b`),

	// Black & White and earlier modern
	sp("Legendary Treasures", `\blegendary\s+treasures\b`),
	sp("Plasma Blast", `\bplasma\s+blast\b`),
	sp("Plasma Freeze", `\bplasma\s+freeze\b`),
	sp("Plasma Storm", `\bplasma\s+storm\b`),
	sp("Boundaries Crossed", `\bboundaries\s+crossed\b`),
	sp("Dragons Exalted", `\bdragons\s+exalted\b`),
	sp("Dark Explorers", `\bdark\s+explorers\b`),
	sp("Next Destinies", `\bnext\s+destinies\b`),
	sp("Noble Victories", `\bnoble\s+victories\b`),
	sp("Emerging Powers", `\bemerging\s+powers\b`),
	sp("Black & White", `\bblack\s*(?:&|and)\s*white\b`),
	sp("Call of Legends", `\bcall\s+of\s+legends\b`),
	sp("HeartGold & SoulSilver", `\bheart\s*gold\s*(?:&|and)?\s*soul\s*silver\b`),
	sp("Arceus", `\barceus\s+(?:set|expansion)\b`),
	sp("Supreme Victors", `\bsupreme\s+victors\b`),
	sp("Rising Rivals", `\brising\s+rivals\b`),
	sp("Platinum", `\bplatinum\s+(?:set|expansion|base)\b`),
	sp("Stormfront", `\bstormfront\b`),
	sp("Legends Awakened", `\blegends\s+awakened\b`),
	sp("Majestic Dawn", `\bmajestic\s+dawn\b`),
	sp("Great Encounters", `\bgreat\s+encounters\b`),
	sp("Secret Wonders", `\bsecret\s+wonders\b`),
	sp("Mysterious Treasures", `\bmysterious\s+treasures\b`),
	sp("Diamond & Pearl", `\bdiamond\s*(?:&|and)\s*pearl\b`),

	// EX and e-Card
	sp("Power Keepers", `\bpower\s+keepers\b`),
	sp("Dragon Frontiers", `\bdragon\s+frontiers\b`),
	sp("Crystal Guardians", `\bcrystal\s+guardians\b`),
	sp("Holon Phantoms", `\bholon\s+phantoms\b`),
	sp("Legend Maker", `\blegend\s+maker\b`),
	sp("Delta Species", `\bdelta\s+species\b`),
	sp("Unseen Forces", `\bunseen\s+forces\b`),
	sp("Team Rocket Returns", `\bteam\s+rocket\s+returns\b`),
	sp("FireRed & LeafGreen", `\bfire\s*red\s*(?:&|and)?\s*leaf\s*green\b`),
	sp("Hidden Legends", `\bhidden\s+legends\b`),
	sp("Team Magma vs Team Aqua", `\bteam\s+magma\s+vs\.?\s+team\s+aqua\b`),
	sp("Sandstorm", `\bsandstorm\b`),
	sp("Ruby & Sapphire", `\bruby\s*(?:&|and)\s*sapphire\b`),
	sp("Skyridge", `\bskyridge\b`),
	sp("Aquapolis", `\baquapolis\b`),
	sp("Expedition Base Set", `\bexpedition\b`),

	// Wizards of the Coast
	sp("Legendary Collection", `\blegendary\s+collection\b`),
	sp("Neo Destiny", `\bneo\s+destiny\b`),
	sp("Neo Revelation", `\bneo\s+revelation\b`),
	sp("Neo Discovery", `\bneo\s+discovery\b`),
	sp("Neo Genesis", `\bneo\s+genesis\b`),
	sp("Gym Challenge", `\bgym\s+challenge\b`),
	sp("Gym Heroes", `\bgym\s+heroes\b`),
	sp("Team Rocket", `\bteam\s+rocket\b`),
	sp("Base Set 2", `\bbase\s+set\s+2\b`),
	sp("Base Set", `\bbase\s+set\b`),
	sp("Fossil", `\bfossil\b`),
	sp("Jungle", `\bjungle\b`),
}
