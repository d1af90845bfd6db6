package normalize

import (
	"regexp"
	"strings"
)

var (
	hashNumberFraction = regexp.MustCompile(`#\s*\d+\s*/\s*\d+`)
	hashNumber         = regexp.MustCompile(`#\s*\d+\b`)
	bareFraction       = regexp.MustCompile(`\b\d+\s*/\s*\d+\b`)
	trailingNumbers    = regexp.MustCompile(`(?:\s+\d+)+\s*$`)
	emptyBrackets      = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	edgePunctuation    = regexp.MustCompile(`^[\s\-|,:/]+|[\s\-|,:/]+$`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	leadingCardNumber  = regexp.MustCompile(`^\s*#?0*(\d+)`)

	qualifierPatterns = wholeWordPatterns(QualifierPhrases)
	noisePatterns     = wholeWordPatterns(NoiseWords)
)

// maxCleanPasses bounds the fixpoint loop in ExtractCardName; a pass only
// ever removes text so real titles settle in two or three passes.
const maxCleanPasses = 10

func wholeWordPatterns(phrases []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		expr := regexp.QuoteMeta(p)
		expr = strings.ReplaceAll(expr, " ", `\s+`)
		patterns = append(patterns, regexp.MustCompile(`(?i)(?:^|\b)`+expr+`(?:\b|$)`))
	}
	return patterns
}

// ExtractCardName isolates the canonical card name from a free-text product
// title by removing card numbers, qualifier phrases and marketplace noise.
// It never fails; when nothing would be left it returns the trimmed input.
// Repeated application yields the same result.
func ExtractCardName(title string) string {
	trimmed := strings.TrimSpace(title)
	name := trimmed
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanOnce(name)
		if next == name {
			break
		}
		name = next
	}
	if name == "" {
		return trimmed
	}
	return name
}

func cleanOnce(s string) string {
	s = gradeQualifier.ReplaceAllString(s, " ")
	s = hashNumberFraction.ReplaceAllString(s, " ")
	s = hashNumber.ReplaceAllString(s, " ")
	s = bareFraction.ReplaceAllString(s, " ")
	s = trailingNumbers.ReplaceAllString(s, "")
	for _, re := range qualifierPatterns {
		s = re.ReplaceAllString(s, " ")
	}
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = emptyBrackets.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = edgePunctuation.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractSetFromTitle returns the display name of the first set pattern that
// matches title, or UnknownSet.
func ExtractSetFromTitle(title string) string {
	for _, p := range SetPatterns {
		if p.pattern.MatchString(title) {
			return p.name
		}
	}
	return UnknownSet
}

// KnownSetNames lists the set display names in match order.
func KnownSetNames() []string {
	names := make([]string, len(SetPatterns))
	for i, p := range SetPatterns {
		names[i] = p.name
	}
	return names
}

// SignificantWords returns the lowercased words of s longer than
// MinSignificantWordLen characters.
func SignificantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(w)) > MinSignificantWordLen {
			words = append(words, w)
		}
	}
	return words
}

// NumericCardNumber returns the leading numeric part of a card number with
// leading zeros removed: "004/102" -> "4", "#58" -> "58", "000" -> "0".
// ok is false when the number does not start with a digit ("TG05", "SWSH001").
func NumericCardNumber(number string) (string, bool) {
	m := leadingCardNumber.FindStringSubmatch(number)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CleanListingTitle removes marketplace boilerplate from a scraped title.
func CleanListingTitle(title string) string {
	for _, b := range ListingBoilerplate {
		title = strings.ReplaceAll(title, b, " ")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
}

// WholeWordPatterns compiles case-insensitive whole-word matchers for phrases.
func WholeWordPatterns(phrases []string) []*regexp.Regexp {
	return wholeWordPatterns(phrases)
}
