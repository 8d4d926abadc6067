package guardian

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/trustgate-dev/trustgate/internal/catalog"
)

// scanUnicode detects unicode smuggling in content: invisible characters,
// bidirectional overrides, and homoglyphs that make displayed text differ
// from what actually runs. Findings are surfaced as risky constructs so
// they participate in risk level and decision derivation like any other
// catalog match.
func scanUnicode(content string) []RiskMatch {
	var risks []RiskMatch
	line := 1

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		if r == '\n' {
			line++
		}

		if r == utf8.RuneError && size == 1 {
			risks = append(risks, RiskMatch{
				Type:        "invalid-utf8",
				Level:       catalog.RiskHigh,
				Line:        line,
				Description: "invalid UTF-8 byte sequence",
			})
			i++
			continue
		}

		if m, ok := classifyRune(r, line); ok {
			risks = append(risks, m)
		}
		i += size
	}
	return risks
}

func classifyRune(r rune, line int) (RiskMatch, bool) {
	cp := fmt.Sprintf("U+%04X", r)

	switch {
	case isInvisible(r):
		return RiskMatch{
			Type:        "unicode-invisible",
			Level:       catalog.RiskHigh,
			Line:        line,
			Description: fmt.Sprintf("invisible character %s can hide content from display", cp),
		}, true
	case isBidiControl(r):
		return RiskMatch{
			Type:        "unicode-bidi",
			Level:       catalog.RiskHigh,
			Line:        line,
			Description: fmt.Sprintf("bidirectional control %s can make displayed text differ from executed text", cp),
		}, true
	case r >= 0xE0001 && r <= 0xE007F:
		return RiskMatch{
			Type:        "unicode-tag",
			Level:       catalog.RiskHigh,
			Line:        line,
			Description: fmt.Sprintf("tag character %s can smuggle hidden instructions", cp),
		}, true
	}

	if latin, ok := homoglyphOf(r); ok {
		return RiskMatch{
			Type:        "unicode-homoglyph",
			Level:       catalog.RiskMedium,
			Line:        line,
			Description: fmt.Sprintf("%s resembles Latin %q", cp, latin),
		}, true
	}

	return RiskMatch{}, false
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200B', // zero width space
		'\u200C', // zero width non-joiner
		'\u200D', // zero width joiner
		'\u200E', // left-to-right mark
		'\u200F', // right-to-left mark
		'\u2060', // word joiner
		'\u180E', // Mongolian vowel separator
		'\uFEFF': // BOM / zero width no-break space
		return true
	}
	return false
}

func isBidiControl(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

// homoglyphOf reports the Latin letter a Cyrillic or Greek rune is commonly
// confused with, if any.
func homoglyphOf(r rune) (rune, bool) {
	if unicode.Is(unicode.Cyrillic, r) {
		latin, ok := cyrillicConfusables[r]
		return latin, ok
	}
	if unicode.Is(unicode.Greek, r) {
		latin, ok := greekConfusables[r]
		return latin, ok
	}
	return 0, false
}

var cyrillicConfusables = map[rune]rune{
	'а': 'a', 'А': 'A',
	'В': 'B',
	'с': 'c', 'С': 'C',
	'е': 'e', 'Е': 'E',
	'Н': 'H',
	'і': 'i', 'І': 'I',
	'К': 'K',
	'М': 'M',
	'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P',
	'Т': 'T',
	'х': 'x', 'Х': 'X',
	'у': 'y', 'У': 'Y',
}

var greekConfusables = map[rune]rune{
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I',
	'Κ': 'K', 'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'ο': 'o',
	'Ρ': 'P', 'Τ': 'T', 'Υ': 'Y', 'Χ': 'X', 'Ζ': 'Z',
}
