package search

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzyVenueThreshold is the maximum edit distance (as a fraction of the
// shorter token's length) still counted as a venue mention, catching
// misspelled or transliterated circuit names the alias table doesn't list
// (SPEC_FULL.md §9 Open Question iii: alias table first, fuzzy match second).
const fuzzyVenueThreshold = 0.25

// venueMentioned reports whether any venue token (or a near-miss within
// fuzzyVenueThreshold edit distance) appears in a release title, tokenized on
// non-letter boundaries so "Bahrain.Grand.Prix" still matches "Bahrain".
func venueMentioned(title string, venueTokens []string) bool {
	return venueCanonicalToken(title, venueTokens) != ""
}

// venueCanonicalToken returns the (folded) venue token matched in the title,
// or "" if none of the round's known tokens appear. Used both for the venue
// scoring signal and as the venue component of RichCanonicalKey.
func venueCanonicalToken(title string, venueTokens []string) string {
	titleWords := tokenizeWords(title)
	for _, venue := range venueTokens {
		venueWords := tokenizeWords(venue)
		if len(venueWords) == 0 {
			continue
		}
		matched := 0
		for _, vw := range venueWords {
			if wordNearMatch(vw, titleWords) {
				matched++
			}
		}
		if matched == len(venueWords) {
			return fold(venue)
		}
	}
	return ""
}

func wordNearMatch(word string, candidates []string) bool {
	for _, c := range candidates {
		if word == c {
			return true
		}
		dist := levenshtein.ComputeDistance(word, c)
		shorter := len(word)
		if len(c) < shorter {
			shorter = len(c)
		}
		if shorter >= 4 && float64(dist)/float64(shorter) <= fuzzyVenueThreshold {
			return true
		}
	}
	return false
}

func tokenizeWords(s string) []string {
	fields := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}
