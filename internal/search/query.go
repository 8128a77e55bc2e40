// Package search is the query builder, classifier, scorer (C5) and the
// round-level result cache (C6). Grounded on the teacher's regex-and-sort
// scoring idiom (internal/utils/quality.go: DetermineQuality, RankByQuality,
// ExtractYear) generalized from a quality-tier ranking into the additive,
// reasons-carrying scorer SPEC_FULL.md §4.4 specifies.
package search

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// foldKey case-folds a venue token for map keys and alias lookups using
// Unicode-aware folding rather than strings.ToLower, since circuit/country
// names carry accented characters (Sao Paulo, Mexico City, Imola).
var foldKey = cases.Fold()

func fold(s string) string { return foldKey.String(s) }

// titleCaser renders a free-text query token back to display case for the
// generated query strings.
var titleCaser = cases.Title(language.English)

// canonicalSessions is the ordered list SPEC_FULL.md §4.4 names for query
// generation; "Sprint Qualifying" keeps its space for the literal query text.
var canonicalSessions = []string{
	"Race", "Qualifying", "Sprint", "Sprint Qualifying",
	"FP1", "FP2", "FP3", "Practice", "Shakedown", "Preview", "Post-Race", "Notebook",
}

// CanonicalSessions returns the ordered session names query generation and
// the scheduler iterate over.
func CanonicalSessions() []string {
	out := make([]string, len(canonicalSessions))
	copy(out, canonicalSessions)
	return out
}

// VenueAliases resolves a round's venue tokens (name/circuit/country) to the
// alias set used for query generation and scoring. Ships empty and is
// operator-editable (SPEC_FULL.md §9 Open Question iii); repurposes the
// teacher's file-based substring-matching table idiom
// (internal/utils/blacklist.go) for a second small operator-editable table.
type VenueAliases struct {
	// aliases maps a canonical venue key to every known alternate token
	// (city, country, circuit short name, sponsor-stripped name).
	aliases map[string][]string
}

func NewVenueAliases() *VenueAliases {
	return &VenueAliases{aliases: make(map[string][]string)}
}

// Set registers (or replaces) the alias list for a venue key.
func (v *VenueAliases) Set(venueKey string, tokens []string) {
	v.aliases[fold(venueKey)] = tokens
}

// TokensFor returns every known token for a venue, including the key itself.
func (v *VenueAliases) TokensFor(venueKey string) []string {
	key := fold(venueKey)
	tokens := append([]string{venueKey}, v.aliases[key]...)
	return tokens
}

// RoundMeta is the subset of round/season metadata the query builder and
// classifier need, decoupled from internal/models so this package stays pure
// (SPEC_FULL.md §5 "classifier/scorer is pure, no shared mutable state").
type RoundMeta struct {
	Year        int
	RoundNumber int
	Name        string // raw raceName, kept as an alias
	Circuit     string
	Country     string
}

// VenueTokens extracts the source tokens a RoundMeta offers for alias
// resolution: name, circuit, country, each sponsor-stripped.
func (r RoundMeta) VenueTokens() []string {
	tokens := []string{r.Circuit, r.Country, stripSponsorTokens(r.Name)}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripSponsorTokens drops common sponsor-heavy prefixes/suffixes from a raw
// provider race name, per SPEC_FULL.md §4.2's merge rule; the raw name is
// still kept as an alias by the caller.
func stripSponsorTokens(name string) string {
	replacer := strings.NewReplacer(
		"FORMULA 1 ", "", "Formula 1 ", "",
		" GRAND PRIX", "", " Grand Prix", "",
	)
	return strings.TrimSpace(replacer.Replace(name))
}

// Query is one generated fan-out query, ready to be issued through
// internal/newznab.Client.
type Query struct {
	Text    string // free-text for t=search
	Type    string // "search" or "tvsearch"
	Season  int    // year, for t=tvsearch
	Episode int    // round number, for t=tvsearch
}

// BuildQueries generates the fan-out query set for one (round, session) per
// SPEC_FULL.md §4.4: three free-text query shapes per venue token (venue
// aliases included), plus one t=tvsearch query.
func BuildQueries(round RoundMeta, sessionCanonical string, aliases *VenueAliases) []Query {
	venueTokens := round.VenueTokens()
	if aliases != nil {
		seen := make(map[string]bool)
		expanded := make([]string, 0, len(venueTokens))
		for _, t := range venueTokens {
			for _, alt := range aliases.TokensFor(t) {
				if alt == "" || seen[fold(alt)] {
					continue
				}
				seen[fold(alt)] = true
				expanded = append(expanded, alt)
			}
		}
		if len(expanded) > 0 {
			venueTokens = expanded
		}
	}
	if len(venueTokens) == 0 {
		venueTokens = []string{""}
	}

	var queries []Query
	for _, raw := range venueTokens {
		venue := titleCaser.String(raw)
		queries = append(queries,
			Query{Text: strings.TrimSpace(fmt.Sprintf("Formula 1 %d %s %s", round.Year, venue, sessionCanonical)), Type: "search"},
			Query{Text: strings.TrimSpace(fmt.Sprintf("Formula1 %d Round%02d %s %s", round.Year, round.RoundNumber, venue, sessionCanonical)), Type: "search"},
			Query{Text: strings.TrimSpace(fmt.Sprintf("F1 %d %s %s", round.Year, venue, sessionCanonical)), Type: "search"},
		)
	}
	queries = append(queries, Query{
		Text:    fmt.Sprintf("Formula 1 %s", sessionCanonical),
		Type:    "tvsearch",
		Season:  round.Year,
		Episode: round.RoundNumber,
	})

	return queries
}
