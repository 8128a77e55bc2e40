package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueries_GeneratesPerVenueAndTVSearch(t *testing.T) {
	round := RoundMeta{Year: 2025, RoundNumber: 3, Name: "FORMULA 1 GULF AIR BAHRAIN GRAND PRIX", Circuit: "Bahrain International Circuit", Country: "Bahrain"}

	queries := BuildQueries(round, "Race", nil)

	var sawTV bool
	for _, q := range queries {
		if q.Type == "tvsearch" {
			sawTV = true
			assert.Equal(t, 2025, q.Season)
			assert.Equal(t, 3, q.Episode)
		}
	}
	assert.True(t, sawTV)
	assert.Greater(t, len(queries), 1)
}

func TestBuildQueries_UsesVenueAliases(t *testing.T) {
	aliases := NewVenueAliases()
	aliases.Set("Bahrain International Circuit", []string{"Sakhir"})

	round := RoundMeta{Year: 2025, RoundNumber: 3, Name: "Bahrain Grand Prix", Circuit: "Bahrain International Circuit", Country: "Bahrain"}
	queries := BuildQueries(round, "Race", aliases)

	var sawSakhir bool
	for _, q := range queries {
		if q.Type == "search" && strings.Contains(q.Text, "Sakhir") {
			sawSakhir = true
		}
	}
	assert.True(t, sawSakhir)
}

func TestAllowlistFingerprint_OrderIndependent(t *testing.T) {
	a := AllowlistFingerprint([]string{"Race", "Qualifying"})
	b := AllowlistFingerprint([]string{"qualifying", "race"})
	assert.Equal(t, a, b)
}
