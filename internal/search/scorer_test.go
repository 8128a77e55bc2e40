package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
)

func settingsFixture() *models.Settings {
	s := models.DefaultSettings()
	s.MinResolution = 1080
	s.MaxResolution = 1080
	s.AllowHDR = false
	s.PreferredCodecs = []string{"hevc"}
	s.PreferredGroups = []string{"NTb"}
	return s
}

func candidateWithSize(title string, size int64) Candidate {
	return Candidate{
		Item:           newznab.Item{Title: title, Enclosure: newznab.Enclosure{Length: size}},
		Classification: Classify(title),
	}
}

var bahrainQualifyingCtx = ScoreContext{
	ExpectedYear: 2025, ExpectedRound: 3, WantedSession: "Qualifying",
	VenueTokens: []string{"Bahrain"},
}

// TestScore_S1LiteralTitles mirrors the literal title pair an operator would
// see for the same round/session search: a proper release and a preview
// clip that happens to mention the same session.
func TestScore_S1LiteralTitles(t *testing.T) {
	settings := settingsFixture()

	a := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.x265-NTb", 2*1024*1024*1024), bahrainQualifyingCtx, settings)
	b := Score(candidateWithSize("F1 2025 Bahrain Qualifying Preview 720p", 400*1024*1024), bahrainQualifyingCtx, settings)

	assert.GreaterOrEqual(t, a.Score, 130)
	assert.LessOrEqual(t, b.Score, 25)
	assert.Equal(t, "Preview", b.Candidate.Classification.Session)
}

func TestScore_YearAndRoundMismatchPenalized(t *testing.T) {
	settings := settingsFixture()
	sc := Score(candidateWithSize("Formula.1.2024.Round05.Monaco.Race.1080p.x265-NTb", 2*1024*1024*1024), bahrainQualifyingCtx, settings)
	assert.Less(t, sc.Score, 0)
}

func TestScore_HDRPenalizedWhenDisallowed(t *testing.T) {
	settings := settingsFixture()
	clean := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.x265-NTb", 2*1024*1024*1024), bahrainQualifyingCtx, settings)
	hdr := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.HDR.x265-NTb", 2*1024*1024*1024), bahrainQualifyingCtx, settings)
	assert.Equal(t, clean.Score-25, hdr.Score)
}

func TestScore_OutsideResolutionBoundsPenalized(t *testing.T) {
	settings := settingsFixture()
	sc := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.2160p.x265-NTb", 4*1024*1024*1024), bahrainQualifyingCtx, settings)
	assert.Contains(t, sc.Reasons, signalReason("resolution", "2160p outside bounds", -30))
}

func TestScore_PreferredCodecBonusOnlyWithinBounds(t *testing.T) {
	settings := settingsFixture()
	settings.MinResolution, settings.MaxResolution = 720, 2160

	within := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.x265-NTb", 2*1024*1024*1024), bahrainQualifyingCtx, settings)
	settings.MaxResolution = 1080
	outside := Score(candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.2160p.x265-NTb", 4*1024*1024*1024), bahrainQualifyingCtx, settings)

	assert.Contains(t, within.Reasons, signalReason("codec", "hevc", 5))
	assert.NotContains(t, outside.Reasons, signalReason("codec", "hevc", 5))
}

// neutralCtx and neutralSettings zero out every score signal so the only
// observable differences between candidates come from the tie-break
// comparator in RankAndSelect, not Score itself.
var neutralCtx = ScoreContext{}

func neutralSettings() *models.Settings {
	s := models.DefaultSettings()
	s.AllowHDR = true
	s.MinResolution, s.MaxResolution = 0, 0
	s.PreferredCodecs, s.PreferredGroups = nil, nil
	return s
}

func TestRankAndSelect_TieBreakPrefersHigherResolution(t *testing.T) {
	settings := neutralSettings()
	low := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPA", 2*1024*1024*1024)
	high := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.2160p-GROUPB", 2*1024*1024*1024)

	ranked := RankAndSelect([]Candidate{low, high}, neutralCtx, settings, nil, false)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Score)
	assert.Equal(t, "2160p", ranked[0].Candidate.Classification.Resolution)
}

func TestRankAndSelect_TieBreakPrefersNewerPubDate(t *testing.T) {
	settings := neutralSettings()
	older := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPA", 2*1024*1024*1024)
	older.Item.PubDate = "Fri, 01 Aug 2025 10:00:00 +0000"
	newer := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPB", 2*1024*1024*1024)
	newer.Item.PubDate = "Sat, 02 Aug 2025 10:00:00 +0000"

	ranked := RankAndSelect([]Candidate{older, newer}, neutralCtx, settings, nil, false)
	require.Len(t, ranked, 2)
	assert.Equal(t, newer.Item.PubDate, ranked[0].Candidate.Item.PubDate)
}

func TestRankAndSelect_TieBreakPrefersSmallerSizeDeviationFromMedian(t *testing.T) {
	settings := neutralSettings()
	onMedian := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPA", 3*1024*1024*1024)
	farFromMedian := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPB", 8*1024*1024*1024)
	anchor := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPC", 3*1024*1024*1024)

	ranked := RankAndSelect([]Candidate{onMedian, farFromMedian, anchor}, neutralCtx, settings, nil, false)
	require.Len(t, ranked, 3)
	assert.NotEqual(t, "GROUPB", ranked[0].Candidate.Classification.ReleaseGroup)
}

func TestRankAndSelect_IndexerPriorityIsLastResortTiebreak(t *testing.T) {
	settings := neutralSettings()
	a := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPA", 2*1024*1024*1024)
	a.IndexerID = 1
	b := candidateWithSize("Formula.1.2025.Round03.Silverstone.Race.1080p-GROUPB", 2*1024*1024*1024)
	b.IndexerID = 2

	ranked := RankAndSelect([]Candidate{a, b}, neutralCtx, settings, map[uint64]int{1: 1, 2: 2}, false)
	require.Len(t, ranked, 2)
	assert.Equal(t, uint64(1), ranked[0].Candidate.IndexerID)
}

func TestRankAndSelect_HardFilterDropsYearRoundMismatchOnly(t *testing.T) {
	settings := settingsFixture()
	match := candidateWithSize("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.x265-NTb", 2*1024*1024*1024)
	wrongYear := candidateWithSize("Formula.1.2024.Round03.Bahrain.Qualifying.1080p.x265-NTb", 2*1024*1024*1024)

	filtered := RankAndSelect([]Candidate{match, wrongYear}, bahrainQualifyingCtx, settings, nil, true)
	require.Len(t, filtered, 1)
	assert.Equal(t, 2025, filtered[0].Candidate.Classification.Year)

	unfiltered := RankAndSelect([]Candidate{match, wrongYear}, bahrainQualifyingCtx, settings, nil, false)
	assert.Len(t, unfiltered, 2)
}
