package search

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
)

type fakeSearcher struct {
	items []newznab.Item
}

func (f fakeSearcher) Search(ctx context.Context, q newznab.Query) ([]newznab.Item, error) {
	return f.items, nil
}

func TestRunRoundSearch_RanksAndFiltersByCanonicalKey(t *testing.T) {
	round := RoundMeta{Year: 2025, RoundNumber: 3, Name: "Bahrain Grand Prix", Circuit: "Bahrain International Circuit", Country: "Bahrain"}

	searcher := fakeSearcher{items: []newznab.Item{
		{Title: "Formula.1.2025.Round03.Bahrain.Race.2160p.x265-NTb", Enclosure: newznab.Enclosure{Length: 4 * 1024 * 1024 * 1024}},
		{Title: "Formula.1.2025.Round03.Bahrain.Race.1080p-GROUP", Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}},
		{Title: "Formula.1.2025.Round03.Bahrain.Qualifying.1080p-GROUP", Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}},
	}}

	indexers := map[uint64]IndexerSearcher{1: searcher}
	names := map[uint64]string{1: "test-indexer"}
	settings := models.DefaultSettings()
	settings.AllowHDR = true

	result := RunRoundSearch(context.Background(), logrus.New(), round, "Race", nil, indexers, names, settings, map[uint64]int{1: 1})

	require.NotEmpty(t, result.Scored)
	assert.False(t, result.AllIndexersFailed())
	for _, r := range result.Scored {
		assert.Equal(t, "Race", r.Candidate.Classification.Session)
	}
	assert.Equal(t, "2160p", result.Scored[0].Candidate.Classification.Resolution)
}

type failingSearcher struct{}

func (failingSearcher) Search(ctx context.Context, q newznab.Query) ([]newznab.Item, error) {
	return nil, assert.AnError
}

func TestRunRoundSearch_AllIndexersFailedIsDistinguishable(t *testing.T) {
	round := RoundMeta{Year: 2025, RoundNumber: 3, Name: "Bahrain Grand Prix", Circuit: "Bahrain International Circuit", Country: "Bahrain"}
	indexers := map[uint64]IndexerSearcher{1: failingSearcher{}}
	names := map[uint64]string{1: "test-indexer"}

	result := RunRoundSearch(context.Background(), logrus.New(), round, "Race", nil, indexers, names, models.DefaultSettings(), map[uint64]int{1: 1})

	assert.True(t, result.AllIndexersFailed())
	assert.Empty(t, result.Scored)
}

func TestRunRoundSearchManual_SurfacesYearRoundMismatchesRunRoundSearchDrops(t *testing.T) {
	round := RoundMeta{Year: 2025, RoundNumber: 3, Name: "Bahrain Grand Prix", Circuit: "Bahrain International Circuit", Country: "Bahrain"}

	searcher := fakeSearcher{items: []newznab.Item{
		{Title: "Formula.1.2025.Round03.Bahrain.Race.1080p-GROUP", Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}},
		{Title: "Formula.1.2024.Round03.Bahrain.Race.1080p-OLD", Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}},
	}}
	indexers := map[uint64]IndexerSearcher{1: searcher}
	names := map[uint64]string{1: "test-indexer"}
	settings := models.DefaultSettings()
	settings.AllowHDR = true

	auto := RunRoundSearch(context.Background(), logrus.New(), round, "Race", nil, indexers, names, settings, map[uint64]int{1: 1})
	require.Len(t, auto.Scored, 1)
	assert.Equal(t, 2025, auto.Scored[0].Candidate.Classification.Year)

	manual := RunRoundSearchManual(context.Background(), logrus.New(), round, "Race", nil, indexers, names, settings, map[uint64]int{1: 1})
	require.Len(t, manual.Scored, 2)
	years := []int{manual.Scored[0].Candidate.Classification.Year, manual.Scored[1].Candidate.Classification.Year}
	assert.Contains(t, years, 2024)
	assert.Contains(t, years, 2025)
}
