package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racecarr/racecarr/internal/newznab"
)

func TestClassify_ParsesCoreFields(t *testing.T) {
	c := Classify("Formula.1.2025.Round03.Bahrain.Qualifying.1080p.HDR.x265-NTb")

	assert.True(t, c.IsSeries)
	assert.Equal(t, 2025, c.Year)
	assert.Equal(t, 3, c.RoundNumber)
	assert.Equal(t, "Qualifying", c.Session)
	assert.Equal(t, "1080p", c.Resolution)
	assert.True(t, c.HDR)
	assert.Equal(t, "hevc", c.Codec)
	assert.Equal(t, "NTb", c.ReleaseGroup)
	assert.Equal(t, "2025|3|qualifying", c.CanonicalKey)
}

func TestClassify_TVStyleTitle(t *testing.T) {
	c := Classify("F1.2024.S2024E05.Race.2160p.WEB.h264-GROUP")

	assert.True(t, c.IsSeries)
	assert.Equal(t, 2024, c.Year)
	assert.Equal(t, 5, c.RoundNumber)
	assert.Equal(t, "Race", c.Session)
}

func TestClassify_RejectsNonF1Title(t *testing.T) {
	c := Classify("Some.Random.Movie.2025.1080p.WEB-DL")
	assert.False(t, c.IsSeries)
}

func TestMergeByCanonicalKey_CollapsesDuplicatesKeepsHighestScorePreservesIndexers(t *testing.T) {
	title := "Formula.1.2025.Round03.Bahrain.Race.1080p.x265-NTb"
	lower := Scored{
		Candidate: Candidate{IndexerName: "indexer-a", Item: newznab.Item{Title: title, Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}}, Classification: Classify(title)},
		Score:     90,
	}
	higher := Scored{
		Candidate: Candidate{IndexerName: "indexer-b", Item: newznab.Item{Title: title, Enclosure: newznab.Enclosure{Length: 2 * 1024 * 1024 * 1024}}, Classification: Classify(title)},
		Score:     130,
	}
	distinctQuality := Scored{
		Candidate: Candidate{IndexerName: "indexer-a", Item: newznab.Item{Title: "Formula.1.2025.Round03.Bahrain.Race.2160p.x265-NTb", Enclosure: newznab.Enclosure{Length: 4 * 1024 * 1024 * 1024}}, Classification: Classify("Formula.1.2025.Round03.Bahrain.Race.2160p.x265-NTb")},
		Score:     140,
	}

	merged := MergeByCanonicalKey([]Scored{lower, higher, distinctQuality}, nil)

	require.Len(t, merged, 2)
	var dup Scored
	for _, sc := range merged {
		if sc.Candidate.Classification.Resolution == "1080p" {
			dup = sc
		}
	}
	assert.Equal(t, 130, dup.Score)
	assert.Equal(t, []string{"indexer-a", "indexer-b"}, dup.SourceIndexers)
}
