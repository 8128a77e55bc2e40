package search

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
)

// IndexerSearcher is the subset of newznab.Client this package depends on,
// so tests can fake indexer responses without standing up HTTP servers.
type IndexerSearcher interface {
	Search(ctx context.Context, q newznab.Query) ([]newznab.Item, error)
}

// SessionCanonicalForEventType maps the entity graph's EventType onto the
// canonical session name query generation and the classifier use. Shared by
// internal/scheduler (per-entry runs) and the API's round-search/auto-grab
// handlers (round-level runs) so both walk the same mapping.
func SessionCanonicalForEventType(t models.EventType) string {
	switch t {
	case models.EventFP1:
		return "FP1"
	case models.EventFP2:
		return "FP2"
	case models.EventFP3:
		return "FP3"
	case models.EventQualifying:
		return "Qualifying"
	case models.EventSprint:
		return "Sprint"
	case models.EventSprintQualifying:
		return "Sprint Qualifying"
	case models.EventRace:
		return "Race"
	default:
		return ""
	}
}

// RoundSearchResult carries the ranked survivors plus enough fan-out health
// information for the caller to tell "nobody had a match" apart from
// "every indexer was down" (SPEC_FULL.md §4.9's transient-vs-empty
// distinction).
type RoundSearchResult struct {
	Scored          []Scored
	IndexersQueried int
	IndexersFailed  int // indexers where every query errored
}

// AllIndexersFailed reports a full outage: every queried indexer failed
// every query, so the caller should treat this as a transient error rather
// than a plain no-match.
func (r RoundSearchResult) AllIndexersFailed() bool {
	return r.IndexersQueried > 0 && r.IndexersFailed == r.IndexersQueried
}

// fanOutAndClassify runs a session's BuildQueries set across every enabled
// indexer and classifies every item returned. Shared by the scheduler's
// hard-filtered auto-grab path and the API's unfiltered manual-search path.
func fanOutAndClassify(ctx context.Context, logger *logrus.Logger, round RoundMeta, sessionCanonical string, aliases *VenueAliases, indexers map[uint64]IndexerSearcher, indexerNames map[uint64]string) (candidates []Candidate, queried, failed int) {
	queries := BuildQueries(round, sessionCanonical, aliases)

	for indexerID, client := range indexers {
		queried++
		successes := 0
		for _, q := range queries {
			nq := newznab.Query{
				RawQuery: q.Text,
				Type:     q.Type,
				Season:   q.Season,
				Episode:  q.Episode,
			}
			items, err := client.Search(ctx, nq)
			if err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"indexer": indexerNames[indexerID],
					"query":   q.Text,
				}).Warn("indexer search failed")
				continue
			}
			successes++
			for _, item := range items {
				candidates = append(candidates, Candidate{
					Item:           item,
					IndexerID:      indexerID,
					IndexerName:    indexerNames[indexerID],
					Classification: Classify(item.Title),
				})
			}
		}
		if successes == 0 {
			failed++
		}
	}
	return candidates, queried, failed
}

// RunRoundSearch fans a session's BuildQueries set out across every enabled
// indexer, classifies the results, and scores only the candidates whose
// classifier bucket (year, round, session) exactly matches what was asked
// for. This is the auto-grab consideration path (SPEC_FULL.md §4.9): a
// candidate that doesn't belong to this round/session at all is never a
// sendable hit, so it never appears here. It does no caching; the scheduler
// calls it directly on every run without consulting RoundCache.
func RunRoundSearch(ctx context.Context, logger *logrus.Logger, round RoundMeta, sessionCanonical string, aliases *VenueAliases, indexers map[uint64]IndexerSearcher, indexerNames map[uint64]string, settings *models.Settings, indexerPriority map[uint64]int) RoundSearchResult {
	candidates, queried, failed := fanOutAndClassify(ctx, logger, round, sessionCanonical, aliases, indexers, indexerNames)

	result := RoundSearchResult{IndexersQueried: queried, IndexersFailed: failed}
	if result.AllIndexersFailed() {
		return result
	}

	wantKey := canonicalKey(round.Year, round.RoundNumber, sessionCanonical)
	var bucket []Candidate
	for _, c := range candidates {
		if c.Classification.IsSeries && c.Classification.CanonicalKey == wantKey {
			bucket = append(bucket, c)
		}
	}
	if len(bucket) == 0 {
		return result
	}

	scoreCtx := ScoreContext{
		ExpectedYear:  round.Year,
		ExpectedRound: round.RoundNumber,
		WantedSession: sessionCanonical,
		VenueTokens:   round.VenueTokens(),
	}
	result.Scored = RankAndSelect(bucket, scoreCtx, settings, indexerPriority, true)
	return result
}

// RunRoundSearchManual is the manual /api/rounds/{id}/search path. It runs
// the same fan-out and scoring as RunRoundSearch, but never drops a
// candidate for a year or round mismatch: SPEC_FULL.md §4.4's hard filter
// applies only to auto-grab consideration, and operators reviewing a manual
// search still want to see (and understand, via score and reasons) every
// release the indexers actually returned.
func RunRoundSearchManual(ctx context.Context, logger *logrus.Logger, round RoundMeta, sessionCanonical string, aliases *VenueAliases, indexers map[uint64]IndexerSearcher, indexerNames map[uint64]string, settings *models.Settings, indexerPriority map[uint64]int) RoundSearchResult {
	candidates, queried, failed := fanOutAndClassify(ctx, logger, round, sessionCanonical, aliases, indexers, indexerNames)

	result := RoundSearchResult{IndexersQueried: queried, IndexersFailed: failed}
	if result.AllIndexersFailed() {
		return result
	}

	var series []Candidate
	for _, c := range candidates {
		if c.Classification.IsSeries {
			series = append(series, c)
		}
	}
	if len(series) == 0 {
		return result
	}

	scoreCtx := ScoreContext{
		ExpectedYear:  round.Year,
		ExpectedRound: round.RoundNumber,
		WantedSession: sessionCanonical,
		VenueTokens:   round.VenueTokens(),
	}
	result.Scored = RankAndSelect(series, scoreCtx, settings, indexerPriority, false)
	return result
}
