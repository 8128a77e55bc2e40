package search

import (
	"sort"
	"strings"
	"time"

	"github.com/racecarr/racecarr/internal/models"
	"github.com/racecarr/racecarr/internal/newznab"
)

// resolutionHeight maps a classified resolution token to its pixel height,
// matching the unit Settings.MinResolution/MaxResolution store (0 = no
// bound).
var resolutionHeight = map[string]int{
	"480p": 480, "720p": 720, "1080p": 1080, "2160p": 2160,
}

// ScoreContext is what the scorer needs to know about the search a
// candidate is being judged against: the round being searched, the session
// the caller wants, and the round's known venue tokens.
type ScoreContext struct {
	ExpectedYear  int
	ExpectedRound int
	WantedSession string
	VenueTokens   []string
}

// Scored is one candidate after the additive scorer runs, carrying the
// reasons that produced its total so operators can see why a release won or
// lost, plus every indexer name that returned this release once duplicates
// are merged (SPEC_FULL.md §4.4).
type Scored struct {
	Candidate      Candidate
	Score          int
	Reasons        []string
	SourceIndexers []string
}

// Score applies SPEC_FULL.md §4.4's additive signal table against one
// candidate, given the round/session being searched and the operator's
// Settings. Every signal is independent and additive; there is no hard
// reject here — out-of-bounds resolution and classification mismatches are
// penalties, not exclusions. Exclusion (the auto-grab hard filter) is
// RankAndSelect's concern.
func Score(cand Candidate, ctx ScoreContext, s *models.Settings) Scored {
	cl := cand.Classification
	sc := Scored{Candidate: cand, SourceIndexers: []string{cand.IndexerName}}

	// 1. Year match/mismatch.
	if cl.Year != 0 && ctx.ExpectedYear != 0 {
		if cl.Year == ctx.ExpectedYear {
			sc.Score += 40
			sc.Reasons = append(sc.Reasons, signalReason("year", "matches", 40))
		} else {
			sc.Score -= 40
			sc.Reasons = append(sc.Reasons, signalReason("year", "mismatch", -40))
		}
	}

	// 2. Round match/mismatch, only when both sides actually parsed one.
	if cl.RoundNumber != 0 && ctx.ExpectedRound != 0 {
		if cl.RoundNumber == ctx.ExpectedRound {
			sc.Score += 35
			sc.Reasons = append(sc.Reasons, signalReason("round", "matches", 35))
		} else {
			sc.Score -= 40
			sc.Reasons = append(sc.Reasons, signalReason("round", "mismatch", -40))
		}
	}

	// 3. Session match.
	if cl.Session != "" && ctx.WantedSession != "" && strings.EqualFold(cl.Session, ctx.WantedSession) {
		sc.Score += 25
		sc.Reasons = append(sc.Reasons, signalReason("session", cl.Session, 25))
	}

	// 4. Venue token mention.
	if venue := venueCanonicalToken(cand.Item.Title, ctx.VenueTokens); venue != "" {
		sc.Score += 15
		sc.Reasons = append(sc.Reasons, signalReason("venue", "mentioned", 15))
	}

	// 5. Preview/Notebook penalty: the caller wanted an actual session, this
	// is coverage of one, not the session itself.
	if isPreviewOrNotebook(cl.Session) && isActualSession(ctx.WantedSession) {
		sc.Score -= 20
		sc.Reasons = append(sc.Reasons, signalReason("session", cl.Session+" but an actual session was wanted", -20))
	}

	// 6. Release group preference.
	if cl.ReleaseGroup != "" && containsFold(s.PreferredGroups, cl.ReleaseGroup) {
		sc.Score += 10
		sc.Reasons = append(sc.Reasons, signalReason("group", cl.ReleaseGroup, 10))
	}

	height, hasResolution := resolutionHeight[cl.Resolution]
	withinBounds := !hasResolution || withinResolutionBounds(height, s)

	// 7. Codec preference, only within the allowed resolution band.
	if cl.Codec != "" && withinBounds && containsFold(s.PreferredCodecs, cl.Codec) {
		sc.Score += 5
		sc.Reasons = append(sc.Reasons, signalReason("codec", cl.Codec, 5))
	}

	// 8. HDR present but disallowed.
	if cl.HDR && !s.AllowHDR {
		sc.Score -= 25
		sc.Reasons = append(sc.Reasons, signalReason("hdr", "present but disallowed", -25))
	}

	// 9. Outside the configured resolution band.
	if hasResolution && !withinBounds {
		sc.Score -= 30
		sc.Reasons = append(sc.Reasons, signalReason("resolution", cl.Resolution+" outside bounds", -30))
	}

	return sc
}

func withinResolutionBounds(height int, s *models.Settings) bool {
	if s.MinResolution > 0 && height < s.MinResolution {
		return false
	}
	if s.MaxResolution > 0 && height > s.MaxResolution {
		return false
	}
	return true
}

func isPreviewOrNotebook(session string) bool {
	return session == "Preview" || session == "Notebook"
}

func isActualSession(session string) bool {
	switch session {
	case "Race", "Qualifying", "Sprint", "Sprint Qualifying", "FP1", "FP2", "FP3":
		return true
	default:
		return false
	}
}

func signalReason(signal, detail string, delta int) string {
	sign := "+"
	if delta < 0 {
		sign = ""
	}
	return signal + "=" + detail + " (" + sign + itoa(delta) + ")"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func containsFold(list []string, needle string) bool {
	for _, v := range list {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

// yearOrRoundMismatch reports the hard-filter condition from SPEC_FULL.md
// §4.4: a candidate whose classified year or round was parsed and disagrees
// with the round being searched. Manual surfaces skip this filter; auto-grab
// consideration never does.
func yearOrRoundMismatch(cl Classification, ctx ScoreContext) bool {
	if cl.Year != 0 && ctx.ExpectedYear != 0 && cl.Year != ctx.ExpectedYear {
		return true
	}
	if cl.RoundNumber != 0 && ctx.ExpectedRound != 0 && cl.RoundNumber != ctx.ExpectedRound {
		return true
	}
	return false
}

// RankAndSelect scores every candidate, optionally drops year/round hard
// mismatches (auto-grab consideration only), merges duplicates by rich
// canonical key, and returns the survivors sorted best-first. Ties break by
// SPEC_FULL.md §4.4's order: preferred resolution, then preferred codec,
// then newer pubdate, then smaller size deviation from the bucket's median,
// then indexer priority.
func RankAndSelect(candidates []Candidate, ctx ScoreContext, settings *models.Settings, indexerPriority map[uint64]int, hardFilter bool) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, Score(c, ctx, settings))
	}

	if hardFilter {
		survivors := scored[:0]
		for _, sc := range scored {
			if yearOrRoundMismatch(sc.Candidate.Classification, ctx) {
				continue
			}
			survivors = append(survivors, sc)
		}
		scored = survivors
	}

	merged := MergeByCanonicalKey(scored, ctx.VenueTokens)

	sizes := make([]int64, len(merged))
	for i, sc := range merged {
		sizes[i] = candidateSize(sc.Candidate)
	}
	med := medianSize(sizes)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}

		ah, bh := resolutionHeight[a.Candidate.Classification.Resolution], resolutionHeight[b.Candidate.Classification.Resolution]
		if ah != bh {
			return ah > bh
		}

		aCodec := containsFold(settings.PreferredCodecs, a.Candidate.Classification.Codec)
		bCodec := containsFold(settings.PreferredCodecs, b.Candidate.Classification.Codec)
		if aCodec != bCodec {
			return aCodec
		}

		at, aok := parsePubDate(a.Candidate.Item.PubDate)
		bt, bok := parsePubDate(b.Candidate.Item.PubDate)
		if aok && bok && !at.Equal(bt) {
			return at.After(bt)
		}

		devA := sizeDeviation(candidateSize(a.Candidate), med)
		devB := sizeDeviation(candidateSize(b.Candidate), med)
		if devA != devB {
			return devA < devB
		}

		return indexerPriority[a.Candidate.IndexerID] < indexerPriority[b.Candidate.IndexerID]
	})

	return merged
}

func candidateSize(c Candidate) int64 {
	if v := newznab.GetAttributeInt64(c.Item, "size"); v > 0 {
		return v
	}
	return c.Item.Enclosure.Length
}

// parsePubDate accepts the two layouts Newznab-style RSS feeds use for
// <pubDate>.
func parsePubDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func medianSize(sizes []int64) int64 {
	if len(sizes) == 0 {
		return 0
	}
	sorted := append([]int64(nil), sizes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sizeDeviation(size, median int64) int64 {
	d := size - median
	if d < 0 {
		return -d
	}
	return d
}
