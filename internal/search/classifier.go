package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/racecarr/racecarr/internal/newznab"
)

// seriesRegex recognizes "Formula.1", "Formula 1", "F1" markers in a release
// title; seriesTVRegex recognizes the TV-style SxxEyy shape some indexers use
// for F1 content indexed as a season pack. Both grounded on the teacher's
// internal/services/newznab/search.go parseSeasonEpisode idiom, generalized
// from TV show numbering to F1's year/round numbering.
var (
	seriesRegex   = regexp.MustCompile(`(?i)\bf(?:ormula)?[\.\s-]?1\b`)
	seriesTVRegex = regexp.MustCompile(`(?i)\bs(\d{4})e(\d{2,3})\b`)
	yearRegex     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	roundRegex    = regexp.MustCompile(`(?i)\bround\s?0*(\d{1,2})\b`)
	resolutionRx  = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p)\b`)
	hdrRegex      = regexp.MustCompile(`(?i)\b(hdr10\+?|hdr|dv|dolby[\.\s]?vision)\b`)
	codecRegex    = regexp.MustCompile(`(?i)\b(x265|h\.?265|hevc|x264|h\.?264|av1)\b`)
	groupRegex    = regexp.MustCompile(`-([A-Za-z0-9]+)$`)

	// sessionKeywords is checked in order, first match wins. Preview/Notebook
	// are checked first: a release literally called e.g. "Qualifying Preview"
	// is a preview clip, not the qualifying session itself, even though it
	// also mentions the session it previews.
	sessionKeywords = []struct {
		canonical string
		pattern   *regexp.Regexp
	}{
		{"Preview", regexp.MustCompile(`(?i)\bpreview\b`)},
		{"Notebook", regexp.MustCompile(`(?i)\bnotebook\b`)},
		{"Sprint Qualifying", regexp.MustCompile(`(?i)sprint[\.\s_-]?quali`)},
		{"Sprint", regexp.MustCompile(`(?i)\bsprint\b`)},
		{"Qualifying", regexp.MustCompile(`(?i)\bquali(fying)?\b`)},
		{"Race", regexp.MustCompile(`(?i)\brace\b|\bgrand[\.\s_-]?prix\b`)},
		{"FP1", regexp.MustCompile(`(?i)\b(fp1|practice[\.\s_-]?1)\b`)},
		{"FP2", regexp.MustCompile(`(?i)\b(fp2|practice[\.\s_-]?2)\b`)},
		{"FP3", regexp.MustCompile(`(?i)\b(fp3|practice[\.\s_-]?3)\b`)},
	}
)

// Classification is the structured read of one release title, used both to
// reject non-F1 junk (IsSeries false) and to feed the scorer.
type Classification struct {
	IsSeries     bool
	Session      string // canonical session name, "" if undetermined
	Year         int
	RoundNumber  int // 0 if undetermined
	Resolution   string
	HDR          bool
	Codec        string
	ReleaseGroup string
	IsSeasonPack bool
	CanonicalKey string // (year, roundNumber, session) bucket key
}

// Classify inspects a release title and derives the Classification used for
// session bucketing and scoring. Titles that don't look like F1 content at
// all (IsSeries false) are dropped by the caller before scoring.
func Classify(title string) Classification {
	c := Classification{}
	c.IsSeries = seriesRegex.MatchString(title) || seriesTVRegex.MatchString(title)

	if m := seriesTVRegex.FindStringSubmatch(title); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			c.Year = y
		}
		if n, err := strconv.Atoi(m[2]); err == nil {
			c.RoundNumber = n
		}
	}
	if c.Year == 0 {
		if m := yearRegex.FindStringSubmatch(title); m != nil {
			c.Year, _ = strconv.Atoi(m[1])
		}
	}
	if c.RoundNumber == 0 {
		if m := roundRegex.FindStringSubmatch(title); m != nil {
			c.RoundNumber, _ = strconv.Atoi(m[1])
		}
	}

	for _, s := range sessionKeywords {
		if s.pattern.MatchString(title) {
			c.Session = s.canonical
			break
		}
	}

	if m := resolutionRx.FindStringSubmatch(title); m != nil {
		c.Resolution = strings.ToLower(m[1])
	}
	c.HDR = hdrRegex.MatchString(title)
	if m := codecRegex.FindStringSubmatch(title); m != nil {
		c.Codec = normalizeCodec(m[1])
	}
	if m := groupRegex.FindStringSubmatch(title); m != nil {
		c.ReleaseGroup = m[1]
	}
	c.IsSeasonPack = strings.Contains(strings.ToLower(title), "season") && !seriesTVRegex.MatchString(title)

	c.CanonicalKey = canonicalKey(c.Year, c.RoundNumber, c.Session)
	return c
}

// canonicalKey is the coarse (year, round, session) bucket key used to
// select "candidates for the session we're searching", distinct from
// RichCanonicalKey's finer dedup key.
func canonicalKey(year, round int, session string) string {
	return strconv.Itoa(year) + "|" + strconv.Itoa(round) + "|" + strings.ToLower(session)
}

func normalizeCodec(raw string) string {
	switch strings.ToLower(strings.ReplaceAll(raw, ".", "")) {
	case "x265", "h265", "hevc":
		return "hevc"
	case "x264", "h264":
		return "avc"
	case "av1":
		return "av1"
	default:
		return strings.ToLower(raw)
	}
}

// Candidate pairs one indexer search result with its classification and the
// indexer it came from, ready for scoring.
type Candidate struct {
	Item           newznab.Item
	IndexerID      uint64
	IndexerName    string
	Classification Classification
}

// RichCanonicalKey derives SPEC_FULL.md §4.4's dedup key: year, round,
// session, the round's matched venue token, resolution, codec, release
// group, and a coarse size bucket. Distinct-quality releases (different
// resolution, codec, or group) stay distinct; the same release surfaced by
// more than one query variant or indexer collapses to a single key.
func RichCanonicalKey(cl Classification, title string, venueTokens []string, size int64) string {
	return strings.Join([]string{
		strconv.Itoa(cl.Year),
		strconv.Itoa(cl.RoundNumber),
		strings.ToLower(cl.Session),
		venueCanonicalToken(title, venueTokens),
		cl.Resolution,
		cl.Codec,
		strings.ToLower(cl.ReleaseGroup),
		sizeBucket(size),
	}, "|")
}

// sizeBucket coarsens a release's byte size to the nearest gigabyte so two
// uploads of the same encode, which can differ by a few MB of container or
// metadata overhead, still collapse to the same key.
func sizeBucket(size int64) string {
	if size <= 0 {
		return "unknown"
	}
	const gib = 1 << 30
	return strconv.FormatInt(size/gib, 10)
}

// MergeByCanonicalKey collapses scored candidates sharing a rich canonical
// key — the same release returned by more than one query variant or
// indexer — keeping the highest-scored copy and folding every contributing
// indexer's name into SourceIndexers. Order is preserved by first
// appearance of each key.
func MergeByCanonicalKey(scored []Scored, venueTokens []string) []Scored {
	type entry struct {
		best    Scored
		sources map[string]struct{}
	}

	order := make([]string, 0, len(scored))
	byKey := make(map[string]*entry, len(scored))
	for _, sc := range scored {
		size := candidateSize(sc.Candidate)
		key := RichCanonicalKey(sc.Candidate.Classification, sc.Candidate.Item.Title, venueTokens, size)
		e, ok := byKey[key]
		if !ok {
			e = &entry{best: sc, sources: make(map[string]struct{})}
			byKey[key] = e
			order = append(order, key)
		}
		if sc.Candidate.IndexerName != "" {
			e.sources[sc.Candidate.IndexerName] = struct{}{}
		}
		if sc.Score > e.best.Score {
			e.best = sc
		}
	}

	merged := make([]Scored, 0, len(order))
	for _, key := range order {
		e := byKey[key]
		names := make([]string, 0, len(e.sources))
		for name := range e.sources {
			names = append(names, name)
		}
		sort.Strings(names)
		best := e.best
		best.SourceIndexers = names
		merged = append(merged, best)
	}
	return merged
}
