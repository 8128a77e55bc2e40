package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/racecarr/racecarr/internal/models"
)

// AllowlistFingerprint resolves SPEC_FULL.md §9 Open Question i: the cache
// key's allowlist component is the lowercased, sorted, comma-joined event
// type allowlist, so reordering the same allowlist in Settings never
// invalidates the cache.
func AllowlistFingerprint(allowlist []string) string {
	norm := make([]string, len(allowlist))
	for i, a := range allowlist {
		norm[i] = strings.ToLower(strings.TrimSpace(a))
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}

// RoundCache is the round-level search result cache (C6): a short-TTL
// process-local memo (patrickmn/go-cache) in front of the store-backed
// CachedRoundSearch table, so a burst of requests for the same round within
// the same process never re-issues indexer queries, while a restart still
// finds the last result in the store.
type RoundCache struct {
	db    *models.Database
	local *gocache.Cache
}

// NewRoundCache builds a cache with a 2 minute local memo TTL, swept every
// 5 minutes; the store row carries its own longer TTLHours.
func NewRoundCache(db *models.Database) *RoundCache {
	return &RoundCache{
		db:    db,
		local: gocache.New(2*time.Minute, 5*time.Minute),
	}
}

func localKey(roundID uint64, fingerprint string) string {
	return fmt.Sprintf("%d:%s", roundID, fingerprint)
}

// Get returns the cached result set for (roundID, fingerprint) if present and
// not expired, bypassing both layers when force is true.
func (rc *RoundCache) Get(roundID uint64, fingerprint string, force bool) ([]Scored, bool) {
	if force {
		return nil, false
	}

	key := localKey(roundID, fingerprint)
	if v, ok := rc.local.Get(key); ok {
		return v.([]Scored), true
	}

	row, err := rc.db.GetCachedRoundSearch(roundID, fingerprint)
	if err != nil || row == nil {
		return nil, false
	}
	if time.Since(row.CreatedAt) > time.Duration(row.TTLHours)*time.Hour {
		return nil, false
	}

	var results []Scored
	if err := json.Unmarshal([]byte(row.ResultsJSON), &results); err != nil {
		return nil, false
	}
	rc.local.Set(key, results, gocache.DefaultExpiration)
	return results, true
}

// Put stores a freshly computed result set for (roundID, fingerprint) in both
// layers, with ttlHours governing store-level staleness.
func (rc *RoundCache) Put(roundID uint64, fingerprint string, results []Scored, ttlHours int) error {
	rc.local.Set(localKey(roundID, fingerprint), results, gocache.DefaultExpiration)

	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal cached round search: %w", err)
	}

	return rc.db.PutCachedRoundSearch(&models.CachedRoundSearch{
		RoundID:              roundID,
		AllowlistFingerprint: fingerprint,
		CreatedAt:            time.Now(),
		TTLHours:             ttlHours,
		ResultsJSON:          string(payload),
	})
}

// ContentHash fingerprints a release's identity for idempotent download
// dispatch keying (reused by internal/downloader): sha256 of the downloader
// id and the NZB's enclosure URL.
func ContentHash(downloaderID uint64, nzbURL string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", downloaderID, nzbURL)))
	return hex.EncodeToString(h[:])
}
