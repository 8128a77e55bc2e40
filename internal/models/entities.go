package models

import "time"

// Season is a single F1 championship year. Hard-delete cascades to its rounds,
// events, scheduled searches and cached searches (see Database.DeleteSeason).
type Season struct {
	ID            uint64 `boltholdKey:"ID"`
	Year          int    `boltholdIndex:"Year"`
	LastRefreshed *time.Time
	IsHidden      bool `boltholdIndex:"IsHidden"`
}

// Round is one Grand Prix weekend within a Season.
type Round struct {
	ID           uint64 `boltholdKey:"ID"`
	SeasonID     uint64 `boltholdIndex:"SeasonID"`
	RoundNumber  int
	Name         string
	Circuit      string
	Country      string
	CircuitTZ    string // IANA zone name, empty when unknown
}

// Event is one on-track session (FP1/FP2/FP3/Qualifying/Sprint/SprintQualifying/Race)
// belonging to a Round. Unique on (RoundID, Type).
type Event struct {
	ID            uint64 `boltholdKey:"ID"`
	RoundID       uint64 `boltholdIndex:"RoundID"`
	Type          EventType
	StartTimeUTC  *time.Time
	EndTimeUTC    *time.Time
}

// Indexer is one configured Newznab-compatible search endpoint.
type Indexer struct {
	ID          uint64 `boltholdKey:"ID"`
	Name        string
	Kind        IndexerKind
	BaseURL     string
	APIKey      string // secret; never logged in the clear, see internal/logging
	CategoryIDs []string
	Priority    int
	Enabled     bool `boltholdIndex:"Enabled"`
	LastError   string
}

// Downloader is one configured SAB-style or NZBGet-style download client.
type Downloader struct {
	ID        uint64 `boltholdKey:"ID"`
	Name      string
	Kind      DownloaderKind
	BaseURL   string
	APIKey    string // secret
	Category  string
	Priority  int
	Enabled   bool `boltholdIndex:"Enabled"`
	LastError string
}

// QualityOverrides lets a single watch entry diverge from the global Settings
// for scoring thresholds. Zero values mean "inherit from Settings".
type QualityOverrides struct {
	MinResolution         int
	MaxResolution         int
	AllowHDR              *bool
	AutoDownloadThreshold int
}

// ScheduledSearch is an operator-created "watch" on one Round+EventType. It is
// the row the scheduler (internal/scheduler) ticks over. Unique on
// (RoundID, EventType).
type ScheduledSearch struct {
	ID               uint64 `boltholdKey:"ID"`
	RoundID          uint64 `boltholdIndex:"RoundID"`
	EventType        EventType
	Status           ScheduledSearchStatus `boltholdIndex:"Status"`
	DownloaderID     *uint64
	QualityOverrides *QualityOverrides
	AddedAt          time.Time
	LastSearchedAt   *time.Time
	NextRunAt        *time.Time `boltholdIndex:"NextRunAt"`
	LastError        string
	Attempts         int
	ChosenNZB        string // nzb_url of the accepted candidate, empty until sent
	DispatchToken    string // random id written at the start of each run; not compared on later writes
}

// DownloadHistory is one append-only row per acquisition attempt.
type DownloadHistory struct {
	ID           uint64 `boltholdKey:"ID"`
	EventID      uint64 `boltholdIndex:"EventID"`
	IndexerID    uint64
	DownloaderID uint64
	NZBTitle     string
	NZBURL       string
	Score        int
	Status       DownloadHistoryStatus `boltholdIndex:"Status"`
	LastPolledAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NotificationTarget is one Apprise-style URL or raw webhook endpoint that
// receives lifecycle notifications (internal/notify).
type NotificationTarget struct {
	ID             uint64 `boltholdKey:"ID"`
	Kind           NotificationKind
	URL            string // secret-bearing
	Name           string
	EventMask      []NotificationEvent
	WebhookSecret  string
}

// CachedRoundSearch is the round-level result cache (internal/search). Unique
// on (RoundID, AllowlistFingerprint).
type CachedRoundSearch struct {
	ID                   uint64 `boltholdKey:"ID"`
	RoundID              uint64 `boltholdIndex:"RoundID"`
	AllowlistFingerprint string `boltholdIndex:"AllowlistFingerprint"`
	CreatedAt            time.Time
	TTLHours             int
	ResultsJSON          string
}

// Settings is the single persisted configuration row. Read on boot and on
// every mutation (internal/settings); quality/score fields are read per
// search, never cached.
type Settings struct {
	ID                    uint64 `boltholdKey:"ID"`
	MinResolution         int
	MaxResolution         int
	AllowHDR              bool
	PreferredCodecs       []string
	PreferredGroups       []string
	AutoDownloadThreshold int
	DefaultDownloaderID   *uint64
	EventAllowlist        []EventType
	LogLevel              string
	SchedulerTickSeconds  int
	MaxagePreDays         int
	MaxagePostDays        int
	AggressiveWindowH     int
	DecayIntervalH        int
	StopAfterDays         int
	JitterSeconds         int
	PerIndexerConcurrency int
	GlobalConcurrency     int
}

// DefaultSettings mirrors the defaults named in SPEC_FULL.md §3.
func DefaultSettings() *Settings {
	return &Settings{
		ID:                    1,
		MinResolution:         0,
		MaxResolution:         0,
		AllowHDR:              true,
		AutoDownloadThreshold: 70,
		EventAllowlist:        nil,
		LogLevel:              "info",
		SchedulerTickSeconds:  600,
		MaxagePreDays:         14,
		MaxagePostDays:        7,
		AggressiveWindowH:     24,
		DecayIntervalH:        6,
		StopAfterDays:         14,
		JitterSeconds:         120,
		PerIndexerConcurrency: 1,
		GlobalConcurrency:     3,
	}
}
