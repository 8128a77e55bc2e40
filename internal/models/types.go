package models

// EventType is the canonical F1 session tag used throughout the entity graph
// and the classifier (internal/search).
type EventType string

const (
	EventFP1              EventType = "FP1"
	EventFP2              EventType = "FP2"
	EventFP3              EventType = "FP3"
	EventQualifying       EventType = "Qualifying"
	EventSprint           EventType = "Sprint"
	EventSprintQualifying EventType = "SprintQualifying"
	EventRace             EventType = "Race"
	EventOther            EventType = "Other"
)

// IndexerKind identifies the protocol family an Indexer speaks.
type IndexerKind string

const (
	IndexerNewznab IndexerKind = "newznab"
	IndexerHydra   IndexerKind = "hydra"
	IndexerCustom  IndexerKind = "custom"
)

// DownloaderKind identifies the protocol family a Downloader speaks.
type DownloaderKind string

const (
	DownloaderSAB   DownloaderKind = "sab"
	DownloaderNZBG  DownloaderKind = "nzbget"
)

// ScheduledSearchStatus is the per-entry state machine tag driven by the scheduler.
type ScheduledSearchStatus string

const (
	StatusScheduled       ScheduledSearchStatus = "scheduled"
	StatusRunning         ScheduledSearchStatus = "running"
	StatusWaitingDownload ScheduledSearchStatus = "waiting_download"
	StatusCompleted       ScheduledSearchStatus = "completed"
	StatusFailed          ScheduledSearchStatus = "failed"
	StatusPaused          ScheduledSearchStatus = "paused"
)

// DownloadHistoryStatus tracks one acquisition attempt through to completion.
type DownloadHistoryStatus string

const (
	HistorySent        DownloadHistoryStatus = "sent"
	HistoryDownloading DownloadHistoryStatus = "downloading"
	HistoryCompleted   DownloadHistoryStatus = "completed"
	HistoryFailed      DownloadHistoryStatus = "failed"
)

// NotificationKind distinguishes Apprise-style URL targets from raw webhooks.
type NotificationKind string

const (
	NotifyApprise NotificationKind = "apprise"
	NotifyWebhook NotificationKind = "webhook"
)

// NotificationEvent is the lifecycle class a notification target can subscribe to.
type NotificationEvent string

const (
	EventDownloadStart    NotificationEvent = "DownloadStart"
	EventDownloadComplete NotificationEvent = "DownloadComplete"
	EventDownloadFail     NotificationEvent = "DownloadFail"
	EventTest             NotificationEvent = "Test"
)
