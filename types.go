package quill

import "time"

// Config configures the sync engine.
type Config struct {
	DBPath      string
	HTTPTimeout time.Duration // zero means 30s
	Concurrency int           // per-sync feed fetch ceiling; zero means 8
	Device      DeviceState   // nil disables wifi/charging policy gates
}

// DeviceState reports runtime conditions for accounts with a
// wifi-only or charging-only sync policy.
type DeviceState interface {
	OnWifi() bool
	Charging() bool
}

// Account types accepted by AddAccount.
const (
	AccountLocal    = "local"
	AccountGReader  = "greader"
	AccountMiniflux = "miniflux"
)

// AccountOptions describes a new account. Endpoint, Username and
// Password are required for the cloud types and ignored for local.
type AccountOptions struct {
	Type         string `json:"type"`
	Endpoint     string `json:"endpoint,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"-"`
	SyncInterval int    `json:"sync_interval,omitempty"` // minutes
	WifiOnly     bool   `json:"wifi_only,omitempty"`
	ChargingOnly bool   `json:"charging_only,omitempty"`
	MaxPastDays  int    `json:"max_past_days,omitempty"`
	FullContent  bool   `json:"full_content,omitempty"`
}

// Account is a configured sync source.
type Account struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Endpoint     string     `json:"endpoint,omitempty"`
	Username     string     `json:"username,omitempty"`
	SyncInterval int        `json:"sync_interval"`
	WifiOnly     bool       `json:"wifi_only"`
	ChargingOnly bool       `json:"charging_only"`
	MaxPastDays  int        `json:"max_past_days"`
	FullContent  bool       `json:"full_content"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Group is a folder of feeds within an account.
type Group struct {
	ID        string `json:"id"`
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
	RTL       bool   `json:"rtl,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Feed is one subscription within an account.
type Feed struct {
	ID          string `json:"id"`
	AccountID   int64  `json:"account_id"`
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Icon        string `json:"icon,omitempty"`
	FullContent bool   `json:"full_content"`
	Notify      bool   `json:"notify"`
}

// Article is one stored item.
type Article struct {
	ID          string    `json:"id"`
	AccountID   int64     `json:"account_id"`
	FeedID      string    `json:"feed_id"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Link        string    `json:"link"`
	IsUnread    bool      `json:"is_unread"`
	IsStarred   bool      `json:"is_starred"`
	FullContent string    `json:"full_content,omitempty"`
}

// ArticleFilter narrows Articles listings. Nil pointer fields mean
// "don't care".
type ArticleFilter struct {
	FeedID  string
	GroupID string
	Unread  *bool
	Starred *bool
	Limit   int
	Offset  int
}

// SyncResult summarizes one sync pass for one account.
type SyncResult struct {
	AccountID   int64  `json:"account_id"`
	Skipped     bool   `json:"skipped,omitempty"`
	SkipReason  string `json:"skip_reason,omitempty"`
	FeedsTotal  int    `json:"feeds_total"`
	FeedsFailed int    `json:"feeds_failed"`
	NewArticles int    `json:"new_articles"`
}

// OPMLImportResult summarizes what an OPML import changed.
type OPMLImportResult struct {
	GroupsAdded  int `json:"groups_added"`
	FeedsAdded   int `json:"feeds_added"`
	FeedsSkipped int `json:"feeds_skipped"`
}

// Event is a notification from the engine's event stream.
type Event struct {
	Name      string `json:"name"`
	AccountID int64  `json:"account_id"`
	Data      any    `json:"data,omitempty"`
}

// Event names delivered on the Events stream.
const (
	EventSyncStarted      = "sync.started"
	EventSyncFinished     = "sync.finished"
	EventArticlesInserted = "articles.inserted"
	EventContentExtracted = "content.extracted"
)
