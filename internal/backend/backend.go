// Package backend defines the capability interface shared by the cloud
// feed services, plus the typed DTOs their adapters produce. Adapters
// validate responses at this boundary so nothing downstream inspects
// raw JSON.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Credentials identifies a backend connection before authentication.
type Credentials struct {
	Endpoint string
	Username string
	Password string
}

// AuthResult carries the acquired token and the endpoint as corrected
// during authentication (scheme added, trailing slash dropped).
type AuthResult struct {
	Token    string
	Endpoint string
}

// Session is an authenticated connection. Username and Password ride
// along for adapters whose native fallback endpoints use Basic auth.
type Session struct {
	Endpoint string
	Token    string
	Username string
	Password string
}

// Stream selects a paginated collection of items.
type Stream string

const (
	StreamReadingList Stream = "user/-/state/com.google/reading-list"
	StreamStarred     Stream = "user/-/state/com.google/starred"
)

// StreamFeed selects a single feed's stream by its backend-native id.
func StreamFeed(feedID string) Stream {
	return Stream(feedID)
}

// Category is a server-side grouping of subscriptions.
type Category struct {
	ID   string
	Name string
}

// Subscription is one feed as the server reports it.
type Subscription struct {
	ID         string
	Title      string
	URL        string
	IconURL    string
	CategoryID string
}

// Listing is the result of a subscription list call.
type Listing struct {
	Subscriptions []Subscription
	Categories    []Category
}

// Item is one article as the server reports it, including the
// authoritative read/star state at the time of the call.
type Item struct {
	ID        string
	FeedID    string
	Title     string
	Author    string
	Link      string
	Summary   string
	Image     string
	Published time.Time
	Unread    bool
	Starred   bool
}

// Page is one page of a paginated stream listing. An empty
// Continuation means the stream is exhausted.
type Page struct {
	Items        []Item
	Continuation string
}

// ListOptions narrows a stream listing.
type ListOptions struct {
	Stream       Stream
	Continuation string
	ExcludeRead  bool
	Since        time.Time // zero means no date floor
	Limit        int       // items per page; adapters apply a default when 0
}

// Adapter is the capability surface every cloud backend provides.
// Mutations are best-effort: callers catch failures and keep local
// state regardless.
type Adapter interface {
	Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error)
	ListSubscriptions(ctx context.Context, s Session) (*Listing, error)
	ListItems(ctx context.Context, s Session, opts ListOptions) (*Page, error)
	ListUnreadIDs(ctx context.Context, s Session) ([]string, error)
	ListStarredIDs(ctx context.Context, s Session) ([]string, error)
	MarkRead(ctx context.Context, s Session, ids []string, read bool) error
	Star(ctx context.Context, s Session, ids []string, starred bool) error
}

// AuthError reports a failed authentication attempt: a non-2xx status
// or a response body missing the token marker.
type AuthError struct {
	Endpoint string
	Status   int
	Reason   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication against %s failed: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("authentication against %s failed: %s", e.Endpoint, e.Reason)
}

// ConfigError reports an account that cannot attempt a network call at
// all, such as missing credentials.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "backend misconfigured: " + e.Reason
}

// NormalizeEndpoint corrects a user-entered endpoint: adds an https
// scheme when missing and drops trailing slashes.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return endpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// FirstImage pulls the first usable <img> source out of an HTML
// snippet, for the article thumbnail.
func FirstImage(snippet string) string {
	if !strings.Contains(snippet, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	if strings.HasPrefix(src, "data:") {
		return ""
	}
	return src
}
