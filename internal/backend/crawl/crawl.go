// Package crawl fetches and parses RSS/Atom feeds directly over HTTP,
// for accounts that sync without a cloud service.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"github.com/awalters/quill/internal/backend"
)

const userAgent = "quill/1.0"

// ErrorFeedTitle is the placeholder title of the fallback feed produced
// when a response body cannot be parsed as RSS or Atom.
const ErrorFeedTitle = "Error parsing feed"

// ParseError reports a feed whose body downloaded fine but could not be
// parsed. The sync engine counts it as a feed failure.
type ParseError struct {
	URL string
}

func (e *ParseError) Error() string {
	return "unparsable feed: " + e.URL
}

// ParsedFeed is the crawl-side equivalent of a stream listing: feed
// metadata plus its current items. Items have no native ids; the sync
// engine assigns them at insert time.
type ParsedFeed struct {
	Title string
	Link  string
	Items []backend.Item
}

type Fetcher struct {
	http   *http.Client
	parser *gofeed.Parser
}

func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Fetcher{http: httpClient, parser: parser}
}

// Fetch downloads and parses one feed. Network and HTTP-status
// failures are returned as errors for the scheduler to count; a body
// that fails to parse yields the placeholder feed instead, so one
// malformed feed cannot abort a batch.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	// Decode to UTF-8 up front: the Content-Type charset wins, an XML
	// or meta declaration in the body overrides a missing one, and
	// undeclared input falls back to UTF-8/Latin-1 sniffing.
	body := io.Reader(resp.Body)
	transcoded := false
	if decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type")); err == nil {
		body, transcoded = decoded, true
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", feedURL, err)
	}
	if transcoded {
		// The declared charset no longer matches the transcoded bytes;
		// left in place, gofeed's own charset layer would decode them
		// a second time and mangle non-ASCII text.
		data = dropEncodingDecl(data)
	}

	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return &ParsedFeed{Title: ErrorFeedTitle}, nil
	}

	out := &ParsedFeed{Title: parsed.Title, Link: parsed.Link}
	for _, item := range parsed.Items {
		out.Items = append(out.Items, itemFromFeed(item))
	}
	return out, nil
}

var xmlEncodingAttr = regexp.MustCompile(`\s+encoding=["'][^"']*["']`)

// dropEncodingDecl strips the encoding attribute from the XML
// declaration of a body already transcoded to UTF-8.
func dropEncodingDecl(body []byte) []byte {
	head := body
	if len(head) > 256 {
		head = head[:256]
	}
	start := bytes.Index(head, []byte("<?xml"))
	if start < 0 {
		return body
	}
	end := bytes.Index(body[start:], []byte("?>"))
	if end < 0 {
		return body
	}
	decl := xmlEncodingAttr.ReplaceAll(body[start:start+end+2], nil)

	out := make([]byte, 0, len(body))
	out = append(out, body[:start]...)
	out = append(out, decl...)
	out = append(out, body[start+end+2:]...)
	return out
}

func itemFromFeed(item *gofeed.Item) backend.Item {
	out := backend.Item{
		Title:   item.Title,
		Link:    item.Link,
		Summary: item.Description,
		Unread:  true,
	}
	if out.Summary == "" {
		out.Summary = item.Content
	}
	if item.Author != nil {
		out.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		out.Author = item.Authors[0].Name
	}
	if item.PublishedParsed != nil {
		out.Published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		out.Published = item.UpdatedParsed.UTC()
	}
	if item.Image != nil && item.Image.URL != "" {
		out.Image = item.Image.URL
	} else {
		out.Image = backend.FirstImage(out.Summary)
	}
	return out
}
