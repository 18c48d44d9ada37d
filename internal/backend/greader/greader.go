// Package greader implements the backend adapter for Google-Reader-API
// compatible services (FreshRSS, The Old Reader, and friends).
package greader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/awalters/quill/internal/backend"
)

const (
	tagRead    = "user/-/state/com.google/read"
	tagStarred = "user/-/state/com.google/starred"

	defaultPageSize = 100
)

// Client talks to one Greader-compatible service. It is stateless:
// every call receives the session explicitly.
type Client struct {
	http *http.Client
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient}
}

// --- wire DTOs ---

type subscriptionList struct {
	Subscriptions []subscription `json:"subscriptions"`
}

type subscription struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	HTMLURL    string     `json:"htmlUrl"`
	IconURL    string     `json:"iconUrl"`
	Categories []category `json:"categories"`
}

type category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type streamContents struct {
	Items        []streamItem `json:"items"`
	Continuation string       `json:"continuation"`
}

type streamItem struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Published  int64        `json:"published"`
	Author     string       `json:"author"`
	Summary    itemContent  `json:"summary"`
	Content    itemContent  `json:"content"`
	Canonical  []itemLink   `json:"canonical"`
	Alternate  []itemLink   `json:"alternate"`
	Origin     itemOrigin   `json:"origin"`
	Categories []string     `json:"categories"`
}

type itemContent struct {
	Content string `json:"content"`
}

type itemLink struct {
	Href string `json:"href"`
}

type itemOrigin struct {
	StreamID string `json:"streamId"`
}

type itemIDList struct {
	ItemRefs []itemRef `json:"itemRefs"`
}

type itemRef struct {
	ID string `json:"id"`
}

// --- adapter surface ---

// Authenticate performs the ClientLogin form post and scans the
// response body for the Auth= marker.
func (c *Client) Authenticate(ctx context.Context, creds backend.Credentials) (*backend.AuthResult, error) {
	endpoint := backend.NormalizeEndpoint(creds.Endpoint)
	if endpoint == "" || creds.Username == "" || creds.Password == "" {
		return nil, &backend.ConfigError{Reason: "endpoint and credentials are required"}
	}

	form := url.Values{}
	form.Set("Email", creds.Username)
	form.Set("Passwd", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint+"/accounts/ClientLogin", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("client login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &backend.AuthError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	for _, line := range strings.Split(string(body), "\n") {
		if token, ok := strings.CutPrefix(strings.TrimSpace(line), "Auth="); ok && token != "" {
			return &backend.AuthResult{Token: token, Endpoint: endpoint}, nil
		}
	}
	return nil, &backend.AuthError{Endpoint: endpoint, Reason: "response missing Auth token"}
}

func (c *Client) ListSubscriptions(ctx context.Context, s backend.Session) (*backend.Listing, error) {
	var list subscriptionList
	if err := c.apiGet(ctx, s, "subscription/list", url.Values{"output": {"json"}}, &list); err != nil {
		return nil, fmt.Errorf("subscription list: %w", err)
	}

	listing := &backend.Listing{}
	seen := map[string]bool{}
	for _, sub := range list.Subscriptions {
		out := backend.Subscription{
			ID:      sub.ID,
			Title:   sub.Title,
			URL:     sub.URL,
			IconURL: sub.IconURL,
		}
		if len(sub.Categories) > 0 {
			cat := sub.Categories[0]
			out.CategoryID = cat.ID
			if !seen[cat.ID] {
				seen[cat.ID] = true
				name := cat.Label
				if name == "" {
					name = labelFromCategoryID(cat.ID)
				}
				listing.Categories = append(listing.Categories, backend.Category{ID: cat.ID, Name: name})
			}
		}
		listing.Subscriptions = append(listing.Subscriptions, out)
	}
	return listing, nil
}

func (c *Client) ListItems(ctx context.Context, s backend.Session, opts backend.ListOptions) (*backend.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	params := url.Values{
		"output": {"json"},
		"n":      {strconv.Itoa(limit)},
	}
	if opts.Continuation != "" {
		params.Set("c", opts.Continuation)
	}
	if opts.ExcludeRead {
		params.Set("xt", tagRead)
	}
	if !opts.Since.IsZero() {
		params.Set("ot", strconv.FormatInt(opts.Since.Unix(), 10))
	}

	stream := string(opts.Stream)
	if stream == "" {
		stream = string(backend.StreamReadingList)
	}

	var contents streamContents
	path := "stream/contents/" + url.PathEscape(stream)
	if err := c.apiGet(ctx, s, path, params, &contents); err != nil {
		return nil, fmt.Errorf("stream contents: %w", err)
	}

	page := &backend.Page{Continuation: contents.Continuation}
	for _, raw := range contents.Items {
		page.Items = append(page.Items, itemFromStream(raw))
	}
	return page, nil
}

func (c *Client) ListUnreadIDs(ctx context.Context, s backend.Session) ([]string, error) {
	return c.listItemIDs(ctx, s, url.Values{
		"output": {"json"},
		"s":      {string(backend.StreamReadingList)},
		"xt":     {tagRead},
		"n":      {"10000"},
	})
}

func (c *Client) ListStarredIDs(ctx context.Context, s backend.Session) ([]string, error) {
	return c.listItemIDs(ctx, s, url.Values{
		"output": {"json"},
		"s":      {string(backend.StreamStarred)},
		"n":      {"10000"},
	})
}

func (c *Client) MarkRead(ctx context.Context, s backend.Session, ids []string, read bool) error {
	if read {
		return c.editTag(ctx, s, ids, tagRead, "")
	}
	return c.editTag(ctx, s, ids, "", tagRead)
}

func (c *Client) Star(ctx context.Context, s backend.Session, ids []string, starred bool) error {
	if starred {
		return c.editTag(ctx, s, ids, tagStarred, "")
	}
	return c.editTag(ctx, s, ids, "", tagStarred)
}

// --- internals ---

func (c *Client) apiGet(ctx context.Context, s backend.Session, path string, params url.Values, out any) error {
	u := s.Endpoint + "/reader/api/0/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+s.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) listItemIDs(ctx context.Context, s backend.Session, params url.Values) ([]string, error) {
	var list itemIDList
	if err := c.apiGet(ctx, s, "stream/items/ids", params, &list); err != nil {
		return nil, fmt.Errorf("stream item ids: %w", err)
	}
	ids := make([]string, 0, len(list.ItemRefs))
	for _, ref := range list.ItemRefs {
		ids = append(ids, longItemID(ref.ID))
	}
	return ids, nil
}

const itemIDPrefix = "tag:google.com,2005:reader/item/"

// longItemID maps a short decimal item ref to the long tag form used
// by stream contents, so id lists compare against stored article ids.
// FreshRSS and Miniflux serve the two endpoints in different forms.
func longItemID(id string) string {
	if strings.HasPrefix(id, itemIDPrefix) {
		return id
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return fmt.Sprintf("%s%016x", itemIDPrefix, uint64(n))
	}
	return id
}

func (c *Client) editTag(ctx context.Context, s backend.Session, ids []string, add, remove string) error {
	if len(ids) == 0 {
		return nil
	}

	form := url.Values{}
	for _, id := range ids {
		form.Add("i", id)
	}
	if add != "" {
		form.Set("a", add)
	}
	if remove != "" {
		form.Set("r", remove)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.Endpoint+"/reader/api/0/edit-tag", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "GoogleLogin auth="+s.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("edit-tag returned status %d", resp.StatusCode)
	}
	return nil
}

func itemFromStream(raw streamItem) backend.Item {
	item := backend.Item{
		ID:     raw.ID,
		FeedID: raw.Origin.StreamID,
		Title:  raw.Title,
		Author: raw.Author,
		Unread: true,
	}
	if raw.Published > 0 {
		item.Published = time.Unix(raw.Published, 0).UTC()
	}

	if len(raw.Canonical) > 0 {
		item.Link = raw.Canonical[0].Href
	} else if len(raw.Alternate) > 0 {
		item.Link = raw.Alternate[0].Href
	}

	item.Summary = raw.Summary.Content
	if item.Summary == "" {
		item.Summary = raw.Content.Content
	}
	item.Image = backend.FirstImage(item.Summary)

	for _, cat := range raw.Categories {
		switch {
		case strings.HasSuffix(cat, "/state/com.google/read"):
			item.Unread = false
		case strings.HasSuffix(cat, "/state/com.google/starred"):
			item.Starred = true
		}
	}
	return item
}

func labelFromCategoryID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
