// Package opml converts the group/feed tree to and from OPML.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/awalters/quill/internal/storage"
)

// Document is the root OPML structure.
type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a group or a feed. An outline carrying a feed URL is a
// feed; anything else is a group for the outlines nested under it.
// The last three attributes are extensions other readers ignore.
type Outline struct {
	Text        string    `xml:"text,attr,omitempty"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLUrl      string    `xml:"xmlUrl,attr,omitempty"`
	URL         string    `xml:"url,attr,omitempty"`
	HTMLUrl     string    `xml:"htmlUrl,attr,omitempty"`
	IsDefault   string    `xml:"isDefault,attr,omitempty"`
	Notify      string    `xml:"notify,attr,omitempty"`
	FullContent string    `xml:"fullContent,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

func (o *Outline) feedURL() string {
	if o.XMLUrl != "" {
		return o.XMLUrl
	}
	return o.URL
}

func (o *Outline) name() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Text
}

// ImportResult reports what an import actually changed. Feeds whose
// URL was already subscribed are counted as skipped, not added.
type ImportResult struct {
	GroupsAdded  int
	FeedsAdded   int
	FeedsSkipped int
}

// Import applies an OPML document to the account. Groups are matched
// by name and created on demand; a group outline flagged isDefault
// folds its feeds into the account's default group instead. Feeds at
// the top level land in the default group. The caller decides whether
// the result warrants a sync pass.
func Import(store *storage.Store, accountID int64, r io.Reader) (*ImportResult, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	if err := store.EnsureDefaultGroup(accountID, "Uncategorized"); err != nil {
		return nil, err
	}
	groups, err := store.GetGroups(accountID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(groups))
	for _, g := range groups {
		byName[g.Name] = g.ID
	}

	imp := &importer{
		store:     store,
		accountID: accountID,
		byName:    byName,
		result:    &ImportResult{},
	}
	if err := imp.walk(doc.Body.Outlines, storage.DefaultGroupID); err != nil {
		return nil, err
	}
	return imp.result, nil
}

type importer struct {
	store     *storage.Store
	accountID int64
	byName    map[string]string
	result    *ImportResult
}

func (imp *importer) walk(outlines []Outline, groupID string) error {
	for i := range outlines {
		o := &outlines[i]
		if url := o.feedURL(); url != "" {
			if err := imp.addFeed(o, url, groupID); err != nil {
				return err
			}
			continue
		}
		if len(o.Outlines) == 0 {
			continue
		}
		childGroup, err := imp.ensureGroup(o)
		if err != nil {
			return err
		}
		if err := imp.walk(o.Outlines, childGroup); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) ensureGroup(o *Outline) (string, error) {
	if o.IsDefault == "true" {
		return storage.DefaultGroupID, nil
	}
	name := o.name()
	if name == "" {
		return storage.DefaultGroupID, nil
	}
	if id, ok := imp.byName[name]; ok {
		return id, nil
	}
	id := uuid.NewString()
	if err := imp.store.UpsertGroup(&storage.Group{
		ID:        id,
		AccountID: imp.accountID,
		Name:      name,
	}); err != nil {
		return "", err
	}
	imp.byName[name] = id
	imp.result.GroupsAdded++
	return id, nil
}

func (imp *importer) addFeed(o *Outline, url, groupID string) error {
	exists, err := imp.store.FeedExistsByURL(imp.accountID, url)
	if err != nil {
		return err
	}
	if exists {
		imp.result.FeedsSkipped++
		return nil
	}
	feed := &storage.Feed{
		ID:          uuid.NewString(),
		AccountID:   imp.accountID,
		GroupID:     groupID,
		Name:        o.name(),
		URL:         url,
		FullContent: o.FullContent == "true",
		Notify:      o.Notify == "true",
	}
	if feed.Name == "" {
		feed.Name = url
	}
	if err := imp.store.UpsertFeed(feed); err != nil {
		return err
	}
	imp.result.FeedsAdded++
	return nil
}

// Export writes the account's group/feed tree as OPML. With withInfo
// set, the extension attributes ride along so a re-import restores
// per-feed options and the default-group marker.
func Export(store *storage.Store, accountID int64, w io.Writer, withInfo bool) error {
	groups, err := store.GetGroups(accountID)
	if err != nil {
		return err
	}
	feeds, err := store.GetFeeds(accountID)
	if err != nil {
		return err
	}
	byGroup := make(map[string][]storage.Feed)
	for _, f := range feeds {
		byGroup[f.GroupID] = append(byGroup[f.GroupID], f)
	}

	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       "quill subscriptions",
			DateCreated: time.Now().Format(time.RFC1123),
		},
	}
	for _, g := range groups {
		outline := Outline{Text: g.Name, Title: g.Name}
		if withInfo && g.IsDefault {
			outline.IsDefault = "true"
		}
		for i := range byGroup[g.ID] {
			outline.Outlines = append(outline.Outlines, feedOutline(&byGroup[g.ID][i], withInfo))
		}
		// Empty user groups survive the round trip too.
		doc.Body.Outlines = append(doc.Body.Outlines, outline)
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write OPML header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	_, err = w.Write([]byte("\n"))
	return err
}

func feedOutline(f *storage.Feed, withInfo bool) Outline {
	o := Outline{
		Type:   "rss",
		Text:   f.Name,
		Title:  f.Name,
		XMLUrl: f.URL,
	}
	if withInfo {
		o.Notify = strconv.FormatBool(f.Notify)
		o.FullContent = strconv.FormatBool(f.FullContent)
	}
	return o
}
