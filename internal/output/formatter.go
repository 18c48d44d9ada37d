// Package output renders CLI results in json, text or human format.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	quill "github.com/awalters/quill"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputSyncResults outputs per-account sync outcomes
func (f *Formatter) OutputSyncResults(results []quill.SyncResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(results)
	case FormatText:
		for _, r := range results {
			if r.Skipped {
				fmt.Fprintf(f.out, "account=%d\tskipped=%s\n", r.AccountID, r.SkipReason)
				continue
			}
			fmt.Fprintf(f.out, "account=%d\tfeeds=%d\tfailed=%d\tnew=%d\n",
				r.AccountID, r.FeedsTotal, r.FeedsFailed, r.NewArticles)
		}
		return nil
	case FormatHuman:
		for _, r := range results {
			if r.Skipped {
				fmt.Fprintf(f.out, "Account %d skipped: %s\n", r.AccountID, r.SkipReason)
				continue
			}
			fmt.Fprintf(f.out, "Account %d: %d new articles from %d feeds",
				r.AccountID, r.NewArticles, r.FeedsTotal)
			if r.FeedsFailed > 0 {
				fmt.Fprintf(f.out, " (%d feeds failed)", r.FeedsFailed)
			}
			fmt.Fprintln(f.out)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputAccountList outputs configured accounts
func (f *Formatter) OutputAccountList(accounts []quill.Account) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(accounts)
	case FormatText:
		for _, a := range accounts {
			fmt.Fprintf(f.out, "id=%d\ttype=%s\tendpoint=%s\tlast_sync=%s\n",
				a.ID, a.Type, a.Endpoint, formatTime(a.LastSync))
		}
		return nil
	case FormatHuman:
		if len(accounts) == 0 {
			fmt.Fprintln(f.out, "No accounts configured")
			return nil
		}
		for _, a := range accounts {
			fmt.Fprintf(f.out, "ID: %d\n", a.ID)
			fmt.Fprintf(f.out, "Type: %s\n", a.Type)
			if a.Endpoint != "" {
				fmt.Fprintf(f.out, "Endpoint: %s\n", a.Endpoint)
			}
			if a.LastSync != nil {
				fmt.Fprintf(f.out, "Last sync: %s\n", a.LastSync.Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputArticleList outputs a list of articles
func (f *Formatter) OutputArticleList(articles []quill.Article) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(articles)
	case FormatText:
		for _, a := range articles {
			fmt.Fprintf(f.out, "id=%s\tunread=%t\tstarred=%t\ttitle=%s\tlink=%s\n",
				a.ID, a.IsUnread, a.IsStarred, a.Title, a.Link)
		}
		return nil
	case FormatHuman:
		if len(articles) == 0 {
			fmt.Fprintln(f.out, "No articles")
			return nil
		}
		fmt.Fprintf(f.out, "Articles (%d):\n\n", len(articles))
		for _, a := range articles {
			marker := " "
			if a.IsUnread {
				marker = "*"
			}
			star := ""
			if a.IsStarred {
				star = " ★"
			}
			fmt.Fprintf(f.out, "%s %s%s\n", marker, a.Title, star)
			fmt.Fprintf(f.out, "  id: %s\n", a.ID)
			fmt.Fprintf(f.out, "  %s\n", a.Link)
			fmt.Fprintf(f.out, "  %s\n", a.Date.Format("2006-01-02 15:04"))
			if a.Description != "" {
				fmt.Fprintf(f.out, "  %s\n", truncate(a.Description, 200))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputFeedList outputs an account's subscriptions
func (f *Formatter) OutputFeedList(feeds []quill.Feed) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(feeds)
	case FormatText:
		for _, fd := range feeds {
			fmt.Fprintf(f.out, "id=%s\tgroup=%s\tname=%s\turl=%s\n",
				fd.ID, fd.GroupID, fd.Name, fd.URL)
		}
		return nil
	case FormatHuman:
		if len(feeds) == 0 {
			fmt.Fprintln(f.out, "No feeds")
			return nil
		}
		for _, fd := range feeds {
			fmt.Fprintf(f.out, "%s\n  %s\n", fd.Name, fd.URL)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputImportResult outputs what an OPML import changed
func (f *Formatter) OutputImportResult(result *quill.OPMLImportResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "groups_added=%d\tfeeds_added=%d\tfeeds_skipped=%d\n",
			result.GroupsAdded, result.FeedsAdded, result.FeedsSkipped)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Imported %d feeds in %d new groups", result.FeedsAdded, result.GroupsAdded)
		if result.FeedsSkipped > 0 {
			fmt.Fprintf(f.out, " (%d already subscribed)", result.FeedsSkipped)
		}
		fmt.Fprintln(f.out)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...any) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...any) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// formatTime formats a time pointer for output
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
