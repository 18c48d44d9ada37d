package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	stdsync "sync"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/awalters/quill/internal/events"
	"github.com/awalters/quill/internal/readability"
	"github.com/awalters/quill/internal/storage"
)

const (
	// BackfillMax caps how many older articles one sync pass will
	// re-fetch for full content.
	BackfillMax = 10

	backfillDelay  = 500 * time.Millisecond
	contentMaxBody = 4 << 20
)

// ContentWorker fetches article pages in the background and stores the
// extracted readable fragment. Per-article failures are logged and
// skipped; the article keeps its feed-provided description.
type ContentWorker struct {
	store *storage.Store
	http  *http.Client
	bus   *events.Bus
	wg    stdsync.WaitGroup
}

func NewContentWorker(store *storage.Store, httpClient *http.Client, bus *events.Bus) *ContentWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ContentWorker{store: store, http: httpClient, bus: bus}
}

// EnqueueNew schedules an immediate extraction for a just-inserted
// article.
func (w *ContentWorker) EnqueueNew(ctx context.Context, a *storage.Article) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.extract(ctx, a.AccountID, a.ID, a.Link, a.Title)
	}()
}

// Backfill picks up to BackfillMax stored articles still missing full
// content and extracts them in the background, pacing requests so a
// sync pass does not hammer one origin. When only some feeds opted in,
// the account-wide flag being off narrows the query to those feeds.
func (w *ContentWorker) Backfill(ctx context.Context, account *storage.Account) {
	articles, err := w.store.ArticlesMissingFullContent(account.ID, account.FullContent, BackfillMax)
	if err != nil {
		log.Printf("quill: account %d: backfill query: %v", account.ID, err)
		return
	}
	if len(articles) == 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for i, a := range articles {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(backfillDelay):
				}
			}
			w.extract(ctx, a.AccountID, a.ID, a.Link, a.Title)
		}
	}()
}

// Wait blocks until every scheduled extraction has finished.
func (w *ContentWorker) Wait() {
	w.wg.Wait()
}

func (w *ContentWorker) extract(ctx context.Context, accountID int64, id, link, title string) {
	if link == "" {
		return
	}
	page, err := w.fetchPage(ctx, link)
	if err != nil {
		log.Printf("quill: account %d: fetch %s: %v", accountID, link, err)
		return
	}
	fragment, err := readability.Extract(page, link)
	if err != nil {
		log.Printf("quill: account %d: extract %s: %v", accountID, link, err)
		return
	}
	fragment = readability.StripLeadingTitle(fragment, title)
	if fragment == "" {
		return
	}
	if err := w.store.SetFullContent(accountID, id, fragment); err != nil {
		log.Printf("quill: account %d: store content for %s: %v", accountID, id, err)
		return
	}
	if w.bus != nil {
		w.bus.Dispatch(events.Event{Name: events.ContentExtracted, AccountID: accountID, Data: id})
	}
}

func (w *ContentWorker) fetchPage(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "quill/1.0")
	resp, err := w.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &httpStatusError{url: link, status: resp.StatusCode}
	}
	reader, err := charset.NewReader(io.LimitReader(resp.Body, contentMaxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.status, e.url)
}
