package sync

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/awalters/quill/internal/backend/crawl"
	"github.com/awalters/quill/internal/events"
	"github.com/awalters/quill/internal/storage"
)

// DeviceState reports the runtime conditions the sync policy can gate
// on. A nil DeviceState disables policy gating entirely.
type DeviceState interface {
	OnWifi() bool
	Charging() bool
}

// LocalSync crawls the feeds of a local account directly. Unlike the
// cloud engines there is no server to defer to: read and star state
// live only in the store and a crawl never touches them.
type LocalSync struct {
	store   *storage.Store
	fetcher *crawl.Fetcher
	sched   *Scheduler
	worker  *ContentWorker
	bus     *events.Bus
	device  DeviceState
}

func NewLocalSync(store *storage.Store, fetcher *crawl.Fetcher, sched *Scheduler, worker *ContentWorker, bus *events.Bus, device DeviceState) *LocalSync {
	if sched == nil {
		sched = NewScheduler(DefaultConcurrency)
	}
	return &LocalSync{store: store, fetcher: fetcher, sched: sched, worker: worker, bus: bus, device: device}
}

// Sync crawls every feed of the account with bounded concurrency. A
// policy skip returns early without advancing last_sync, so the next
// eligible moment triggers a real pass.
func (l *LocalSync) Sync(ctx context.Context, account *storage.Account) (*Result, error) {
	res := &Result{AccountID: account.ID}
	if reason := l.policySkip(account); reason != "" {
		res.Skipped = true
		res.SkipReason = reason
		return res, nil
	}
	now := time.Now().UTC()

	feeds, err := l.store.GetFeeds(account.ID)
	if err != nil {
		return nil, err
	}
	res.FeedsTotal = len(feeds)

	var inserted atomic.Int64
	counts := l.sched.Run(ctx, len(feeds), func(ctx context.Context, i int) error {
		n, err := l.crawlFeed(ctx, account, &feeds[i])
		inserted.Add(int64(n))
		return err
	})
	res.FeedsFailed = counts.Failed
	res.NewArticles = int(inserted.Load())

	if pruned, err := l.store.PruneArticles(account.ID, pastDaysFloor(account, now)); err != nil {
		log.Printf("quill: account %d: prune: %v", account.ID, err)
	} else if pruned > 0 {
		log.Printf("quill: account %d: pruned %d expired articles", account.ID, pruned)
	}

	if res.NewArticles > 0 && l.bus != nil {
		l.bus.Dispatch(events.Event{Name: events.ArticlesInserted, AccountID: account.ID, Data: res.NewArticles})
	}
	if err := l.store.UpdateAccountLastSync(account.ID, now); err != nil {
		return res, err
	}
	return res, nil
}

func (l *LocalSync) policySkip(account *storage.Account) string {
	if l.device == nil {
		return ""
	}
	if account.WifiOnly && !l.device.OnWifi() {
		return "waiting for wifi"
	}
	if account.ChargingOnly && !l.device.Charging() {
		return "waiting for charger"
	}
	return ""
}

// crawlFeed fetches and stores one feed. An unparsable body yields the
// parser's placeholder feed, which counts as a failure but leaves the
// feed's stored articles intact.
func (l *LocalSync) crawlFeed(ctx context.Context, account *storage.Account, feed *storage.Feed) (int, error) {
	parsed, err := l.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return 0, err
	}
	if parsed.Title == crawl.ErrorFeedTitle {
		return 0, &crawl.ParseError{URL: feed.URL}
	}

	floor := pastDaysFloor(account, time.Now().UTC())
	wantContent := account.FullContent || feed.FullContent
	inserted := 0
	for _, item := range parsed.Items {
		if !item.Published.IsZero() && item.Published.Before(floor) {
			continue
		}
		a := articleFromItem(account.ID, feed.ID, feed.URL, item)
		isNew, err := resolveAndInsert(l.store, a)
		if err != nil {
			return inserted, err
		}
		if isNew {
			inserted++
			if wantContent && l.worker != nil {
				l.worker.EnqueueNew(ctx, a)
			}
		}
	}
	return inserted, nil
}
