package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/awalters/quill/internal/backend"
	"github.com/awalters/quill/internal/events"
	"github.com/awalters/quill/internal/storage"
)

// CloudSync mirrors a Google-Reader-compatible account into the local
// store. The server is authoritative for read and star state, so each
// pass ends by replaying the server's unread and starred id lists.
type CloudSync struct {
	store   *storage.Store
	tokens  *TokenManager
	adapter backend.Adapter
	worker  *ContentWorker
	bus     *events.Bus
}

func NewCloudSync(store *storage.Store, tokens *TokenManager, adapter backend.Adapter, worker *ContentWorker, bus *events.Bus) *CloudSync {
	return &CloudSync{store: store, tokens: tokens, adapter: adapter, worker: worker, bus: bus}
}

// Adapter exposes the engine's backend adapter so callers can
// authenticate outside a sync pass.
func (c *CloudSync) Adapter() backend.Adapter {
	return c.adapter
}

// Sync runs one full pass for the account. Subscription listing is the
// only fatal step; stream paging and state replay degrade to a partial
// result with a log line.
func (c *CloudSync) Sync(ctx context.Context, account *storage.Account) (*Result, error) {
	res := &Result{AccountID: account.ID}
	now := time.Now().UTC()

	var listing *backend.Listing
	err := c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
		var err error
		listing, err = c.adapter.ListSubscriptions(ctx, s)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if err := reconcileListing(c.store, account.ID, listing); err != nil {
		return nil, fmt.Errorf("reconcile subscriptions: %w", err)
	}
	res.FeedsTotal = len(listing.Subscriptions)

	// The stored rows carry the per-feed full-content overrides the
	// listing itself does not know about.
	feeds, err := c.store.GetFeeds(account.ID)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	feedByID := make(map[string]*storage.Feed, len(feeds))
	anyContent := account.FullContent
	for i := range feeds {
		feedByID[feeds[i].ID] = &feeds[i]
		if feeds[i].FullContent {
			anyContent = true
		}
	}

	inserted, err := c.pullStream(ctx, account, feedByID, pastDaysFloor(account, now))
	res.NewArticles = inserted
	if err != nil {
		log.Printf("quill: account %d: stream pull incomplete: %v", account.ID, err)
	}

	c.replayServerState(ctx, account)

	if res.NewArticles > 0 && c.bus != nil {
		c.bus.Dispatch(events.Event{Name: events.ArticlesInserted, AccountID: account.ID, Data: res.NewArticles})
	}
	if anyContent && c.worker != nil {
		c.worker.Backfill(ctx, account)
	}
	if err := c.store.UpdateAccountLastSync(account.ID, now); err != nil {
		return res, err
	}
	return res, nil
}

// pullStream pages the reading-list stream until it is exhausted, the
// page ceiling is hit, or a page fails. Items from feeds the listing
// did not report are skipped.
func (c *CloudSync) pullStream(ctx context.Context, account *storage.Account, feedByID map[string]*storage.Feed, since time.Time) (int, error) {
	opts := backend.ListOptions{
		Stream: backend.StreamReadingList,
		Since:  since,
	}
	inserted := 0
	for page := 0; page < MaxStreamPages; page++ {
		var pg *backend.Page
		err := c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
			var err error
			pg, err = c.adapter.ListItems(ctx, s, opts)
			return err
		})
		if err != nil {
			return inserted, fmt.Errorf("page %d: %w", page, err)
		}
		for _, item := range pg.Items {
			feed, ok := feedByID[item.FeedID]
			if !ok {
				log.Printf("quill: account %d: item %s references unknown feed %s", account.ID, item.ID, item.FeedID)
				continue
			}
			a := articleFromItem(account.ID, item.FeedID, feed.URL, item)
			isNew, err := resolveAndInsert(c.store, a)
			if err != nil {
				return inserted, fmt.Errorf("insert %s: %w", item.ID, err)
			}
			if isNew {
				inserted++
				if (account.FullContent || feed.FullContent) && c.worker != nil {
					c.worker.EnqueueNew(ctx, a)
				}
			}
		}
		if pg.Continuation == "" {
			break
		}
		opts.Continuation = pg.Continuation
	}
	return inserted, nil
}

// replayServerState overwrites local read and star flags with the
// server's view. Failures leave the previous local flags in place.
func (c *CloudSync) replayServerState(ctx context.Context, account *storage.Account) {
	var unread []string
	err := c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
		var err error
		unread, err = c.adapter.ListUnreadIDs(ctx, s)
		return err
	})
	if err != nil {
		log.Printf("quill: account %d: unread id list: %v", account.ID, err)
	} else if err := c.store.ApplyServerReadState(account.ID, unread); err != nil {
		log.Printf("quill: account %d: apply read state: %v", account.ID, err)
	}

	var starred []string
	err = c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
		var err error
		starred, err = c.adapter.ListStarredIDs(ctx, s)
		return err
	})
	if err != nil {
		log.Printf("quill: account %d: starred id list: %v", account.ID, err)
	} else if err := c.store.ApplyServerStarState(account.ID, starred); err != nil {
		log.Printf("quill: account %d: apply star state: %v", account.ID, err)
	}
}

// PushRead forwards a local read-state change to the server. The local
// flag is already persisted; a push failure is logged and dropped, the
// next pass reconciles.
func (c *CloudSync) PushRead(ctx context.Context, account *storage.Account, ids []string, read bool) {
	err := c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
		return c.adapter.MarkRead(ctx, s, ids, read)
	})
	if err != nil {
		log.Printf("quill: account %d: push read state: %v", account.ID, err)
	}
}

// PushStar forwards a local star-state change to the server.
func (c *CloudSync) PushStar(ctx context.Context, account *storage.Account, ids []string, starred bool) {
	err := c.tokens.WithAuthRetry(ctx, c.adapter, account, func(s backend.Session) error {
		return c.adapter.Star(ctx, s, ids, starred)
	})
	if err != nil {
		log.Printf("quill: account %d: push star state: %v", account.ID, err)
	}
}
