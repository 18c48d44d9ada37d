// Package quill is a multi-backend feed sync engine: it mirrors
// Google-Reader-compatible cloud accounts and crawls local RSS/Atom
// subscriptions into one SQLite-backed store, with deduplication,
// read/star reconciliation and readable full-content extraction.
package quill

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/awalters/quill/internal/backend"
	"github.com/awalters/quill/internal/backend/crawl"
	"github.com/awalters/quill/internal/backend/greader"
	"github.com/awalters/quill/internal/backend/miniflux"
	"github.com/awalters/quill/internal/events"
	"github.com/awalters/quill/internal/opml"
	"github.com/awalters/quill/internal/storage"
	enginesync "github.com/awalters/quill/internal/sync"
)

// Engine is the public API. It wraps the store, the per-backend sync
// engines and the background content worker behind one handle.
type Engine struct {
	store  *storage.Store
	bus    *events.Bus
	tokens *enginesync.TokenManager
	worker *enginesync.ContentWorker
	coord  *enginesync.Coordinator
}

// New opens the database and wires up the engine.
func New(cfg Config) (*Engine, error) {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	bus := events.NewBus()
	tokens := enginesync.NewTokenManager(store)
	worker := enginesync.NewContentWorker(store, httpClient, bus)

	clouds := map[string]*enginesync.CloudSync{
		storage.AccountGReader:  enginesync.NewCloudSync(store, tokens, greader.New(httpClient), worker, bus),
		storage.AccountMiniflux: enginesync.NewCloudSync(store, tokens, miniflux.New(httpClient), worker, bus),
	}
	local := enginesync.NewLocalSync(
		store,
		crawl.NewFetcher(httpClient),
		enginesync.NewScheduler(cfg.Concurrency),
		worker,
		bus,
		cfg.Device,
	)

	return &Engine{
		store:  store,
		bus:    bus,
		tokens: tokens,
		worker: worker,
		coord:  enginesync.NewCoordinator(store, bus, local, clouds),
	}, nil
}

// AddAccount creates an account. Cloud accounts are authenticated
// immediately so bad credentials surface here, not on the first sync;
// the acquired token is persisted for reuse.
func (e *Engine) AddAccount(ctx context.Context, opts AccountOptions) (*Account, error) {
	switch opts.Type {
	case AccountLocal, AccountGReader, AccountMiniflux:
	default:
		return nil, fmt.Errorf("unsupported account type %q", opts.Type)
	}
	if opts.MaxPastDays <= 0 {
		opts.MaxPastDays = 30
	}

	id, err := e.store.AddAccount(&storage.Account{
		Type:         opts.Type,
		Endpoint:     backend.NormalizeEndpoint(opts.Endpoint),
		Username:     opts.Username,
		Password:     opts.Password,
		SyncInterval: opts.SyncInterval,
		WifiOnly:     opts.WifiOnly,
		ChargingOnly: opts.ChargingOnly,
		MaxPastDays:  opts.MaxPastDays,
		FullContent:  opts.FullContent,
	})
	if err != nil {
		return nil, fmt.Errorf("add account: %w", err)
	}

	account, err := e.store.GetAccount(id)
	if err != nil {
		return nil, err
	}

	if cloud, ok := e.coord.CloudFor(opts.Type); ok {
		if _, err := e.tokens.Refresh(ctx, cloud.Adapter(), account); err != nil {
			e.store.DeleteAccount(id)
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}

	out := accountFromInternal(account)
	return &out, nil
}

// Accounts returns every configured account.
func (e *Engine) Accounts() ([]Account, error) {
	accounts, err := e.store.GetAccounts()
	if err != nil {
		return nil, err
	}
	out := make([]Account, len(accounts))
	for i := range accounts {
		out[i] = accountFromInternal(&accounts[i])
	}
	return out, nil
}

// RemoveAccount deletes an account and everything under it.
func (e *Engine) RemoveAccount(id int64) error {
	return e.store.DeleteAccount(id)
}

// SyncAccount runs one sync pass for the account. The result reports
// partial failures; full-content extraction continues in the
// background after this returns.
func (e *Engine) SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error) {
	account, err := e.store.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	res, err := e.coord.SyncAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	out := resultFromInternal(res)
	return &out, nil
}

// SyncAll syncs every account in turn, skipping over ones that fail.
func (e *Engine) SyncAll(ctx context.Context) ([]SyncResult, error) {
	results, err := e.coord.SyncAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SyncResult, len(results))
	for i := range results {
		out[i] = resultFromInternal(&results[i])
	}
	return out, nil
}

// Groups returns the account's groups.
func (e *Engine) Groups(accountID int64) ([]Group, error) {
	groups, err := e.store.GetGroups(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{ID: g.ID, AccountID: g.AccountID, Name: g.Name, RTL: g.RTL, IsDefault: g.IsDefault}
	}
	return out, nil
}

// Feeds returns the account's feeds.
func (e *Engine) Feeds(accountID int64) ([]Feed, error) {
	feeds, err := e.store.GetFeeds(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Feed, len(feeds))
	for i := range feeds {
		out[i] = feedFromInternal(&feeds[i])
	}
	return out, nil
}

// Articles lists stored articles, newest first.
func (e *Engine) Articles(accountID int64, filter ArticleFilter) ([]Article, error) {
	articles, err := e.store.ListArticles(accountID, storage.ArticleFilter{
		FeedID:  filter.FeedID,
		GroupID: filter.GroupID,
		Unread:  filter.Unread,
		Starred: filter.Starred,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Article, len(articles))
	for i := range articles {
		out[i] = articleFromInternal(&articles[i])
	}
	return out, nil
}

// Article returns one stored article.
func (e *Engine) Article(accountID int64, id string) (*Article, error) {
	a, err := e.store.GetArticle(accountID, id)
	if err != nil {
		return nil, err
	}
	out := articleFromInternal(a)
	return &out, nil
}

// MarkRead flips the read flag locally, then pushes the change to the
// account's server when there is one. The push is best-effort: a
// failure is logged and the next sync reconciles.
func (e *Engine) MarkRead(ctx context.Context, accountID int64, ids []string, read bool) error {
	if err := e.store.MarkArticlesRead(accountID, ids, read); err != nil {
		return err
	}
	e.pushState(ctx, accountID, func(cloud *enginesync.CloudSync, account *storage.Account) {
		cloud.PushRead(ctx, account, ids, read)
	})
	return nil
}

// Star flips the star flag locally, then pushes best-effort.
func (e *Engine) Star(ctx context.Context, accountID int64, ids []string, starred bool) error {
	if err := e.store.StarArticles(accountID, ids, starred); err != nil {
		return err
	}
	e.pushState(ctx, accountID, func(cloud *enginesync.CloudSync, account *storage.Account) {
		cloud.PushStar(ctx, account, ids, starred)
	})
	return nil
}

func (e *Engine) pushState(ctx context.Context, accountID int64, push func(*enginesync.CloudSync, *storage.Account)) {
	account, err := e.store.GetAccount(accountID)
	if err != nil {
		return
	}
	if cloud, ok := e.coord.CloudFor(account.Type); ok {
		push(cloud, account)
	}
}

// DeleteArticles removes articles, tombstoning the read ones so a
// later sync cannot resurrect them.
func (e *Engine) DeleteArticles(accountID int64, ids []string) error {
	return e.store.DeleteArticles(accountID, ids)
}

// ImportOPML imports groups and feeds from an OPML file. When the
// import added feeds it triggers exactly one sync pass for the
// account so the new subscriptions fill immediately.
func (e *Engine) ImportOPML(ctx context.Context, accountID int64, path string) (*OPMLImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open OPML: %w", err)
	}
	defer f.Close()

	res, err := opml.Import(e.store, accountID, f)
	if err != nil {
		return nil, err
	}
	if res.FeedsAdded > 0 {
		if _, err := e.SyncAccount(ctx, accountID); err != nil {
			return nil, fmt.Errorf("sync imported feeds: %w", err)
		}
	}
	return &OPMLImportResult{
		GroupsAdded:  res.GroupsAdded,
		FeedsAdded:   res.FeedsAdded,
		FeedsSkipped: res.FeedsSkipped,
	}, nil
}

// ExportOPML writes the account's subscriptions to an OPML file.
// withInfo attaches the extension attributes a re-import understands.
func (e *Engine) ExportOPML(accountID int64, path string, withInfo bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create OPML: %w", err)
	}
	defer f.Close()
	return opml.Export(e.store, accountID, f, withInfo)
}

// Events returns a listener for engine notifications. Each call gets
// an independent stream; slow consumers miss events rather than
// blocking the engine.
func (e *Engine) Events() <-chan Event {
	in := e.bus.Listener()
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for evt := range in {
			// Same policy as the bus: a consumer that stopped reading
			// misses events, it never wedges the forwarder.
			select {
			case out <- Event{Name: evt.Name, AccountID: evt.AccountID, Data: evt.Data}:
			default:
			}
		}
	}()
	return out
}

// WaitContent blocks until all in-flight full-content extractions
// finish. Mostly useful in tests and one-shot CLI runs.
func (e *Engine) WaitContent() {
	e.worker.Wait()
}

// Close waits for background work and releases all resources.
func (e *Engine) Close() error {
	e.worker.Wait()
	e.bus.Close()
	return e.store.Close()
}

// --- internal type conversion helpers ---

func accountFromInternal(a *storage.Account) Account {
	return Account{
		ID:           a.ID,
		Type:         a.Type,
		Endpoint:     a.Endpoint,
		Username:     a.Username,
		SyncInterval: a.SyncInterval,
		WifiOnly:     a.WifiOnly,
		ChargingOnly: a.ChargingOnly,
		MaxPastDays:  a.MaxPastDays,
		FullContent:  a.FullContent,
		LastSync:     a.LastSync,
		CreatedAt:    a.CreatedAt,
	}
}

func feedFromInternal(f *storage.Feed) Feed {
	return Feed{
		ID:          f.ID,
		AccountID:   f.AccountID,
		GroupID:     f.GroupID,
		Name:        f.Name,
		URL:         f.URL,
		Icon:        f.Icon,
		FullContent: f.FullContent,
		Notify:      f.Notify,
	}
}

func articleFromInternal(a *storage.Article) Article {
	out := Article{
		ID:          a.ID,
		AccountID:   a.AccountID,
		FeedID:      a.FeedID,
		Date:        a.Date,
		Title:       a.Title,
		Author:      a.Author,
		Description: a.Description,
		Image:       a.Image,
		Link:        a.Link,
		IsUnread:    a.IsUnread,
		IsStarred:   a.IsStarred,
	}
	if a.FullContent != nil {
		out.FullContent = *a.FullContent
	}
	return out
}

func resultFromInternal(r *enginesync.Result) SyncResult {
	return SyncResult{
		AccountID:   r.AccountID,
		Skipped:     r.Skipped,
		SkipReason:  r.SkipReason,
		FeedsTotal:  r.FeedsTotal,
		FeedsFailed: r.FeedsFailed,
		NewArticles: r.NewArticles,
	}
}
