package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awalters/quill/internal/backend/crawl"
	"github.com/awalters/quill/internal/storage"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Ok Feed</title>
    <link>https://ok.example.com</link>
    <item>
      <title>First post</title>
      <link>https://ok.example.com/posts/1</link>
      <pubDate>%s</pubDate>
      <description>hello</description>
    </item>
    <item>
      <title>Second post</title>
      <link>https://ok.example.com/posts/2</link>
      <pubDate>%s</pubDate>
      <description>world</description>
    </item>
  </channel>
</rss>`

type fakeDevice struct {
	wifi     bool
	charging bool
}

func (d fakeDevice) OnWifi() bool   { return d.wifi }
func (d fakeDevice) Charging() bool { return d.charging }

func newCrawlServer(t *testing.T) *httptest.Server {
	t.Helper()
	recent := time.Now().Add(-time.Hour).Format(time.RFC1123Z)
	older := time.Now().Add(-2 * time.Hour).Format(time.RFC1123Z)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, recent, older)
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func addLocalAccount(t *testing.T, store *storage.Store, wifiOnly bool) *storage.Account {
	t.Helper()
	id, err := store.AddAccount(&storage.Account{
		Type:        storage.AccountLocal,
		WifiOnly:    wifiOnly,
		MaxPastDays: 30,
	})
	require.NoError(t, err)
	account, err := store.GetAccount(id)
	require.NoError(t, err)
	return account
}

func addLocalFeed(t *testing.T, store *storage.Store, accountID int64, id, url string) {
	t.Helper()
	require.NoError(t, store.UpsertFeed(&storage.Feed{
		ID:        id,
		AccountID: accountID,
		GroupID:   storage.DefaultGroupID,
		Name:      id,
		URL:       url,
	}))
}

func newLocalSync(store *storage.Store, server *httptest.Server, device DeviceState) *LocalSync {
	fetcher := crawl.NewFetcher(server.Client())
	return NewLocalSync(store, fetcher, NewScheduler(4), nil, nil, device)
}

func TestLocalSyncPartialFailure(t *testing.T) {
	store := newTestStore(t)
	server := newCrawlServer(t)
	account := addLocalAccount(t, store, false)
	addLocalFeed(t, store, account.ID, "ok", server.URL+"/ok")
	addLocalFeed(t, store, account.ID, "bad", server.URL+"/bad")

	engine := newLocalSync(store, server, nil)
	res, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, 2, res.FeedsTotal)
	require.Equal(t, 1, res.FeedsFailed, "a broken feed fails alone")
	require.Equal(t, 2, res.NewArticles)

	stored, err := store.GetAccount(account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSync, "partial success still advances last sync")
}

func TestLocalSyncSecondPassInsertsNothing(t *testing.T) {
	store := newTestStore(t)
	server := newCrawlServer(t)
	account := addLocalAccount(t, store, false)
	addLocalFeed(t, store, account.ID, "ok", server.URL+"/ok")

	engine := newLocalSync(store, server, nil)
	_, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)

	res, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)
	require.Zero(t, res.NewArticles)
}

func TestLocalSyncUnparsableFeedCountsAsFailed(t *testing.T) {
	store := newTestStore(t)
	server := newCrawlServer(t)
	account := addLocalAccount(t, store, false)
	addLocalFeed(t, store, account.ID, "garbage", server.URL+"/garbage")

	engine := newLocalSync(store, server, nil)
	res, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, 1, res.FeedsFailed)
	require.Zero(t, res.NewArticles)
}

func TestLocalSyncPolicySkip(t *testing.T) {
	store := newTestStore(t)
	server := newCrawlServer(t)
	account := addLocalAccount(t, store, true)
	addLocalFeed(t, store, account.ID, "ok", server.URL+"/ok")

	engine := newLocalSync(store, server, fakeDevice{wifi: false})
	res, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, "waiting for wifi", res.SkipReason)

	stored, err := store.GetAccount(account.ID)
	require.NoError(t, err)
	require.Nil(t, stored.LastSync, "a skipped pass must not advance last sync")

	// Back on wifi the same account syncs normally.
	engine = newLocalSync(store, server, fakeDevice{wifi: true})
	res, err = engine.Sync(context.Background(), account)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, 2, res.NewArticles)
}

func TestLocalSyncPreservesLocalReadState(t *testing.T) {
	store := newTestStore(t)
	server := newCrawlServer(t)
	account := addLocalAccount(t, store, false)
	addLocalFeed(t, store, account.ID, "ok", server.URL+"/ok")

	engine := newLocalSync(store, server, nil)
	_, err := engine.Sync(context.Background(), account)
	require.NoError(t, err)

	articles, err := store.ListArticles(account.ID, storage.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.NoError(t, store.MarkArticlesRead(account.ID, []string{articles[0].ID}, true))

	_, err = engine.Sync(context.Background(), account)
	require.NoError(t, err)

	got, err := store.GetArticle(account.ID, articles[0].ID)
	require.NoError(t, err)
	require.False(t, got.IsUnread, "a crawl never rewrites local read state")
}
