package opml

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/awalters/quill/internal/storage"
)

func newTestAccount(t *testing.T) (*storage.Store, int64) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.AddAccount(&storage.Account{Type: storage.AccountLocal})
	require.NoError(t, err)
	return store, id
}

func TestImportGroupWithFeed(t *testing.T) {
	store, accountID := newTestAccount(t)

	const doc = `<?xml version="1.0"?>
<opml version="2.0">
  <body>
    <outline text="Tech">
      <outline xmlUrl="https://x/feed" title="X"/>
    </outline>
  </body>
</opml>`

	res, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, res.GroupsAdded)
	require.Equal(t, 1, res.FeedsAdded)
	require.Zero(t, res.FeedsSkipped)

	groups, err := store.GetGroups(accountID)
	require.NoError(t, err)
	var techID string
	for _, g := range groups {
		if g.Name == "Tech" {
			techID = g.ID
		}
	}
	require.NotEmpty(t, techID)

	feeds, err := store.GetFeeds(accountID)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	require.Equal(t, "X", feeds[0].Name)
	require.Equal(t, "https://x/feed", feeds[0].URL)
	require.Equal(t, techID, feeds[0].GroupID)
}

func TestImportSkipsKnownURLs(t *testing.T) {
	store, accountID := newTestAccount(t)
	require.NoError(t, store.UpsertFeed(&storage.Feed{
		ID:        "existing",
		AccountID: accountID,
		GroupID:   storage.DefaultGroupID,
		Name:      "Existing",
		URL:       "https://x/feed",
	}))

	const doc = `<opml version="2.0"><body>
		<outline xmlUrl="https://x/feed" title="X"/>
		<outline xmlUrl="https://y/feed" title="Y"/>
	</body></opml>`

	res, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, res.FeedsAdded)
	require.Equal(t, 1, res.FeedsSkipped)
}

func TestImportTopLevelFeedLandsInDefaultGroup(t *testing.T) {
	store, accountID := newTestAccount(t)

	const doc = `<opml version="2.0"><body>
		<outline url="https://plain/feed" text="Plain"/>
	</body></opml>`

	res, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, res.FeedsAdded)
	require.Zero(t, res.GroupsAdded)

	feeds, err := store.GetFeeds(accountID)
	require.NoError(t, err)
	require.Equal(t, storage.DefaultGroupID, feeds[0].GroupID)
}

func TestImportDefaultFlaggedGroupFoldsIn(t *testing.T) {
	store, accountID := newTestAccount(t)

	const doc = `<opml version="2.0"><body>
		<outline text="Saved" isDefault="true">
			<outline xmlUrl="https://a/feed" title="A"/>
		</outline>
	</body></opml>`

	res, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)
	require.Zero(t, res.GroupsAdded, "the flagged group maps onto the existing default")

	feeds, err := store.GetFeeds(accountID)
	require.NoError(t, err)
	require.Equal(t, storage.DefaultGroupID, feeds[0].GroupID)
}

func TestImportReusesExistingGroupByName(t *testing.T) {
	store, accountID := newTestAccount(t)

	const doc = `<opml version="2.0"><body>
		<outline text="Tech"><outline xmlUrl="https://a/feed" title="A"/></outline>
	</body></opml>`
	_, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)

	const doc2 = `<opml version="2.0"><body>
		<outline text="Tech"><outline xmlUrl="https://b/feed" title="B"/></outline>
	</body></opml>`
	res, err := Import(store, accountID, strings.NewReader(doc2))
	require.NoError(t, err)
	require.Zero(t, res.GroupsAdded)
	require.Equal(t, 1, res.FeedsAdded)

	groups, err := store.GetGroups(accountID)
	require.NoError(t, err)
	require.Len(t, groups, 2) // default + Tech
}

func TestImportRejectsMalformedXML(t *testing.T) {
	store, accountID := newTestAccount(t)
	_, err := Import(store, accountID, strings.NewReader("<opml><body>"))
	require.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	store, accountID := newTestAccount(t)

	const doc = `<opml version="2.0"><body>
		<outline text="Tech">
			<outline xmlUrl="https://x/feed" title="X"/>
		</outline>
		<outline xmlUrl="https://plain/feed" text="Plain"/>
	</body></opml>`
	_, err := Import(store, accountID, strings.NewReader(doc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(store, accountID, &buf, false))
	out := buf.String()
	require.Contains(t, out, `xmlUrl="https://x/feed"`)
	require.Contains(t, out, `text="Tech"`)
	require.NotContains(t, out, "isDefault", "extension attributes only with info attached")

	// Re-import into a fresh account reproduces the tree.
	store2, account2 := newTestAccount(t)
	res, err := Import(store2, account2, strings.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 1, res.GroupsAdded)
	require.Equal(t, 2, res.FeedsAdded)
}

func TestExportWithInfo(t *testing.T) {
	store, accountID := newTestAccount(t)
	require.NoError(t, store.UpsertFeed(&storage.Feed{
		ID:          "f1",
		AccountID:   accountID,
		GroupID:     storage.DefaultGroupID,
		Name:        "Full",
		URL:         "https://full/feed",
		FullContent: true,
	}))

	var buf bytes.Buffer
	require.NoError(t, Export(store, accountID, &buf, true))
	out := buf.String()
	require.Contains(t, out, `isDefault="true"`)
	require.Contains(t, out, `fullContent="true"`)
	require.Contains(t, out, `notify="false"`)
}
