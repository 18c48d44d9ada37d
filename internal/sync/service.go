// Package sync contains the per-backend sync engines and their shared
// machinery: subscription reconciliation, the identity resolution
// chain, the bounded fetch scheduler, the token manager and the
// background full-content worker.
package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/awalters/quill/internal/backend"
	"github.com/awalters/quill/internal/identity"
	"github.com/awalters/quill/internal/storage"
)

// MaxStreamPages bounds paginated stream listing per sync pass, so a
// hostile or enormous stream cannot stall an account.
const MaxStreamPages = 4

// Result is the outcome of one sync pass for one account. A pass
// always completes with counts; per-feed failures never abort it.
type Result struct {
	AccountID   int64
	Skipped     bool
	SkipReason  string
	FeedsTotal  int
	FeedsFailed int
	NewArticles int
}

// reconcileListing upserts every incoming group and feed by stable id
// and prunes local ones the server no longer reports. The synthesized
// default group always survives.
func reconcileListing(store *storage.Store, accountID int64, listing *backend.Listing) error {
	if err := store.EnsureDefaultGroup(accountID, "Uncategorized"); err != nil {
		return err
	}

	keepGroups := make([]string, 0, len(listing.Categories))
	for _, cat := range listing.Categories {
		if err := store.UpsertGroup(&storage.Group{
			ID:        cat.ID,
			AccountID: accountID,
			Name:      cat.Name,
		}); err != nil {
			return err
		}
		keepGroups = append(keepGroups, cat.ID)
	}
	if err := store.DeleteGroupsNotIn(accountID, keepGroups); err != nil {
		return err
	}

	keepFeeds := make([]string, 0, len(listing.Subscriptions))
	for _, sub := range listing.Subscriptions {
		groupID := sub.CategoryID
		if groupID == "" {
			groupID = storage.DefaultGroupID
		}
		if err := store.UpsertFeed(&storage.Feed{
			ID:        sub.ID,
			AccountID: accountID,
			GroupID:   groupID,
			Name:      sub.Title,
			URL:       sub.URL,
			Icon:      sub.IconURL,
		}); err != nil {
			return err
		}
		keepFeeds = append(keepFeeds, sub.ID)
	}
	return store.DeleteFeedsNotIn(accountID, keepFeeds)
}

// articleFromItem builds the storable article for an incoming item,
// populating the identity keys at write time.
func articleFromItem(accountID int64, feedID, feedURL string, item backend.Item) *storage.Article {
	date := item.Published
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &storage.Article{
		ID:              item.ID,
		AccountID:       accountID,
		FeedID:          feedID,
		Date:            date,
		Title:           item.Title,
		Author:          item.Author,
		Description:     item.Summary,
		Image:           item.Image,
		Link:            item.Link,
		NormalizedLink:  identity.NormalizeLink(item.Link),
		NormalizedTitle: identity.NormalizeTitle(item.Title),
		SyncHash:        identity.SyncHash(item.Title, feedURL),
		IsUnread:        item.Unread,
		IsStarred:       item.Starred,
	}
}

// resolveAndInsert applies the identity resolution chain to one
// candidate, first match wins:
//
//  1. native id already present
//  2. sync hash match within the account
//  3. normalized link match within the account
//  4. normalized title match within the same feed
//  5. read-history tombstone
//
// Anything that falls through is inserted as new; candidates without a
// native id get a generated one. On a near-identity match (3, 4) the
// existing row's missing sync hash is backfilled.
func resolveAndInsert(store *storage.Store, a *storage.Article) (bool, error) {
	if a.ID != "" {
		exists, err := store.ArticleExists(a.AccountID, a.ID)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if a.SyncHash != "" {
		dup, err := store.FindArticleBySyncHash(a.AccountID, a.SyncHash)
		if err != nil {
			return false, err
		}
		if dup != nil {
			return false, nil
		}
	}

	if a.NormalizedLink != "" {
		dup, err := store.FindArticleByNormalizedLink(a.AccountID, a.NormalizedLink)
		if err != nil {
			return false, err
		}
		if dup != nil {
			backfillHash(store, dup, a.SyncHash)
			return false, nil
		}
	}

	if a.NormalizedTitle != "" {
		dup, err := store.FindArticleByNormalizedTitle(a.AccountID, a.FeedID, a.NormalizedTitle)
		if err != nil {
			return false, err
		}
		if dup != nil {
			backfillHash(store, dup, a.SyncHash)
			return false, nil
		}
	}

	seen, err := store.IdentitySeen(a.AccountID, a.SyncHash, a.NormalizedLink, a.NormalizedTitle)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return store.InsertArticle(a)
}

func backfillHash(store *storage.Store, existing *storage.Article, hash string) {
	if existing.SyncHash == "" && hash != "" {
		// Best-effort: a failed backfill only delays dedup by one pass.
		store.BackfillSyncHash(existing.AccountID, existing.ID, hash)
	}
}

// pastDaysFloor returns the oldest article date the account accepts.
func pastDaysFloor(account *storage.Account, now time.Time) time.Time {
	days := account.MaxPastDays
	if days <= 0 {
		days = 30
	}
	return now.AddDate(0, 0, -days)
}
