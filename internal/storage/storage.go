// Package storage is the record store behind the sync engines: accounts,
// groups, feeds, articles and the read-history tombstone table, kept in
// SQLite. Identity constraints live here so that concurrent upserts from
// overlapping sync passes stay idempotent.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Account types. An account row is one configured backend connection.
const (
	AccountLocal    = "local"
	AccountGReader  = "greader"
	AccountMiniflux = "miniflux"
)

// DefaultGroupID is the synthesized group every account owns. It is
// never deleted by subscription reconciliation.
const DefaultGroupID = "default"

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

type Store struct {
	db *sql.DB
}

type Account struct {
	ID           int64
	Type         string
	Endpoint     string
	Username     string
	Password     string
	Token        string
	SyncInterval int // minutes
	WifiOnly     bool
	ChargingOnly bool
	MaxPastDays  int
	FullContent  bool
	LastSync     *time.Time
	CreatedAt    time.Time
}

type Group struct {
	ID        string
	AccountID int64
	Name      string
	RTL       bool
	IsDefault bool
}

type Feed struct {
	ID          string
	AccountID   int64
	GroupID     string
	Name        string
	URL         string
	Icon        string
	FullContent bool
	Notify      bool
}

type Article struct {
	ID              string
	AccountID       int64
	FeedID          string
	Date            time.Time
	Title           string
	Author          string
	Description     string
	Image           string
	Link            string
	NormalizedLink  string
	NormalizedTitle string
	SyncHash        string
	IsUnread        bool
	IsStarred       bool
	FullContent     *string
}

type ReadHistory struct {
	AccountID       int64
	FeedID          string
	Link            string
	NormalizedLink  string
	NormalizedTitle string
	SyncHash        string
	ReadAt          time.Time
}

// ArticleFilter narrows ListArticles. Nil pointer fields are ignored.
type ArticleFilter struct {
	FeedID  string
	GroupID string
	Unread  *bool
	Starred *bool
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// NewStore opens (creating if necessary) the database at dbPath and
// initializes the schema. Use ":memory:" for tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- accounts ---

// AddAccount inserts the account and creates its default group.
func (s *Store) AddAccount(a *Account) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (type, endpoint, username, password, token,
		    sync_interval, wifi_only, charging_only, max_past_days, full_content)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Type, a.Endpoint, a.Username, a.Password, a.Token,
		a.SyncInterval, a.WifiOnly, a.ChargingOnly, a.MaxPastDays, a.FullContent,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	if err := s.EnsureDefaultGroup(id, "Uncategorized"); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetAccount(id int64) (*Account, error) {
	row := s.db.QueryRow(
		`SELECT id, type, endpoint, username, password, token, sync_interval,
		    wifi_only, charging_only, max_past_days, full_content, last_sync, created_at
		 FROM accounts WHERE id = ?`, id)
	var a Account
	err := row.Scan(&a.ID, &a.Type, &a.Endpoint, &a.Username, &a.Password, &a.Token,
		&a.SyncInterval, &a.WifiOnly, &a.ChargingOnly, &a.MaxPastDays, &a.FullContent,
		&a.LastSync, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &a, nil
}

func (s *Store) GetAccounts() ([]Account, error) {
	rows, err := s.db.Query(
		`SELECT id, type, endpoint, username, password, token, sync_interval,
		    wifi_only, charging_only, max_past_days, full_content, last_sync, created_at
		 FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Type, &a.Endpoint, &a.Username, &a.Password, &a.Token,
			&a.SyncInterval, &a.WifiOnly, &a.ChargingOnly, &a.MaxPastDays, &a.FullContent,
			&a.LastSync, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount overwrites all mutable account fields.
func (s *Store) UpdateAccount(a *Account) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET endpoint = ?, username = ?, password = ?, token = ?,
		    sync_interval = ?, wifi_only = ?, charging_only = ?, max_past_days = ?, full_content = ?
		 WHERE id = ?`,
		a.Endpoint, a.Username, a.Password, a.Token,
		a.SyncInterval, a.WifiOnly, a.ChargingOnly, a.MaxPastDays, a.FullContent, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", a.ID, err)
	}
	return nil
}

// UpdateAccountToken persists a freshly acquired auth token, and the
// corrected endpoint when authentication discovered one.
func (s *Store) UpdateAccountToken(id int64, token, endpoint string) error {
	_, err := s.db.Exec(
		"UPDATE accounts SET token = ?, endpoint = ? WHERE id = ?",
		token, endpoint, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update token for account %d: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateAccountLastSync(id int64, t time.Time) error {
	_, err := s.db.Exec("UPDATE accounts SET last_sync = ? WHERE id = ?", t, id)
	if err != nil {
		return fmt.Errorf("failed to update last sync for account %d: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteAccount(id int64) error {
	_, err := s.db.Exec("DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	return nil
}

// --- groups ---

// EnsureDefaultGroup creates the synthesized default group if missing.
func (s *Store) EnsureDefaultGroup(accountID int64, name string) error {
	_, err := s.db.Exec(
		`INSERT INTO groups (id, account_id, name, is_default) VALUES (?, ?, ?, 1)
		 ON CONFLICT(account_id, id) DO NOTHING`,
		DefaultGroupID, accountID, name,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure default group for account %d: %w", accountID, err)
	}
	return nil
}

// UpsertGroup inserts the group or updates its name if it changed.
func (s *Store) UpsertGroup(g *Group) error {
	_, err := s.db.Exec(
		`INSERT INTO groups (id, account_id, name, rtl, is_default) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(account_id, id) DO UPDATE SET name = excluded.name`,
		g.ID, g.AccountID, g.Name, g.RTL, g.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) GetGroups(accountID int64) ([]Group, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, name, rtl, is_default FROM groups
		 WHERE account_id = ? ORDER BY is_default DESC, name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.AccountID, &g.Name, &g.RTL, &g.IsDefault); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroupsNotIn removes groups absent from keep. The default group
// survives regardless.
func (s *Store) DeleteGroupsNotIn(accountID int64, keep []string) error {
	query := "DELETE FROM groups WHERE account_id = ? AND is_default = 0"
	args := []any{accountID}
	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholders(len(keep)) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to prune groups: %w", err)
	}
	return nil
}

func (s *Store) SetGroupRTL(accountID int64, groupID string, rtl bool) error {
	_, err := s.db.Exec(
		"UPDATE groups SET rtl = ? WHERE account_id = ? AND id = ?",
		rtl, accountID, groupID,
	)
	return err
}

// --- feeds ---

// UpsertFeed inserts the feed or refreshes its mutable fields. A
// locally stored icon is preserved when the incoming one is empty, so a
// backend that omits icons cannot blank out ones already discovered.
func (s *Store) UpsertFeed(f *Feed) error {
	_, err := s.db.Exec(
		`INSERT INTO feeds (id, account_id, group_id, name, url, icon, full_content, notify)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id, id) DO UPDATE SET
		    group_id = excluded.group_id,
		    name = excluded.name,
		    url = excluded.url,
		    icon = CASE WHEN excluded.icon = '' THEN feeds.icon ELSE excluded.icon END`,
		f.ID, f.AccountID, f.GroupID, f.Name, f.URL, f.Icon, f.FullContent, f.Notify,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feed %s: %w", f.ID, err)
	}
	return nil
}

func (s *Store) GetFeed(accountID int64, id string) (*Feed, error) {
	row := s.db.QueryRow(
		`SELECT id, account_id, group_id, name, url, icon, full_content, notify
		 FROM feeds WHERE account_id = ? AND id = ?`, accountID, id)
	var f Feed
	err := row.Scan(&f.ID, &f.AccountID, &f.GroupID, &f.Name, &f.URL, &f.Icon, &f.FullContent, &f.Notify)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed %s: %w", id, err)
	}
	return &f, nil
}

func (s *Store) GetFeeds(accountID int64) ([]Feed, error) {
	rows, err := s.db.Query(
		`SELECT id, account_id, group_id, name, url, icon, full_content, notify
		 FROM feeds WHERE account_id = ? ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.AccountID, &f.GroupID, &f.Name, &f.URL, &f.Icon,
			&f.FullContent, &f.Notify); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// DeleteFeedsNotIn removes feeds absent from keep; their articles go
// with them via FK cascade.
func (s *Store) DeleteFeedsNotIn(accountID int64, keep []string) error {
	query := "DELETE FROM feeds WHERE account_id = ?"
	args := []any{accountID}
	if len(keep) > 0 {
		query += " AND id NOT IN (" + placeholders(len(keep)) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to prune feeds: %w", err)
	}
	return nil
}

func (s *Store) DeleteFeed(accountID int64, id string) error {
	_, err := s.db.Exec("DELETE FROM feeds WHERE account_id = ? AND id = ?", accountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed %s: %w", id, err)
	}
	return nil
}

func (s *Store) FeedExistsByURL(accountID int64, url string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(1) FROM feeds WHERE account_id = ? AND url = ?", accountID, url,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check feed url: %w", err)
	}
	return n > 0, nil
}

func (s *Store) SetFeedOptions(accountID int64, id string, fullContent, notify bool) error {
	_, err := s.db.Exec(
		"UPDATE feeds SET full_content = ?, notify = ? WHERE account_id = ? AND id = ?",
		fullContent, notify, accountID, id,
	)
	return err
}

// --- articles ---

const articleColumns = `id, account_id, feed_id, date, title, author, description,
    image, link, normalized_link, normalized_title, sync_hash, is_unread, is_starred, full_content`

func scanArticle(row interface{ Scan(...any) error }) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.AccountID, &a.FeedID, &a.Date, &a.Title, &a.Author,
		&a.Description, &a.Image, &a.Link, &a.NormalizedLink, &a.NormalizedTitle,
		&a.SyncHash, &a.IsUnread, &a.IsStarred, &a.FullContent)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertArticle stores a new article. A conflict on the primary key or
// on (account_id, normalized_link) is a benign duplicate signal: the
// insert is skipped and (false, nil) returned.
func (s *Store) InsertArticle(a *Article) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		a.ID, a.AccountID, a.FeedID, a.Date, a.Title, a.Author, a.Description,
		a.Image, a.Link, a.NormalizedLink, a.NormalizedTitle, a.SyncHash,
		a.IsUnread, a.IsStarred, a.FullContent,
	)
	if err != nil {
		// Older SQLite builds report races on the partial unique index
		// as a hard constraint error instead of honoring the bare
		// conflict clause; treat that as the same duplicate signal.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ArticleExists(accountID int64, id string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(1) FROM articles WHERE account_id = ? AND id = ?", accountID, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetArticle(accountID int64, id string) (*Article, error) {
	a, err := scanArticle(s.db.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE account_id = ? AND id = ?`,
		accountID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return a, nil
}

// FindArticleBySyncHash returns nil when no live article carries the hash.
func (s *Store) FindArticleBySyncHash(accountID int64, hash string) (*Article, error) {
	if hash == "" {
		return nil, nil
	}
	a, err := scanArticle(s.db.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE account_id = ? AND sync_hash = ?`,
		accountID, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by sync hash: %w", err)
	}
	return a, nil
}

func (s *Store) FindArticleByNormalizedLink(accountID int64, link string) (*Article, error) {
	if link == "" {
		return nil, nil
	}
	a, err := scanArticle(s.db.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE account_id = ? AND normalized_link = ?`,
		accountID, link))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by link: %w", err)
	}
	return a, nil
}

// FindArticleByNormalizedTitle scopes the lookup to one feed: identical
// titles are only a duplicate signal within the same feed.
func (s *Store) FindArticleByNormalizedTitle(accountID int64, feedID, title string) (*Article, error) {
	if title == "" {
		return nil, nil
	}
	a, err := scanArticle(s.db.QueryRow(
		`SELECT `+articleColumns+` FROM articles
		 WHERE account_id = ? AND feed_id = ? AND normalized_title = ? LIMIT 1`,
		accountID, feedID, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by title: %w", err)
	}
	return a, nil
}

// BackfillSyncHash fills sync_hash on a row that predates hashing.
func (s *Store) BackfillSyncHash(accountID int64, id, hash string) error {
	_, err := s.db.Exec(
		"UPDATE articles SET sync_hash = ? WHERE account_id = ? AND id = ? AND sync_hash = ''",
		hash, accountID, id,
	)
	return err
}

// SetArticleState overwrites read/star state, used when the server is
// authoritative for both.
func (s *Store) SetArticleState(accountID int64, id string, unread, starred bool) error {
	_, err := s.db.Exec(
		"UPDATE articles SET is_unread = ?, is_starred = ? WHERE account_id = ? AND id = ?",
		unread, starred, accountID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set article state: %w", err)
	}
	return nil
}

func (s *Store) MarkArticlesRead(accountID int64, ids []string, read bool) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{!read, accountID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(
		"UPDATE articles SET is_unread = ? WHERE account_id = ? AND id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark articles read: %w", err)
	}
	return nil
}

func (s *Store) StarArticles(accountID int64, ids []string, starred bool) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{starred, accountID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(
		"UPDATE articles SET is_starred = ? WHERE account_id = ? AND id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to star articles: %w", err)
	}
	return nil
}

func (s *Store) SetFullContent(accountID int64, id, content string) error {
	_, err := s.db.Exec(
		"UPDATE articles SET full_content = ? WHERE account_id = ? AND id = ?",
		content, accountID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set full content: %w", err)
	}
	return nil
}

// ArticlesMissingFullContent returns up to limit articles that still
// lack an extracted body, newest first. Unless accountWide is set, only
// articles from feeds that opted into full content are considered.
func (s *Store) ArticlesMissingFullContent(accountID int64, accountWide bool, limit int) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		 WHERE account_id = ? AND full_content IS NULL AND link <> ''`
	args := []any{accountID}
	if !accountWide {
		query += ` AND feed_id IN (SELECT id FROM feeds WHERE account_id = ? AND full_content = 1)`
		args = append(args, accountID)
	}
	query += ` ORDER BY date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles missing content: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

func (s *Store) ListArticles(accountID int64, filter ArticleFilter) ([]Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE account_id = ?`
	args := []any{accountID}

	if filter.FeedID != "" {
		query += " AND feed_id = ?"
		args = append(args, filter.FeedID)
	}
	if filter.GroupID != "" {
		query += " AND feed_id IN (SELECT id FROM feeds WHERE account_id = ? AND group_id = ?)"
		args = append(args, accountID, filter.GroupID)
	}
	if filter.Unread != nil {
		query += " AND is_unread = ?"
		args = append(args, *filter.Unread)
	}
	if filter.Starred != nil {
		query += " AND is_starred = ?"
		args = append(args, *filter.Starred)
	}
	if filter.Since != nil {
		query += " AND date >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += " AND date < ?"
		args = append(args, *filter.Until)
	}
	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

// DeleteArticles removes articles by id. Articles already read are
// tombstoned in read_history first so a later sync cannot resurrect
// them.
func (s *Store) DeleteArticles(accountID int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	args := []any{accountID}
	for _, id := range ids {
		args = append(args, id)
	}
	in := placeholders(len(ids))

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO read_history
		    (account_id, feed_id, link, normalized_link, normalized_title, sync_hash)
		 SELECT account_id, feed_id, link, normalized_link, normalized_title, sync_hash
		 FROM articles
		 WHERE account_id = ? AND id IN (`+in+`) AND is_unread = 0`, args...); err != nil {
		return fmt.Errorf("failed to tombstone articles: %w", err)
	}

	if _, err := tx.Exec(
		"DELETE FROM articles WHERE account_id = ? AND id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("failed to delete articles: %w", err)
	}

	return tx.Commit()
}

// PruneArticles deletes read, unstarred articles older than cutoff,
// tombstoning each. Returns the number removed.
func (s *Store) PruneArticles(accountID int64, cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO read_history
		    (account_id, feed_id, link, normalized_link, normalized_title, sync_hash)
		 SELECT account_id, feed_id, link, normalized_link, normalized_title, sync_hash
		 FROM articles
		 WHERE account_id = ? AND date < ? AND is_unread = 0 AND is_starred = 0`,
		accountID, cutoff); err != nil {
		return 0, fmt.Errorf("failed to tombstone pruned articles: %w", err)
	}

	result, err := tx.Exec(
		"DELETE FROM articles WHERE account_id = ? AND date < ? AND is_unread = 0 AND is_starred = 0",
		accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune articles: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, tx.Commit()
}

// chunk size for IN clauses; SQLite's default host-parameter ceiling
// is 999.
const inClauseChunk = 500

// ApplyServerReadState overwrites every article's unread flag from the
// server's unread id set: members become unread, everything else read.
func (s *Store) ApplyServerReadState(accountID int64, unreadIDs []string) error {
	return s.applyServerFlag(accountID, "is_unread", unreadIDs)
}

// ApplyServerStarState overwrites every article's starred flag from
// the server's starred id set.
func (s *Store) ApplyServerStarState(accountID int64, starredIDs []string) error {
	return s.applyServerFlag(accountID, "is_starred", starredIDs)
}

func (s *Store) applyServerFlag(accountID int64, column string, ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin state overwrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"UPDATE articles SET "+column+" = 0 WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", column, err)
	}

	for start := 0; start < len(ids); start += inClauseChunk {
		end := start + inClauseChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		args := []any{accountID}
		for _, id := range chunk {
			args = append(args, id)
		}
		if _, err := tx.Exec(
			"UPDATE articles SET "+column+" = 1 WHERE account_id = ? AND id IN ("+placeholders(len(chunk))+")",
			args...); err != nil {
			return fmt.Errorf("failed to apply %s: %w", column, err)
		}
	}
	return tx.Commit()
}

// --- read history ---

// AddReadHistory records an identity tombstone. Inserting the same
// identity twice is a no-op.
func (s *Store) AddReadHistory(h *ReadHistory) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO read_history
		    (account_id, feed_id, link, normalized_link, normalized_title, sync_hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.AccountID, h.FeedID, h.Link, h.NormalizedLink, h.NormalizedTitle, h.SyncHash,
	)
	if err != nil {
		return fmt.Errorf("failed to add read history: %w", err)
	}
	return nil
}

// IdentitySeen reports whether any of the given identity keys appears
// in read history for the account. Empty keys never match.
func (s *Store) IdentitySeen(accountID int64, syncHash, normLink, normTitle string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM read_history
		 WHERE account_id = ? AND (
		    (sync_hash <> '' AND sync_hash = ?) OR
		    (normalized_link <> '' AND normalized_link = ?) OR
		    (normalized_title <> '' AND normalized_title = ?))`,
		accountID, syncHash, normLink, normTitle,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check read history: %w", err)
	}
	return n > 0, nil
}

// --- helpers ---

func collectArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
