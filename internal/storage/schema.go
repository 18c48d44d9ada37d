package storage

const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    endpoint TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL DEFAULT '',
    token TEXT NOT NULL DEFAULT '',
    sync_interval INTEGER NOT NULL DEFAULT 60,
    wifi_only BOOLEAN NOT NULL DEFAULT 0,
    charging_only BOOLEAN NOT NULL DEFAULT 0,
    max_past_days INTEGER NOT NULL DEFAULT 30,
    full_content BOOLEAN NOT NULL DEFAULT 0,
    last_sync DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT NOT NULL,
    account_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    rtl BOOLEAN NOT NULL DEFAULT 0,
    is_default BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, id),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS feeds (
    id TEXT NOT NULL,
    account_id INTEGER NOT NULL,
    group_id TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    icon TEXT NOT NULL DEFAULT '',
    full_content BOOLEAN NOT NULL DEFAULT 0,
    notify BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (account_id, id),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE,
    FOREIGN KEY (account_id, group_id) REFERENCES groups(account_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_feeds_group ON feeds(account_id, group_id);
CREATE INDEX IF NOT EXISTS idx_feeds_url ON feeds(account_id, url);

CREATE TABLE IF NOT EXISTS articles (
    id TEXT NOT NULL,
    account_id INTEGER NOT NULL,
    feed_id TEXT NOT NULL,
    date DATETIME NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT '',
    normalized_link TEXT NOT NULL DEFAULT '',
    normalized_title TEXT NOT NULL DEFAULT '',
    sync_hash TEXT NOT NULL DEFAULT '',
    is_unread BOOLEAN NOT NULL DEFAULT 1,
    is_starred BOOLEAN NOT NULL DEFAULT 0,
    full_content TEXT,
    PRIMARY KEY (account_id, id),
    FOREIGN KEY (account_id, feed_id) REFERENCES feeds(account_id, id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_norm_link
    ON articles(account_id, normalized_link) WHERE normalized_link <> '';
CREATE INDEX IF NOT EXISTS idx_articles_feed ON articles(account_id, feed_id);
CREATE INDEX IF NOT EXISTS idx_articles_date ON articles(date DESC);
CREATE INDEX IF NOT EXISTS idx_articles_sync_hash
    ON articles(account_id, sync_hash) WHERE sync_hash <> '';
CREATE INDEX IF NOT EXISTS idx_articles_norm_title ON articles(account_id, feed_id, normalized_title);

CREATE TABLE IF NOT EXISTS read_history (
    account_id INTEGER NOT NULL,
    feed_id TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT '',
    normalized_link TEXT NOT NULL DEFAULT '',
    normalized_title TEXT NOT NULL DEFAULT '',
    sync_hash TEXT NOT NULL DEFAULT '',
    read_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(account_id, feed_id, link, normalized_title),
    FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_read_history_hash
    ON read_history(account_id, sync_hash) WHERE sync_hash <> '';
CREATE INDEX IF NOT EXISTS idx_read_history_link
    ON read_history(account_id, normalized_link) WHERE normalized_link <> '';
CREATE INDEX IF NOT EXISTS idx_read_history_title
    ON read_history(account_id, normalized_title) WHERE normalized_title <> '';
`
