package storage

const schema = `
-- The 'sources' table tracks where cards come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned DATETIME
);

-- The 'cards' table stores one row per vocabulary entry, keyed by content hash.
CREATE TABLE IF NOT EXISTS cards (
    hash TEXT PRIMARY KEY,
    word TEXT NOT NULL,
    reading TEXT NOT NULL DEFAULT '',
    meaning TEXT NOT NULL DEFAULT '',
    example TEXT NOT NULL DEFAULT '',
    favorite INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- A 'schedules' row exists only once a card has been reviewed.
CREATE TABLE IF NOT EXISTS schedules (
    card_hash TEXT PRIMARY KEY,
    interval_days INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    ease_factor REAL NOT NULL,
    streak INTEGER NOT NULL,
    total_reviews INTEGER NOT NULL,
    last_reviewed_at DATETIME,
    next_review_at DATETIME,

    FOREIGN KEY(card_hash) REFERENCES cards(hash) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_hash TEXT NOT NULL,
    reviewed_at DATETIME NOT NULL,
    correct INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL,

    FOREIGN KEY(card_hash) REFERENCES cards(hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);
CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_hash, reviewed_at);
`
