package database

// schemas maps database names to their embedded DDL. All statements are
// idempotent so Migrate can run on every startup.
var schemas = map[string]string{
	"ledger": ledgerSchema,
	"cache":  cacheSchema,
}

// ledgerSchema holds accounts, holdings and the append-only transaction
// history. Monetary amounts are stored as TEXT (decimal strings) to avoid
// float drift; timestamps are Unix seconds (UTC).
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         TEXT PRIMARY KEY,
    email      TEXT NOT NULL UNIQUE,
    username   TEXT NOT NULL,
    balance    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL REFERENCES accounts(id),
    symbol       TEXT NOT NULL,
    company_name TEXT NOT NULL,
    shares       TEXT NOT NULL,
    average_cost TEXT NOT NULL,
    purchased_at INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    UNIQUE (user_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_holdings_user ON holdings(user_id);

CREATE TABLE IF NOT EXISTS transactions (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES accounts(id),
    type       TEXT NOT NULL CHECK (type IN ('BUY', 'SELL')),
    symbol     TEXT NOT NULL,
    shares     TEXT NOT NULL,
    price      TEXT NOT NULL,
    total_cost TEXT NOT NULL,
    timestamp  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, timestamp DESC);
`

// cacheSchema holds the market-data cache, one table per kind. Payloads are
// JSON blobs with a Unix expires_at; rows are evicted lazily on read and by
// the daily cleanup job.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS quote_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS details_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS historical_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS search_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendation_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);
`
