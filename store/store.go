// Package store is the persistent history of the daemon: forwarding
// earnings, rebalance costs, channel lifecycle, on-chain fee samples,
// the price-game state, audit trails and sync cursors, all in one
// SQLite file. Access is single-writer; the control loop is the only
// writer by construction.
package store

import (
	"database/sql"
	"fmt"

	"github.com/lightningnetwork/lnd/clock"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle with typed queries. The injected clock
// stamps all rows so tests control time.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL journaling with normal synchronous commits is the
// single-writer durability model.
func Open(path string, clk clock.Clock) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)
	return open(dsn, clk)
}

// OpenInMemory opens a fresh in-memory database, used by tests.
func OpenInMemory(clk clock.Clock) (*Store, error) {
	return open("file::memory:?_pragma=foreign_keys(ON)", clk)
}

func open(dsn string, clk clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps writes serialized and makes the
	// in-memory database visible to every query.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clk}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// now returns the clock's time as floating-point unix seconds, the
// timestamp representation used throughout the schema.
func (s *Store) now() float64 {
	t := s.clock.Now()
	return float64(t.UnixNano()) / 1e9
}

// DayBucket truncates a unix timestamp to its UTC day boundary.
func DayBucket(timestampSecs float64) int64 {
	secs := int64(timestampSecs)
	return secs - (secs % 86400)
}

const schema = `
-- Forwarding earnings per channel, bucketed by day
CREATE TABLE IF NOT EXISTS earnings (
    channel_id TEXT NOT NULL,
    counterparty_node_id TEXT NOT NULL,
    day_bucket INTEGER NOT NULL,
    fee_earned_msat INTEGER NOT NULL DEFAULT 0,
    amount_forwarded_msat INTEGER NOT NULL DEFAULT 0,
    direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
    PRIMARY KEY (channel_id, day_bucket, direction)
);
CREATE INDEX IF NOT EXISTS idx_earnings_node_day
    ON earnings(counterparty_node_id, day_bucket);

-- Rebalancing expenditures per channel
CREATE TABLE IF NOT EXISTS rebalance_costs (
    channel_id TEXT NOT NULL,
    counterparty_node_id TEXT NOT NULL,
    day_bucket INTEGER NOT NULL,
    fee_spent_msat INTEGER NOT NULL DEFAULT 0,
    amount_rebalanced_msat INTEGER NOT NULL DEFAULT 0,
    direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
    PRIMARY KEY (channel_id, day_bucket, direction)
);

-- Channel lifecycle tracking
CREATE TABLE IF NOT EXISTS channel_history (
    channel_id TEXT NOT NULL PRIMARY KEY,
    user_channel_id TEXT NOT NULL,
    counterparty_node_id TEXT NOT NULL,
    channel_value_sats INTEGER NOT NULL,
    first_seen_at REAL NOT NULL,
    last_seen_at REAL NOT NULL,
    is_open INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_channel_history_node
    ON channel_history(counterparty_node_id);

-- Price theory card game: center price per peer
CREATE TABLE IF NOT EXISTS price_theory_center (
    counterparty_node_id TEXT PRIMARY KEY,
    price INTEGER NOT NULL DEFAULT 0
);

-- Price theory card game: individual cards
CREATE TABLE IF NOT EXISTS price_theory_cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    counterparty_node_id TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    deck_order INTEGER NOT NULL,
    price INTEGER NOT NULL,
    lifetime INTEGER NOT NULL,
    earnings_msat INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cards_node_pos
    ON price_theory_cards(counterparty_node_id, position, deck_order);

-- On-chain fee samples for fee regime detection
CREATE TABLE IF NOT EXISTS onchain_fee_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feerate_sat_per_vb REAL NOT NULL,
    sampled_at REAL NOT NULL
);

-- Channels opened by autopilot (audit trail)
CREATE TABLE IF NOT EXISTS autopilot_opens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id TEXT,
    counterparty_node_id TEXT NOT NULL,
    amount_sats INTEGER NOT NULL,
    opened_at REAL NOT NULL,
    reason TEXT
);

-- Channels closed by judge (audit trail)
CREATE TABLE IF NOT EXISTS judge_closures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id TEXT NOT NULL,
    counterparty_node_id TEXT NOT NULL,
    closed_at REAL NOT NULL,
    reason TEXT NOT NULL
);

-- Pagination cursor and other sync state
CREATE TABLE IF NOT EXISTS sync_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Known peer addresses for reconnection
CREATE TABLE IF NOT EXISTS peer_addresses (
    node_id TEXT NOT NULL PRIMARY KEY,
    address TEXT NOT NULL,
    last_connected_at REAL,
    source TEXT NOT NULL DEFAULT 'autopilot'
);

-- General run state
CREATE TABLE IF NOT EXISTS run_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
