package store

import (
	"database/sql"
	"errors"
)

// Well-known keys in the sync_state and run_state tables.
const (
	SyncKeyForwardedPaymentsToken = "forwarded_payments_token"
	RunKeyFeeRegime               = "fee_regime"
)

// SyncState reads a sync-state value, returning false when unset.
func (s *Store) SyncState(key string) (string, bool, error) {
	return s.kvGet("sync_state", key)
}

// SetSyncState upserts a sync-state value.
func (s *Store) SetSyncState(key, value string) error {
	return s.kvSet("sync_state", key, value)
}

// RunState reads a run-state value, returning false when unset.
func (s *Store) RunState(key string) (string, bool, error) {
	return s.kvGet("run_state", key)
}

// SetRunState upserts a run-state value.
func (s *Store) SetRunState(key, value string) error {
	return s.kvSet("run_state", key, value)
}

func (s *Store) kvGet(table, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM "+table+" WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) kvSet(table, key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO "+table+" (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// SavePeerAddress records the address a peer was last reached at,
// overwriting any previous entry and stamping last_connected_at.
func (s *Store) SavePeerAddress(nodeID, address, source string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO peer_addresses (node_id, address, last_connected_at, source)
		 VALUES (?, ?, ?, ?)`,
		nodeID, address, s.now(), source,
	)
	return err
}

// SeedPeerAddress inserts an address only when the peer is unknown, so
// learned addresses are never clobbered by static seeds.
func (s *Store) SeedPeerAddress(nodeID, address, source string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO peer_addresses (node_id, address, source) VALUES (?, ?, ?)",
		nodeID, address, source,
	)
	return err
}

// PeerAddress looks up the stored address for a node id.
func (s *Store) PeerAddress(nodeID string) (string, bool, error) {
	var addr string
	err := s.db.QueryRow(
		"SELECT address FROM peer_addresses WHERE node_id = ?", nodeID,
	).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return addr, true, nil
}

// TouchPeerConnected stamps a successful connection to a known peer.
func (s *Store) TouchPeerConnected(nodeID string) error {
	_, err := s.db.Exec(
		"UPDATE peer_addresses SET last_connected_at = ? WHERE node_id = ?",
		s.now(), nodeID,
	)
	return err
}

// PeerAddressCount counts stored peer addresses.
func (s *Store) PeerAddressCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM peer_addresses").Scan(&n)
	return n, err
}
