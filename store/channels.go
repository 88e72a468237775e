package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SeenChannel is the lifecycle-relevant slice of a channel snapshot.
type SeenChannel struct {
	ChannelID          string
	UserChannelID      string
	CounterpartyNodeID string
	ValueSats          uint64
}

// ApplyChannelSnapshot diffs the snapshot against known-open history in
// one transaction: new channels are inserted open, present ones bump
// last_seen, and known-open channels absent from the snapshot are
// marked closed. Returns the ids of newly seen and newly closed
// channels.
func (s *Store) ApplyChannelSnapshot(channels []SeenChannel) (opened, closed []string, err error) {
	now := s.now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	knownOpen := make(map[string]struct{})
	rows, err := tx.Query("SELECT channel_id FROM channel_history WHERE is_open = 1")
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, nil, err
		}
		knownOpen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		seen[ch.ChannelID] = struct{}{}

		if _, ok := knownOpen[ch.ChannelID]; ok {
			_, err = tx.Exec(
				"UPDATE channel_history SET last_seen_at = ? WHERE channel_id = ?",
				now, ch.ChannelID,
			)
		} else {
			opened = append(opened, ch.ChannelID)
			_, err = tx.Exec(
				`INSERT OR REPLACE INTO channel_history
				 (channel_id, user_channel_id, counterparty_node_id,
				  channel_value_sats, first_seen_at, last_seen_at, is_open)
				 VALUES (?, ?, ?, ?, ?, ?, 1)`,
				ch.ChannelID, ch.UserChannelID, ch.CounterpartyNodeID,
				ch.ValueSats, now, now,
			)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	for id := range knownOpen {
		if _, ok := seen[id]; ok {
			continue
		}
		closed = append(closed, id)
		if _, err = tx.Exec(
			"UPDATE channel_history SET is_open = 0, last_seen_at = ? WHERE channel_id = ?",
			now, id,
		); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return opened, closed, nil
}

// ChannelAgeDays returns the age of a known channel in days, or false
// when the channel has never been seen.
func (s *Store) ChannelAgeDays(channelID string) (float64, bool, error) {
	var firstSeen float64
	err := s.db.QueryRow(
		"SELECT first_seen_at FROM channel_history WHERE channel_id = ?",
		channelID,
	).Scan(&firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return (s.now() - firstSeen) / 86400.0, true, nil
}

// OpenChannelCount counts channels currently tracked as open.
func (s *Store) OpenChannelCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM channel_history WHERE is_open = 1",
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open channels: %w", err)
	}
	return n, nil
}

// ChannelIsOpen reports the tracked open flag for a channel id.
func (s *Store) ChannelIsOpen(channelID string) (bool, error) {
	var open bool
	err := s.db.QueryRow(
		"SELECT is_open FROM channel_history WHERE channel_id = ?",
		channelID,
	).Scan(&open)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return open, err
}
