package store

import (
	"database/sql"
	"errors"
)

// Card positions within a peer's price deck.
const (
	CardInDeck    = 0
	CardInPlay    = 1
	CardDiscarded = 2
)

// Card is one price card of a peer's exploration deck.
type Card struct {
	ID           int64
	Price        int
	Lifetime     int
	EarningsMsat int64
}

// InPlayCard returns the peer's in-play card, or false when none is in
// play. At most one card is in play per peer at any time.
func (s *Store) InPlayCard(nodeID string) (Card, bool, error) {
	var c Card
	err := s.db.QueryRow(
		`SELECT id, price, lifetime, earnings_msat FROM price_theory_cards
		 WHERE counterparty_node_id = ? AND position = ? LIMIT 1`,
		nodeID, CardInPlay,
	).Scan(&c.ID, &c.Price, &c.Lifetime, &c.EarningsMsat)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, false, nil
	}
	if err != nil {
		return Card{}, false, err
	}
	return c, true, nil
}

// NextDeckCard returns the deck card with the lowest shuffle order, or
// false when the deck is empty.
func (s *Store) NextDeckCard(nodeID string) (Card, bool, error) {
	var c Card
	err := s.db.QueryRow(
		`SELECT id, price, lifetime, earnings_msat FROM price_theory_cards
		 WHERE counterparty_node_id = ? AND position = ?
		 ORDER BY deck_order ASC LIMIT 1`,
		nodeID, CardInDeck,
	).Scan(&c.ID, &c.Price, &c.Lifetime, &c.EarningsMsat)
	if errors.Is(err, sql.ErrNoRows) {
		return Card{}, false, nil
	}
	if err != nil {
		return Card{}, false, err
	}
	return c, true, nil
}

// PlayCard flips a card to in-play and resets its lifetime.
func (s *Store) PlayCard(id int64, lifetime int) error {
	_, err := s.db.Exec(
		"UPDATE price_theory_cards SET position = ?, lifetime = ? WHERE id = ?",
		CardInPlay, lifetime, id,
	)
	return err
}

// DiscardCard moves a card to the discard pile with zero lifetime.
func (s *Store) DiscardCard(id int64) error {
	_, err := s.db.Exec(
		"UPDATE price_theory_cards SET position = ?, lifetime = 0 WHERE id = ?",
		CardDiscarded, id,
	)
	return err
}

// DecrementCardLifetime takes one tick off a card's remaining lifetime.
func (s *Store) DecrementCardLifetime(id int64) error {
	_, err := s.db.Exec(
		"UPDATE price_theory_cards SET lifetime = lifetime - 1 WHERE id = ?", id,
	)
	return err
}

// AddCardEarnings credits forwarding fees to the peer's in-play card.
func (s *Store) AddCardEarnings(nodeID string, feeMsat int64) error {
	_, err := s.db.Exec(
		`UPDATE price_theory_cards SET earnings_msat = earnings_msat + ?
		 WHERE counterparty_node_id = ? AND position = ?`,
		feeMsat, nodeID, CardInPlay,
	)
	return err
}

// BestDiscardedPrice returns the price of the discarded card with the
// highest earnings. Ties resolve to the lowest row id.
func (s *Store) BestDiscardedPrice(nodeID string) (int, bool, error) {
	var price int
	err := s.db.QueryRow(
		`SELECT price FROM price_theory_cards
		 WHERE counterparty_node_id = ? AND position = ?
		 ORDER BY earnings_msat DESC, id ASC LIMIT 1`,
		nodeID, CardDiscarded,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

// CardCount counts all of a peer's cards regardless of position.
func (s *Store) CardCount(nodeID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM price_theory_cards WHERE counterparty_node_id = ?",
		nodeID,
	).Scan(&n)
	return n, err
}

// CountCardsAt counts a peer's cards at one position.
func (s *Store) CountCardsAt(nodeID string, position int) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM price_theory_cards WHERE counterparty_node_id = ? AND position = ?",
		nodeID, position,
	).Scan(&n)
	return n, err
}

// DeleteCards drops every card of a peer, used at end of round.
func (s *Store) DeleteCards(nodeID string) error {
	_, err := s.db.Exec(
		"DELETE FROM price_theory_cards WHERE counterparty_node_id = ?", nodeID,
	)
	return err
}

// InsertCard adds a fresh deck card at the given shuffle order.
func (s *Store) InsertCard(nodeID string, deckOrder, price, lifetime int) error {
	_, err := s.db.Exec(
		`INSERT INTO price_theory_cards
		 (counterparty_node_id, position, deck_order, price, lifetime, earnings_msat)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		nodeID, CardInDeck, deckOrder, price, lifetime,
	)
	return err
}

// SetCenter upserts a peer's center price.
func (s *Store) SetCenter(nodeID string, price int) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO price_theory_center (counterparty_node_id, price) VALUES (?, ?)",
		nodeID, price,
	)
	return err
}

// EnsureCenter inserts a zero center price if none exists yet.
func (s *Store) EnsureCenter(nodeID string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO price_theory_center (counterparty_node_id, price) VALUES (?, 0)",
		nodeID,
	)
	return err
}

// Center returns a peer's center price, defaulting to zero.
func (s *Store) Center(nodeID string) (int, error) {
	var price int
	err := s.db.QueryRow(
		"SELECT price FROM price_theory_center WHERE counterparty_node_id = ?",
		nodeID,
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return price, err
}
