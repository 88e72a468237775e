package store

import "fmt"

// Direction of a forwarded payment relative to a channel.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// AddEarning records forwarding income for one side of a hop. Rows are
// keyed by (channel, day bucket, direction); conflicts merge additively
// so backfilled history accumulates instead of overwriting.
func (s *Store) AddEarning(channelID, nodeID string, dayBucket int64,
	feeMsat, amountMsat int64, direction string) error {

	_, err := s.db.Exec(
		`INSERT INTO earnings (channel_id, counterparty_node_id, day_bucket,
		   fee_earned_msat, amount_forwarded_msat, direction)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, day_bucket, direction) DO UPDATE SET
		   fee_earned_msat = fee_earned_msat + excluded.fee_earned_msat,
		   amount_forwarded_msat = amount_forwarded_msat + excluded.amount_forwarded_msat`,
		channelID, nodeID, dayBucket, feeMsat, amountMsat, direction,
	)
	if err != nil {
		return fmt.Errorf("add earning for %s: %w", channelID, err)
	}
	return nil
}

// AddRebalanceCost records fees spent moving liquidity through a
// channel, same shape and merge behavior as AddEarning.
func (s *Store) AddRebalanceCost(channelID, nodeID string, dayBucket int64,
	feeMsat, amountMsat int64, direction string) error {

	_, err := s.db.Exec(
		`INSERT INTO rebalance_costs (channel_id, counterparty_node_id, day_bucket,
		   fee_spent_msat, amount_rebalanced_msat, direction)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, day_bucket, direction) DO UPDATE SET
		   fee_spent_msat = fee_spent_msat + excluded.fee_spent_msat,
		   amount_rebalanced_msat = amount_rebalanced_msat + excluded.amount_rebalanced_msat`,
		channelID, nodeID, dayBucket, feeMsat, amountMsat, direction,
	)
	if err != nil {
		return fmt.Errorf("add rebalance cost for %s: %w", channelID, err)
	}
	return nil
}

// ChannelEarningsSince sums a channel's fees and forwarded volume from
// the day bucket containing since onward.
func (s *Store) ChannelEarningsSince(channelID string, since float64) (feeMsat, amountMsat int64, err error) {
	bucket := DayBucket(since)
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(fee_earned_msat), 0), COALESCE(SUM(amount_forwarded_msat), 0)
		 FROM earnings WHERE channel_id = ? AND day_bucket >= ?`,
		channelID, bucket,
	).Scan(&feeMsat, &amountMsat)
	return feeMsat, amountMsat, err
}

// PeerEarnings aggregates directional earnings and rebalance spend for
// one counterparty.
type PeerEarnings struct {
	InEarningsMsat      int64
	OutEarningsMsat     int64
	InExpendituresMsat  int64
	OutExpendituresMsat int64
}

// InNet is inbound fees earned minus inbound rebalance spend.
func (e PeerEarnings) InNet() int64 {
	return e.InEarningsMsat - e.InExpendituresMsat
}

// OutNet is outbound fees earned minus outbound rebalance spend.
func (e PeerEarnings) OutNet() int64 {
	return e.OutEarningsMsat - e.OutExpendituresMsat
}

// TotalNet is the net across both directions.
func (e PeerEarnings) TotalNet() int64 {
	return e.InNet() + e.OutNet()
}

// PeerEarningsSince aggregates a peer's earnings and rebalance costs
// across all its channels from the day bucket containing since onward.
func (s *Store) PeerEarningsSince(nodeID string, since float64) (PeerEarnings, error) {
	bucket := DayBucket(since)
	var pe PeerEarnings

	sumEarnings := func(direction string) (int64, error) {
		var v int64
		err := s.db.QueryRow(
			`SELECT COALESCE(SUM(fee_earned_msat), 0) FROM earnings
			 WHERE counterparty_node_id = ? AND day_bucket >= ? AND direction = ?`,
			nodeID, bucket, direction,
		).Scan(&v)
		return v, err
	}
	sumCosts := func(direction string) (int64, error) {
		var v int64
		err := s.db.QueryRow(
			`SELECT COALESCE(SUM(fee_spent_msat), 0) FROM rebalance_costs
			 WHERE counterparty_node_id = ? AND day_bucket >= ? AND direction = ?`,
			nodeID, bucket, direction,
		).Scan(&v)
		return v, err
	}

	var err error
	if pe.InEarningsMsat, err = sumEarnings(DirectionIn); err != nil {
		return pe, err
	}
	if pe.OutEarningsMsat, err = sumEarnings(DirectionOut); err != nil {
		return pe, err
	}
	if pe.InExpendituresMsat, err = sumCosts(DirectionIn); err != nil {
		return pe, err
	}
	if pe.OutExpendituresMsat, err = sumCosts(DirectionOut); err != nil {
		return pe, err
	}
	return pe, nil
}

// NodeEarnings is one row of the top-earners ranking.
type NodeEarnings struct {
	NodeID          string
	TotalEarnedMsat int64
}

// TopEarningNodes ranks counterparties by total fees earned, highest
// first, limited to limit rows. Zero earners are excluded.
func (s *Store) TopEarningNodes(limit int) ([]NodeEarnings, error) {
	rows, err := s.db.Query(
		`SELECT counterparty_node_id, SUM(fee_earned_msat) AS total_earned
		 FROM earnings
		 GROUP BY counterparty_node_id
		 HAVING total_earned > 0
		 ORDER BY total_earned DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NodeEarnings
	for rows.Next() {
		var ne NodeEarnings
		if err := rows.Scan(&ne.NodeID, &ne.TotalEarnedMsat); err != nil {
			return nil, err
		}
		out = append(out, ne)
	}
	return out, rows.Err()
}

// TotalFeesEarnedMsat sums all recorded forwarding fees.
func (s *Store) TotalFeesEarnedMsat() (int64, error) {
	var v int64
	err := s.db.QueryRow(
		"SELECT COALESCE(SUM(fee_earned_msat), 0) FROM earnings",
	).Scan(&v)
	return v, err
}
