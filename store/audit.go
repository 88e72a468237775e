package store

// RecordAutopilotOpen appends a channel open to the audit trail.
func (s *Store) RecordAutopilotOpen(channelID, nodeID string, amountSats uint64, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO autopilot_opens (channel_id, counterparty_node_id, amount_sats, opened_at, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		channelID, nodeID, amountSats, s.now(), reason,
	)
	return err
}

// RecordJudgeClosure appends a channel closure to the audit trail.
func (s *Store) RecordJudgeClosure(channelID, nodeID, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO judge_closures (channel_id, counterparty_node_id, closed_at, reason)
		 VALUES (?, ?, ?, ?)`,
		channelID, nodeID, s.now(), reason,
	)
	return err
}

// AutopilotOpenCount counts audited channel opens.
func (s *Store) AutopilotOpenCount() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM autopilot_opens").Scan(&n)
	return n, err
}

// JudgeClosureCount counts audited channel closures.
func (s *Store) JudgeClosureCount() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM judge_closures").Scan(&n)
	return n, err
}
