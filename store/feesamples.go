package store

import (
	"database/sql"
	"errors"
)

// feeSampleRetention is how long fee samples are kept.
const feeSampleRetention = 7.0 * 86400.0

// AddFeeSample records an on-chain feerate sample at the current time
// and prunes samples beyond the retention window.
func (s *Store) AddFeeSample(feerateSatPerVB float64) error {
	now := s.now()
	if _, err := s.db.Exec(
		"INSERT INTO onchain_fee_samples (feerate_sat_per_vb, sampled_at) VALUES (?, ?)",
		feerateSatPerVB, now,
	); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"DELETE FROM onchain_fee_samples WHERE sampled_at < ?",
		now-feeSampleRetention,
	)
	return err
}

// AddFeeSampleAt records a sample with an explicit timestamp, used to
// seed history in tests.
func (s *Store) AddFeeSampleAt(feerateSatPerVB, sampledAt float64) error {
	_, err := s.db.Exec(
		"INSERT INTO onchain_fee_samples (feerate_sat_per_vb, sampled_at) VALUES (?, ?)",
		feerateSatPerVB, sampledAt,
	)
	return err
}

// FeeSampleRatesAsc returns every stored feerate sorted ascending.
func (s *Store) FeeSampleRatesAsc() ([]float64, error) {
	rows, err := s.db.Query(
		"SELECT feerate_sat_per_vb FROM onchain_fee_samples ORDER BY feerate_sat_per_vb ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// LatestFeeSampleRate returns the most recently sampled feerate, or
// false when no samples exist.
func (s *Store) LatestFeeSampleRate() (float64, bool, error) {
	var rate float64
	err := s.db.QueryRow(
		"SELECT feerate_sat_per_vb FROM onchain_fee_samples ORDER BY sampled_at DESC LIMIT 1",
	).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

// FeeSampleCount counts stored samples.
func (s *Store) FeeSampleCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM onchain_fee_samples").Scan(&n)
	return n, err
}
