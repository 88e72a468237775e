package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/store"
)

// FeeRegime classifies current on-chain fees. Low fees are favorable
// for channel operations.
type FeeRegime int

const (
	FeeRegimeLow FeeRegime = iota
	FeeRegimeHigh
)

// String implements fmt.Stringer, matching the run_state encoding.
func (r FeeRegime) String() string {
	if r == FeeRegimeLow {
		return "low"
	}
	return "high"
}

const mempoolFetchTimeout = 10 * time.Second

type mempoolFees struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

// SampleOnchainFees polls the fee estimator and records one sample.
// Fetch failures are logged and skipped so a flaky estimator never
// stalls the control loop.
func SampleOnchainFees(ctx context.Context, st *store.Store, cfg *config.OnchainFees) error {
	if cfg.Provider == "none" {
		log.Debugf("On-chain fee provider disabled")
		return nil
	}

	feerate, err := fetchMempoolFee(ctx, cfg.MempoolAPIURL)
	if err != nil {
		log.Warnf("Failed to fetch on-chain fees from mempool.space: %v", err)
		return nil
	}

	if err := st.AddFeeSample(feerate); err != nil {
		return err
	}
	log.Debugf("On-chain fee sample: %.1f sat/vB", feerate)
	return nil
}

// CurrentRegime classifies the latest sample against percentiles of
// the sample history, with hysteresis between the two thresholds: a
// fee below the hiToLo percentile means Low, above loToHi means High,
// in between the previously saved regime stands. With no history the
// regime is High so the autopilot stays conservative.
func CurrentRegime(st *store.Store, hiToLoPct, loToHiPct float64) (FeeRegime, error) {
	feerates, err := st.FeeSampleRatesAsc()
	if err != nil {
		return FeeRegimeHigh, err
	}
	if len(feerates) == 0 {
		return FeeRegimeHigh, nil
	}
	n := len(feerates)

	latest, _, err := st.LatestFeeSampleRate()
	if err != nil {
		return FeeRegimeHigh, err
	}

	loIdx := int(hiToLoPct / 100.0 * float64(n))
	hiIdx := int(loToHiPct / 100.0 * float64(n))
	loThreshold := feerates[min(loIdx, n-1)]
	hiThreshold := feerates[min(hiIdx, n-1)]

	switch {
	case latest <= loThreshold:
		return FeeRegimeLow, nil
	case latest >= hiThreshold:
		return FeeRegimeHigh, nil
	}

	saved, ok, err := st.RunState(store.RunKeyFeeRegime)
	if err != nil {
		return FeeRegimeHigh, err
	}
	if ok && saved == "low" {
		return FeeRegimeLow, nil
	}
	return FeeRegimeHigh, nil
}

// SaveRegime persists the regime for the next hysteresis decision.
func SaveRegime(st *store.Store, regime FeeRegime) error {
	return st.SetRunState(store.RunKeyFeeRegime, regime.String())
}

func fetchMempoolFee(ctx context.Context, apiURL string) (float64, error) {
	url := fmt.Sprintf("%s/v1/fees/recommended", apiURL)

	ctx, cancel := context.WithTimeout(ctx, mempoolFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var fees mempoolFees
	if err := json.NewDecoder(resp.Body).Decode(&fees); err != nil {
		return 0, err
	}
	// The one-hour target is our moderate-urgency reference.
	return fees.HourFee, nil
}
