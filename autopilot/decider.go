package autopilot

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
	"github.com/joemphilips/ldkboss/tracker"
)

// ShouldOpen decides whether conditions allow opening channels and
// returns the spendable budget in sats when they do. On-chain funds
// are deployed freely in a low-fee regime; in a high-fee regime only
// excess beyond the target on-chain share is deployed. The consulted
// regime is persisted for hysteresis.
func ShouldOpen(cfg *config.Config, st *store.Store, snap *state.Snapshot) (uint64, bool, error) {
	onchain := snap.Balances.SpendableOnchainBalanceSats
	reserve := cfg.Autopilot.OnchainReserveSats

	if onchain <= reserve {
		log.Debugf("Autopilot decider: on-chain balance (%v) <= reserve (%v)",
			btcutil.Amount(onchain), btcutil.Amount(reserve))
		return 0, false, nil
	}

	available := onchain - reserve
	if available < cfg.Autopilot.MinChannelSats {
		log.Debugf("Autopilot decider: available (%v) < min channel size (%v)",
			btcutil.Amount(available), btcutil.Amount(cfg.Autopilot.MinChannelSats))
		return 0, false, nil
	}

	if snap.TotalFundsSats() == 0 {
		log.Debugf("Autopilot decider: no funds at all")
		return 0, false, nil
	}

	onchainPct := snap.OnchainPercent()
	if onchainPct < cfg.Autopilot.MinOnchainPercent {
		log.Debugf("Autopilot decider: on-chain %.1f%% < min %.1f%%, "+
			"preserving on-chain funds", onchainPct, cfg.Autopilot.MinOnchainPercent)
		return 0, false, nil
	}

	regime, err := tracker.CurrentRegime(st,
		cfg.OnchainFees.HiToLoPercentile, cfg.OnchainFees.LoToHiPercentile)
	if err != nil {
		return 0, false, err
	}
	if err := tracker.SaveRegime(st, regime); err != nil {
		return 0, false, err
	}

	if regime == tracker.FeeRegimeLow {
		log.Infof("Autopilot decider: low-fee regime, deploying %v",
			btcutil.Amount(available))
		return available, true, nil
	}

	if onchainPct > cfg.Autopilot.MaxOnchainPercent {
		log.Infof("Autopilot decider: high-fee regime but on-chain %.1f%% > "+
			"max %.1f%%, deploying %v", onchainPct,
			cfg.Autopilot.MaxOnchainPercent, btcutil.Amount(available))
		return available, true, nil
	}

	log.Debugf("Autopilot decider: high-fee regime and on-chain %.1f%% <= "+
		"max %.1f%%, waiting", onchainPct, cfg.Autopilot.MaxOnchainPercent)
	return 0, false, nil
}
