// Package rebalancer shifts liquidity from outbound-heavy channels to
// drained ones with circular self-payments, spending routing fees only
// where the forwarding history has shown the liquidity earns them back.
package rebalancer

import (
	"context"
	"sort"
	"time"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Hard cap on rebalance fees per cycle, in sats.
const absMaxRebalanceFeeSats = 50_000

// Share of source/destination pairs rebalanced per run.
const topRebalancingPercentile = 20.0

type channelBalance struct {
	counterpartyNodeID string
	channelID          string
	spendableMsat      uint64
	totalMsat          uint64
	spendablePercent   float64
}

// Run classifies usable channels into liquidity sources and
// destinations, pairs the best earners and executes circular
// rebalances within the fee budget.
func Run(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot) error {

	usable := snap.UsableChannels()
	if len(usable) < 2 {
		log.Debugf("Rebalancer: need at least 2 usable channels")
		return nil
	}

	maxSpendable := cfg.Rebalancer.MaxSpendablePercent
	sourceGap := cfg.Rebalancer.SourceGapPercent
	targetPct := cfg.Rebalancer.TargetSpendablePercent

	balances := make([]channelBalance, 0, len(usable))
	for _, ch := range usable {
		totalMsat := ch.ChannelValueSats * 1000
		if totalMsat == 0 {
			continue
		}
		balances = append(balances, channelBalance{
			counterpartyNodeID: ch.CounterpartyNodeID,
			channelID:          ch.ChannelID,
			spendableMsat:      ch.OutboundCapacityMsat,
			totalMsat:          totalMsat,
			spendablePercent:   float64(ch.OutboundCapacityMsat) / float64(totalMsat) * 100.0,
		})
	}

	since := float64(time.Now().Unix()) - 30.0*86400.0

	type ranked struct {
		idx      int
		earnings int64
	}
	var destinations, sources []ranked

	for i, bal := range balances {
		pe, err := st.PeerEarningsSince(bal.counterpartyNodeID, since)
		if err != nil {
			return err
		}
		if bal.spendablePercent < maxSpendable {
			destinations = append(destinations, ranked{i, pe.OutNet()})
		} else if bal.spendablePercent > maxSpendable+sourceGap {
			sources = append(sources, ranked{i, pe.InNet()})
		}
	}

	if len(destinations) == 0 || len(sources) == 0 {
		log.Debugf("Rebalancer: nothing to do (no source/destination pairs)")
		return nil
	}

	sort.SliceStable(destinations, func(i, j int) bool {
		return destinations[i].earnings > destinations[j].earnings
	})
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].earnings > sources[j].earnings
	})

	num := len(destinations)
	if len(sources) < num {
		num = len(sources)
	}
	numRebalance := int(float64(num) * topRebalancingPercentile / 100.0)
	if numRebalance < 1 {
		numRebalance = 1
	}

	maxTotalFee := cfg.Rebalancer.MaxTotalFeeSats
	if maxTotalFee > absMaxRebalanceFeeSats {
		maxTotalFee = absMaxRebalanceFeeSats
	}
	var totalFeeSpent uint64

	for i := 0; i < numRebalance; i++ {
		dst := &balances[destinations[i].idx]
		src := &balances[sources[i].idx]
		dstEarnings := destinations[i].earnings

		// Sorted descending, so everything after is worse.
		if dstEarnings <= 0 {
			log.Infof("Rebalancer: peer %s has negative net earnings (%dmsat), skipping",
				dst.counterpartyNodeID, dstEarnings)
			break
		}

		destTargetMsat := uint64(float64(dst.totalMsat) * targetPct / 100.0)
		destNeededMsat := saturatingSub(destTargetMsat, dst.spendableMsat)

		srcMinAllowedMsat := uint64(float64(src.totalMsat) * (maxSpendable + sourceGap) / 100.0)
		srcBudgetMsat := saturatingSub(src.spendableMsat, srcMinAllowedMsat)

		amountMsat := destNeededMsat
		if srcBudgetMsat < amountMsat {
			amountMsat = srcBudgetMsat
		}
		if amountMsat == 0 {
			continue
		}

		feeBudgetMsat := uint64(float64(amountMsat) * float64(cfg.Rebalancer.MaxFeePPM) / 1_000_000.0)
		if uint64(dstEarnings) < feeBudgetMsat {
			feeBudgetMsat = uint64(dstEarnings)
		}
		if remaining := saturatingSub(maxTotalFee*1000, totalFeeSpent); remaining < feeBudgetMsat {
			feeBudgetMsat = remaining
		}
		if feeBudgetMsat == 0 {
			continue
		}

		log.Infof("Rebalancer: %s -> %s (%d msat), max fee %d msat",
			src.counterpartyNodeID, dst.counterpartyNodeID, amountMsat, feeBudgetMsat)

		if cfg.General.DryRun {
			log.Infof("  (dry-run: not executing)")
			continue
		}

		feePaid, err := executeRebalance(ctx, client, amountMsat, feeBudgetMsat)
		if err != nil {
			log.Warnf("Rebalancer: failed: %v", err)
			continue
		}
		totalFeeSpent += feePaid
		log.Infof("Rebalancer: success, fee paid: %d msat", feePaid)

		bucket := store.DayBucket(float64(time.Now().Unix()))
		if err := st.AddRebalanceCost(src.channelID, src.counterpartyNodeID,
			bucket, int64(feePaid), int64(amountMsat), store.DirectionOut); err != nil {
			return err
		}
	}
	return nil
}

// executeRebalance creates a self-invoice and pays it back to
// ourselves over a different path. The fee budget is recorded as the
// fee paid since the send response does not report the actual routing
// fee, which keeps the budget accounting conservative.
// TODO: query the payment after settlement for the exact fee.
func executeRebalance(ctx context.Context, client ldkrpc.Client,
	amountMsat, maxFeeMsat uint64) (uint64, error) {

	invoice, err := client.Bolt11Receive(ctx, &ldkrpc.Bolt11ReceiveRequest{
		AmountMsat:  &amountMsat,
		Description: "ldk-boss rebalance",
		ExpirySecs:  600,
	})
	if err != nil {
		return 0, err
	}

	_, err = client.Bolt11Send(ctx, &ldkrpc.Bolt11SendRequest{
		Invoice: invoice.Invoice,
		RouteParameters: &ldkrpc.RouteParameters{
			MaxTotalRoutingFeeMsat:          &maxFeeMsat,
			MaxTotalCltvExpiryDelta:         1008,
			MaxPathCount:                    3,
			MaxChannelSaturationPowerOfHalf: 2,
		},
	})
	if err != nil {
		return 0, err
	}
	return maxFeeMsat, nil
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
