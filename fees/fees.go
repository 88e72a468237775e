// Package fees sets per-channel forwarding fees from two composable
// signals: the channel's balance position and a learned per-peer price
// level.
package fees

import (
	"context"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Run evaluates every usable channel, applies any fee change, and
// advances the price game one tick.
func Run(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot) error {

	usable := snap.UsableChannels()
	if len(usable) == 0 {
		log.Debugf("Fee management: no usable channels")
		return nil
	}
	log.Infof("Fee management: evaluating %d usable channels", len(usable))

	for _, channel := range usable {
		if channel.ChannelValueSats == 0 {
			continue
		}

		ourRatio := float64(channel.OutboundCapacityMsat) /
			(float64(channel.ChannelValueSats) * 1000.0)

		balanceMult := 1.0
		if cfg.Fees.BalanceModderEnabled {
			balanceMult = BinnedRatio(ourRatio, channel.ChannelValueSats,
				cfg.Fees.PreferredBinSizeSats)
		}

		priceMult := 1.0
		if cfg.Fees.PriceTheoryEnabled {
			var err error
			priceMult, err = FeeModifier(st, channel.CounterpartyNodeID)
			if err != nil {
				return err
			}
		}

		combined := balanceMult * priceMult
		baseMsat := uint32(float64(cfg.Fees.DefaultBaseMsat) * combined)
		ppm := clampPPM(uint32(float64(cfg.Fees.DefaultPPM) * combined))

		if err := applyIfChanged(ctx, cfg, client, channel, baseMsat, ppm); err != nil {
			return err
		}
	}

	if cfg.Fees.PriceTheoryEnabled {
		peerIDs := make([]string, 0, len(usable))
		for _, channel := range usable {
			peerIDs = append(peerIDs, channel.CounterpartyNodeID)
		}
		return Tick(st, peerIDs, &cfg.Fees)
	}
	return nil
}

func clampPPM(ppm uint32) uint32 {
	if ppm < 1 {
		return 1
	}
	if ppm > config.AbsMaxFeePPM {
		return config.AbsMaxFeePPM
	}
	return ppm
}

// applyIfChanged pushes a channel config update only when the target
// fees differ from the current ones. Fields this daemon does not
// manage are carried over untouched.
func applyIfChanged(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	channel *ldkrpc.Channel, newBaseMsat, newPPM uint32) error {

	currentBase := channel.Config.BaseMsat()
	currentPPM := channel.Config.PPM()
	if currentBase == newBaseMsat && currentPPM == newPPM {
		log.Debugf("Fee setter: channel %s unchanged (base=%dmsat, ppm=%d)",
			channel.ChannelID, newBaseMsat, newPPM)
		return nil
	}

	log.Infof("Fee setter: channel %s with %s -- base: %d->%dmsat, ppm: %d->%d",
		channel.ChannelID, channel.CounterpartyNodeID,
		currentBase, newBaseMsat, currentPPM, newPPM)

	if cfg.General.DryRun {
		log.Infof("  (dry-run: not applying)")
		return nil
	}

	newConfig := &ldkrpc.ChannelConfig{
		ForwardingFeeBaseMsat:               &newBaseMsat,
		ForwardingFeeProportionalMillionths: &newPPM,
	}
	if current := channel.Config; current != nil {
		newConfig.CltvExpiryDelta = current.CltvExpiryDelta
		newConfig.ForceCloseAvoidanceMaxFeeSatoshis = current.ForceCloseAvoidanceMaxFeeSatoshis
		newConfig.AcceptUnderpayingHTLCs = current.AcceptUnderpayingHTLCs
		newConfig.MaxDustHTLCExposure = current.MaxDustHTLCExposure
	}

	return client.UpdateChannelConfig(ctx, &ldkrpc.UpdateChannelConfigRequest{
		UserChannelID:      channel.UserChannelID,
		CounterpartyNodeID: channel.CounterpartyNodeID,
		Config:             newConfig,
	})
}
