package judge

import (
	"context"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// ExecuteClosure closes one channel of the recommended peer, smallest
// first to limit the downside of a bad verdict. Close failures are
// logged but never propagate; the next cycle re-evaluates.
func ExecuteClosure(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot, rec *CloseRecommendation) error {

	var peerChannels []*ldkrpc.Channel
	for _, ch := range snap.Channels {
		if ch.CounterpartyNodeID == rec.CounterpartyNodeID && ch.IsUsable {
			peerChannels = append(peerChannels, ch)
		}
	}
	if len(peerChannels) == 0 {
		log.Infof("Judge: peer %s has no usable channels to close",
			rec.CounterpartyNodeID)
		return nil
	}

	channel := peerChannels[0]
	for _, ch := range peerChannels[1:] {
		if ch.ChannelValueSats < channel.ChannelValueSats {
			channel = ch
		}
	}

	log.Infof("Judge: closing channel %s with peer %s (%d sat) -- %s",
		channel.ChannelID, rec.CounterpartyNodeID, channel.ChannelValueSats,
		rec.Reason)

	if cfg.General.DryRun {
		log.Infof("  (dry-run: not executing)")
		return nil
	}

	var err error
	if cfg.Judge.CooperativeClose {
		err = client.CloseChannel(ctx, &ldkrpc.CloseChannelRequest{
			UserChannelID:      channel.UserChannelID,
			CounterpartyNodeID: channel.CounterpartyNodeID,
		})
	} else {
		reason := rec.Reason
		err = client.ForceCloseChannel(ctx, &ldkrpc.ForceCloseChannelRequest{
			UserChannelID:      channel.UserChannelID,
			CounterpartyNodeID: channel.CounterpartyNodeID,
			ForceCloseReason:   &reason,
		})
	}
	if err != nil {
		log.Errorf("Judge: failed to close channel %s with %s: %v",
			channel.ChannelID, rec.CounterpartyNodeID, err)
		return nil
	}

	log.Infof("Judge: successfully closed channel %s with %s",
		channel.ChannelID, rec.CounterpartyNodeID)
	return st.RecordJudgeClosure(channel.ChannelID, rec.CounterpartyNodeID, rec.Reason)
}
