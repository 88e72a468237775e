// Package tracker keeps the history store in sync with the live node:
// channel lifecycle, forwarded-payment earnings and on-chain feerates.
package tracker

import (
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// UpdateChannels diffs the snapshot's channel list against tracked
// history, recording first-seen and closed channels.
func UpdateChannels(st *store.Store, snap *state.Snapshot) error {
	seen := make([]store.SeenChannel, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		seen = append(seen, store.SeenChannel{
			ChannelID:          ch.ChannelID,
			UserChannelID:      ch.UserChannelID,
			CounterpartyNodeID: ch.CounterpartyNodeID,
			ValueSats:          ch.ChannelValueSats,
		})
	}

	opened, closed, err := st.ApplyChannelSnapshot(seen)
	if err != nil {
		return err
	}
	for _, id := range opened {
		log.Infof("Tracking new channel %s", id)
	}
	for _, id := range closed {
		log.Infof("Channel %s is gone, marked closed", id)
	}
	return nil
}
