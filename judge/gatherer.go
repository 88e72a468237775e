package judge

import (
	"time"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Gather collects performance data per peer. Peers whose oldest usable
// channel is younger than the configured minimum age are excluded so
// fresh channels get time to prove themselves.
func Gather(cfg *config.Config, st *store.Store, snap *state.Snapshot) ([]PeerInfo, error) {
	minAge := float64(cfg.Judge.MinAgeDays)
	since := float64(time.Now().Unix()) - float64(cfg.Judge.EvaluationWindowDays)*86400.0

	var infos []PeerInfo
	for peerID, channels := range snap.ChannelsByPeer() {
		var usable []*ldkrpc.Channel
		for _, ch := range channels {
			if ch.IsUsable {
				usable = append(usable, ch)
			}
		}
		if len(usable) == 0 {
			continue
		}

		var oldestAge float64
		for _, ch := range usable {
			age, ok, err := st.ChannelAgeDays(ch.ChannelID)
			if err != nil {
				return nil, err
			}
			if ok && age > oldestAge {
				oldestAge = age
			}
		}
		if oldestAge < minAge {
			log.Debugf("Judge gatherer: peer %s channel age %.0f days < min %.0f days, skipping",
				peerID, oldestAge, minAge)
			continue
		}

		var totalSats uint64
		for _, ch := range usable {
			totalSats += ch.ChannelValueSats
		}

		pe, err := st.PeerEarningsSince(peerID, since)
		if err != nil {
			return nil, err
		}

		infos = append(infos, PeerInfo{
			CounterpartyNodeID: peerID,
			TotalChannelSats:   totalSats,
			TotalEarnedMsat:    pe.TotalNet(),
		})
	}

	log.Debugf("Judge gatherer: %d peers eligible for evaluation", len(infos))
	return infos, nil
}
