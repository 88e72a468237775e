package judge

import (
	"fmt"
	"sort"
)

// PeerInfo is a peer's aggregated channel performance.
type PeerInfo struct {
	CounterpartyNodeID string
	TotalChannelSats   uint64
	TotalEarnedMsat    int64
}

// CloseRecommendation says a peer's capacity would earn more elsewhere.
type CloseRecommendation struct {
	CounterpartyNodeID      string
	Reason                  string
	ExpectedImprovementMsat int64
}

// Judge rates each peer by earnings per unit of capacity and
// recommends closing those below the capacity-weighted median, but
// only when the expected improvement still clears the cost of opening
// a replacement channel. Worst offenders come first.
func Judge(peers []PeerInfo, reopenCostSats uint64) []CloseRecommendation {
	if len(peers) == 0 {
		return nil
	}

	type ratedPeer struct {
		idx  int
		rate float64
	}
	var rated []ratedPeer
	for i, p := range peers {
		if p.TotalChannelSats == 0 {
			continue
		}
		rate := float64(p.TotalEarnedMsat) / (float64(p.TotalChannelSats) * 1000.0)
		rated = append(rated, ratedPeer{i, rate})
	}
	if len(rated) == 0 {
		return nil
	}

	sort.SliceStable(rated, func(i, j int) bool {
		return rated[i].rate < rated[j].rate
	})

	weighted := make([][2]float64, len(rated))
	for i, r := range rated {
		weighted[i] = [2]float64{r.rate, float64(peers[r.idx].TotalChannelSats)}
	}
	medianRate := weightedMedian(weighted)
	log.Debugf("Judge: weighted median earning rate = %.6f msat/sat", medianRate)

	reopenCostMsat := int64(reopenCostSats * 1000)

	var recommendations []CloseRecommendation
	for _, r := range rated {
		if r.rate >= medianRate {
			continue
		}
		peer := &peers[r.idx]

		expectedEarnings := int64(medianRate * float64(peer.TotalChannelSats) * 1000.0)
		improvement := expectedEarnings - peer.TotalEarnedMsat - reopenCostMsat
		if improvement <= 0 {
			continue
		}

		log.Debugf("Judge: peer %s rate=%.6f, expected=%d, actual=%d, improvement=%dmsat",
			peer.CounterpartyNodeID, r.rate, expectedEarnings,
			peer.TotalEarnedMsat, improvement)
		recommendations = append(recommendations, CloseRecommendation{
			CounterpartyNodeID: peer.CounterpartyNodeID,
			Reason: fmt.Sprintf("Underperforming: earned %d msat vs expected %d msat "+
				"(improvement: %d msat after %d sat reopen cost)",
				peer.TotalEarnedMsat, expectedEarnings, improvement, reopenCostSats),
			ExpectedImprovementMsat: improvement,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].ExpectedImprovementMsat > recommendations[j].ExpectedImprovementMsat
	})
	return recommendations
}

// weightedMedian computes the weighted median of value/weight pairs
// sorted ascending by value.
func weightedMedian(data [][2]float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	if len(data) == 1 {
		return data[0][0]
	}

	var totalWeight float64
	for _, d := range data {
		totalWeight += d[1]
	}
	half := totalWeight / 2.0

	var cumulative float64
	for _, d := range data {
		cumulative += d[1]
		if cumulative >= half {
			return d[0]
		}
	}
	return data[len(data)-1][0]
}
