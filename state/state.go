// Package state builds the per-cycle view of the node: balances and
// the full channel list fetched once and shared by every engine, so a
// cycle acts on a single consistent picture.
package state

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/joemphilips/ldkboss/ldkrpc"
)

// Snapshot is the node state at the start of a control cycle.
type Snapshot struct {
	NodeID   string
	Balances ldkrpc.Balances
	Channels []*ldkrpc.Channel
}

// Collect fetches node info, balances and channels from the server.
func Collect(ctx context.Context, client ldkrpc.Client) (*Snapshot, error) {
	info, err := client.GetNodeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get node info: %w", err)
	}
	balances, err := client.GetBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	channels, err := client.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	snap := &Snapshot{
		NodeID:   info.NodeID,
		Balances: *balances,
		Channels: channels,
	}
	log.Debugf("Snapshot: %d channels (%d usable), onchain %v, "+
		"lightning %v", len(snap.Channels), snap.UsableChannelCount(),
		btcutil.Amount(snap.Balances.TotalOnchainBalanceSats),
		btcutil.Amount(snap.Balances.TotalLightningBalanceSats))
	return snap, nil
}

// TotalChannelCapacitySats sums the capacity of every channel.
func (s *Snapshot) TotalChannelCapacitySats() uint64 {
	var total uint64
	for _, ch := range s.Channels {
		total += ch.ChannelValueSats
	}
	return total
}

// TotalFundsSats is all funds under the node's control, on-chain plus
// lightning.
func (s *Snapshot) TotalFundsSats() uint64 {
	return s.Balances.TotalOnchainBalanceSats + s.Balances.TotalLightningBalanceSats
}

// OnchainPercent is the share of total funds sitting spendable
// on-chain. Unconfirmed or otherwise unspendable on-chain funds do not
// count toward the numerator. With no funds at all the answer is 100
// so the autopilot stays quiet.
func (s *Snapshot) OnchainPercent() float64 {
	total := s.TotalFundsSats()
	if total == 0 {
		return 100.0
	}
	return float64(s.Balances.SpendableOnchainBalanceSats) / float64(total) * 100.0
}

// UsableChannels returns the channels currently usable for payments.
func (s *Snapshot) UsableChannels() []*ldkrpc.Channel {
	var usable []*ldkrpc.Channel
	for _, ch := range s.Channels {
		if ch.IsUsable {
			usable = append(usable, ch)
		}
	}
	return usable
}

// UsableChannelCount counts the usable channels.
func (s *Snapshot) UsableChannelCount() int {
	n := 0
	for _, ch := range s.Channels {
		if ch.IsUsable {
			n++
		}
	}
	return n
}

// ChannelsByPeer groups all channels by counterparty node id.
func (s *Snapshot) ChannelsByPeer() map[string][]*ldkrpc.Channel {
	byPeer := make(map[string][]*ldkrpc.Channel)
	for _, ch := range s.Channels {
		byPeer[ch.CounterpartyNodeID] = append(byPeer[ch.CounterpartyNodeID], ch)
	}
	return byPeer
}
