package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joemphilips/ldkboss/ldkrpc"
)

func TestCollect(t *testing.T) {
	client := ldkrpc.NewRecordingClient()
	client.NodeInfo = ldkrpc.NodeInfo{NodeID: "node_self", CurrentBestBlockHeight: 800_000}
	client.Balances = ldkrpc.Balances{
		TotalOnchainBalanceSats:     200_000,
		SpendableOnchainBalanceSats: 180_000,
		TotalLightningBalanceSats:   800_000,
	}
	client.Channels = []*ldkrpc.Channel{
		{ChannelID: "chan1", CounterpartyNodeID: "peer1", ChannelValueSats: 1_000_000, IsUsable: true},
		{ChannelID: "chan2", CounterpartyNodeID: "peer1", ChannelValueSats: 500_000, IsUsable: false},
		{ChannelID: "chan3", CounterpartyNodeID: "peer2", ChannelValueSats: 250_000, IsUsable: true},
	}

	snap, err := Collect(context.Background(), client)
	require.NoError(t, err)
	require.Equal(t, "node_self", snap.NodeID)
	require.Equal(t, uint64(1_750_000), snap.TotalChannelCapacitySats())
	require.Equal(t, uint64(1_000_000), snap.TotalFundsSats())
	require.Equal(t, 2, snap.UsableChannelCount())
	require.Len(t, snap.UsableChannels(), 2)
	require.InDelta(t, 18.0, snap.OnchainPercent(), 1e-9)

	byPeer := snap.ChannelsByPeer()
	require.Len(t, byPeer, 2)
	require.Len(t, byPeer["peer1"], 2)
	require.Len(t, byPeer["peer2"], 1)
}

func TestOnchainPercentNoFunds(t *testing.T) {
	snap := &Snapshot{}
	require.Equal(t, 100.0, snap.OnchainPercent())
}

func TestOnchainPercentCountsSpendableOnly(t *testing.T) {
	// Mostly-unconfirmed on-chain funds: only the spendable part counts
	// toward the on-chain share, the rest still counts as total funds.
	snap := &Snapshot{Balances: ldkrpc.Balances{
		TotalOnchainBalanceSats:     1_000_000,
		SpendableOnchainBalanceSats: 100_000,
	}}
	require.InDelta(t, 10.0, snap.OnchainPercent(), 1e-9)

	snap.Balances.TotalLightningBalanceSats = 1_000_000
	require.InDelta(t, 5.0, snap.OnchainPercent(), 1e-9)
}
