package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	clk := clock.NewTestClock(time.Unix(1704067200, 0))
	st, err := store.OpenInMemory(clk)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpdateChannelsTracksLifecycle(t *testing.T) {
	st := newTestStore(t)

	snap := &state.Snapshot{Channels: []*ldkrpc.Channel{
		{ChannelID: "chan1", UserChannelID: "u1", CounterpartyNodeID: "peer1", ChannelValueSats: 1_000_000},
		{ChannelID: "chan2", UserChannelID: "u2", CounterpartyNodeID: "peer2", ChannelValueSats: 500_000},
	}}
	require.NoError(t, UpdateChannels(st, snap))

	n, err := st.OpenChannelCount()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	snap.Channels = snap.Channels[:1]
	require.NoError(t, UpdateChannels(st, snap))

	n, err = st.OpenChannelCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	open, err := st.ChannelIsOpen("chan2")
	require.NoError(t, err)
	require.False(t, open)
}

func TestIngestEarningsRecordsBothSides(t *testing.T) {
	st := newTestStore(t)
	client := ldkrpc.NewRecordingClient()
	client.ForwardedPayments = ldkrpc.ForwardedPaymentsPage{
		ForwardedPayments: []ldkrpc.ForwardedPayment{
			{
				PrevChannelID: "chan_in", PrevNodeID: "peer_in",
				NextChannelID: "chan_out", NextNodeID: "peer_out",
				TotalFeeEarnedMsat:          1500,
				OutboundAmountForwardedMsat: 200_000,
			},
		},
	}

	require.NoError(t, IngestEarnings(context.Background(), st, client))

	feeIn, amountIn, err := st.ChannelEarningsSince("chan_in", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1500), feeIn)
	require.Equal(t, int64(200_000), amountIn)

	feeOut, _, err := st.ChannelEarningsSince("chan_out", 0)
	require.NoError(t, err)
	require.Equal(t, int64(1500), feeOut)

	total, err := st.TotalFeesEarnedMsat()
	require.NoError(t, err)
	require.Equal(t, int64(3000), total)
}

func TestIngestEarningsSkipsMissingSides(t *testing.T) {
	st := newTestStore(t)
	client := ldkrpc.NewRecordingClient()
	client.ForwardedPayments = ldkrpc.ForwardedPaymentsPage{
		ForwardedPayments: []ldkrpc.ForwardedPayment{
			{
				NextChannelID: "chan_out", NextNodeID: "peer_out",
				TotalFeeEarnedMsat: 700,
			},
		},
	}

	require.NoError(t, IngestEarnings(context.Background(), st, client))

	fee, _, err := st.ChannelEarningsSince("chan_out", 0)
	require.NoError(t, err)
	require.Equal(t, int64(700), fee)

	total, err := st.TotalFeesEarnedMsat()
	require.NoError(t, err)
	require.Equal(t, int64(700), total)
}

func TestPageTokenRoundtrip(t *testing.T) {
	st := newTestStore(t)

	token, err := loadPageToken(st)
	require.NoError(t, err)
	require.Nil(t, token)

	require.NoError(t, savePageToken(st, &ldkrpc.PageToken{Index: 42, Token: "abc123"}))
	token, err = loadPageToken(st)
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, uint64(42), token.Index)
	require.Equal(t, "abc123", token.Token)
}

func seedSamples(t *testing.T, st *store.Store) {
	t.Helper()
	now := 1704067200.0
	for i := 1; i <= 100; i++ {
		require.NoError(t, st.AddFeeSampleAt(float64(i), now-float64(100-i)*600.0))
	}
}

func TestRegimeNoDataDefaultsHigh(t *testing.T) {
	st := newTestStore(t)
	regime, err := CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeHigh, regime)
}

func TestRegimeLowWhenLatestBelowThreshold(t *testing.T) {
	st := newTestStore(t)
	seedSamples(t, st)
	require.NoError(t, st.AddFeeSampleAt(1.0, 1704067201.0))

	regime, err := CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeLow, regime)
}

func TestRegimeHighWhenLatestAboveThreshold(t *testing.T) {
	st := newTestStore(t)
	seedSamples(t, st)
	require.NoError(t, st.AddFeeSampleAt(99.0, 1704067201.0))

	regime, err := CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeHigh, regime)
}

func TestRegimeHysteresisPreservesState(t *testing.T) {
	st := newTestStore(t)
	seedSamples(t, st)
	// Latest sits between the two percentile thresholds.
	require.NoError(t, st.AddFeeSampleAt(20.0, 1704067201.0))

	regime, err := CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeHigh, regime)

	require.NoError(t, SaveRegime(st, FeeRegimeLow))
	regime, err = CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeLow, regime)
}

func TestRegimeSingleSampleIsLow(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.AddFeeSampleAt(5.0, 1704067200.0))

	regime, err := CurrentRegime(st, 17.0, 23.0)
	require.NoError(t, err)
	require.Equal(t, FeeRegimeLow, regime)
}

func TestRegimeStringEncoding(t *testing.T) {
	require.Equal(t, "low", FeeRegimeLow.String())
	require.Equal(t, "high", FeeRegimeHigh.String())
}
