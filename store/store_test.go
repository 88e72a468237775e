package store

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *clock.TestClock) {
	t.Helper()
	clk := clock.NewTestClock(time.Unix(1704067200, 0)) // 2024-01-01 00:00:00 UTC
	st, err := OpenInMemory(clk)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, clk
}

func TestMigrateIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.migrate())
	require.NoError(t, st.migrate())
}

func TestDayBucket(t *testing.T) {
	require.Equal(t, int64(1704067200), DayBucket(1704067200))
	require.Equal(t, int64(1704067200), DayBucket(1704067200+3600))
	require.Equal(t, int64(1704067200), DayBucket(1704067200+86399.9))
	require.Equal(t, int64(1704067200+86400), DayBucket(1704067200+86400))
}

func TestEarningsAccumulate(t *testing.T) {
	st, _ := newTestStore(t)

	bucket := DayBucket(st.now())
	require.NoError(t, st.AddEarning("chan1", "node1", bucket, 100, 50000, DirectionIn))
	require.NoError(t, st.AddEarning("chan1", "node1", bucket, 200, 70000, DirectionIn))
	require.NoError(t, st.AddEarning("chan1", "node1", bucket, 40, 10000, DirectionOut))

	fee, amount, err := st.ChannelEarningsSince("chan1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(340), fee)
	require.Equal(t, int64(130000), amount)
}

func TestChannelEarningsSinceWindow(t *testing.T) {
	st, _ := newTestStore(t)

	now := st.now()
	old := DayBucket(now - 10*86400)
	recent := DayBucket(now)
	require.NoError(t, st.AddEarning("chan1", "node1", old, 1000, 0, DirectionIn))
	require.NoError(t, st.AddEarning("chan1", "node1", recent, 50, 0, DirectionIn))

	fee, _, err := st.ChannelEarningsSince("chan1", now-86400)
	require.NoError(t, err)
	require.Equal(t, int64(50), fee)
}

func TestPeerEarningsNet(t *testing.T) {
	st, _ := newTestStore(t)

	bucket := DayBucket(st.now())
	require.NoError(t, st.AddEarning("chan1", "node1", bucket, 1000, 0, DirectionIn))
	require.NoError(t, st.AddEarning("chan2", "node1", bucket, 400, 0, DirectionOut))
	require.NoError(t, st.AddRebalanceCost("chan1", "node1", bucket, 300, 0, DirectionIn))
	require.NoError(t, st.AddRebalanceCost("chan2", "node1", bucket, 100, 0, DirectionOut))

	pe, err := st.PeerEarningsSince("node1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(700), pe.InNet())
	require.Equal(t, int64(300), pe.OutNet())
	require.Equal(t, int64(1000), pe.TotalNet())
}

func TestTopEarningNodes(t *testing.T) {
	st, _ := newTestStore(t)

	bucket := DayBucket(st.now())
	require.NoError(t, st.AddEarning("chan1", "alice", bucket, 500, 0, DirectionIn))
	require.NoError(t, st.AddEarning("chan2", "bob", bucket, 2000, 0, DirectionIn))
	require.NoError(t, st.AddEarning("chan3", "carol", bucket, 0, 0, DirectionIn))

	top, err := st.TopEarningNodes(10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "bob", top[0].NodeID)
	require.Equal(t, int64(2000), top[0].TotalEarnedMsat)
	require.Equal(t, "alice", top[1].NodeID)
}

func TestChannelSnapshotLifecycle(t *testing.T) {
	st, clk := newTestStore(t)

	opened, closed, err := st.ApplyChannelSnapshot([]SeenChannel{
		{ChannelID: "chan1", UserChannelID: "u1", CounterpartyNodeID: "node1", ValueSats: 1_000_000},
		{ChannelID: "chan2", UserChannelID: "u2", CounterpartyNodeID: "node2", ValueSats: 500_000},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"chan1", "chan2"}, opened)
	require.Empty(t, closed)

	n, err := st.OpenChannelCount()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// chan2 disappears from the next snapshot.
	clk.SetTime(clk.Now().Add(10 * time.Minute))
	opened, closed, err = st.ApplyChannelSnapshot([]SeenChannel{
		{ChannelID: "chan1", UserChannelID: "u1", CounterpartyNodeID: "node1", ValueSats: 1_000_000},
	})
	require.NoError(t, err)
	require.Empty(t, opened)
	require.Equal(t, []string{"chan2"}, closed)

	open, err := st.ChannelIsOpen("chan2")
	require.NoError(t, err)
	require.False(t, open)

	n, err = st.OpenChannelCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestChannelAgeDays(t *testing.T) {
	st, clk := newTestStore(t)

	_, _, err := st.ApplyChannelSnapshot([]SeenChannel{
		{ChannelID: "chan1", UserChannelID: "u1", CounterpartyNodeID: "node1", ValueSats: 1_000_000},
	})
	require.NoError(t, err)

	clk.SetTime(clk.Now().Add(48 * time.Hour))
	age, ok, err := st.ChannelAgeDays("chan1")
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 2.0, age, 1e-6)

	_, ok, err = st.ChannelAgeDays("unknown")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncStateRoundtrip(t *testing.T) {
	st, _ := newTestStore(t)

	_, ok, err := st.SyncState(SyncKeyForwardedPaymentsToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetSyncState(SyncKeyForwardedPaymentsToken, "42:abc"))
	v, ok, err := st.SyncState(SyncKeyForwardedPaymentsToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42:abc", v)

	require.NoError(t, st.SetSyncState(SyncKeyForwardedPaymentsToken, "43:def"))
	v, _, err = st.SyncState(SyncKeyForwardedPaymentsToken)
	require.NoError(t, err)
	require.Equal(t, "43:def", v)
}

func TestPeerAddressSeedAndSave(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.SeedPeerAddress("node1", "1.2.3.4:9735", "config"))
	// Seeding again must not overwrite.
	require.NoError(t, st.SeedPeerAddress("node1", "9.9.9.9:9735", "hardcoded"))
	addr, ok, err := st.PeerAddress("node1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1.2.3.4:9735", addr)

	// A real connection overwrites.
	require.NoError(t, st.SavePeerAddress("node1", "5.6.7.8:9735", "autopilot"))
	addr, _, err = st.PeerAddress("node1")
	require.NoError(t, err)
	require.Equal(t, "5.6.7.8:9735", addr)

	n, err := st.PeerAddressCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFeeSamplePruning(t *testing.T) {
	st, _ := newTestStore(t)

	now := st.now()
	require.NoError(t, st.AddFeeSampleAt(50.0, now-8*86400))
	require.NoError(t, st.AddFeeSampleAt(20.0, now-3600))
	require.NoError(t, st.AddFeeSample(10.0))

	n, err := st.FeeSampleCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rate, ok, err := st.LatestFeeSampleRate()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10.0, rate)

	rates, err := st.FeeSampleRatesAsc()
	require.NoError(t, err)
	require.Equal(t, []float64{10.0, 20.0}, rates)
}

func TestCardLifecycle(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.InsertCard("node1", 0, 2, 288))
	require.NoError(t, st.InsertCard("node1", 1, -2, 288))

	card, ok, err := st.NextDeckCard("node1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, card.Price)

	require.NoError(t, st.PlayCard(card.ID, 288))
	inPlay, ok, err := st.InPlayCard("node1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, card.ID, inPlay.ID)

	require.NoError(t, st.AddCardEarnings("node1", 1234))
	require.NoError(t, st.DiscardCard(card.ID))
	_, ok, err = st.InPlayCard("node1")
	require.NoError(t, err)
	require.False(t, ok)

	price, ok, err := st.BestDiscardedPrice("node1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, price)

	require.NoError(t, st.DeleteCards("node1"))
	n, err := st.CardCount("node1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCenterDefaultsToZero(t *testing.T) {
	st, _ := newTestStore(t)

	price, err := st.Center("node1")
	require.NoError(t, err)
	require.Zero(t, price)

	require.NoError(t, st.EnsureCenter("node1"))
	require.NoError(t, st.SetCenter("node1", 3))
	require.NoError(t, st.EnsureCenter("node1"))
	price, err = st.Center("node1")
	require.NoError(t, err)
	require.Equal(t, 3, price)
}

func TestAuditTrails(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.RecordAutopilotOpen("chan1", "node1", 500_000, "source=SeedNode, score=100.00"))
	require.NoError(t, st.RecordJudgeClosure("chan2", "node2", "Underperforming"))

	opens, err := st.AutopilotOpenCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), opens)

	closures, err := st.JudgeClosureCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), closures)
}
