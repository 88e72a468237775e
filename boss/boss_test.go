package boss

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/store"
	"github.com/joemphilips/ldkboss/tracker"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenInMemory(clock.NewDefaultClock())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func cycleTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	// Keep cycles hermetic, no fee estimator polling.
	cfg.OnchainFees.Provider = "none"
	return cfg
}

func makeChannel(id, peer string, valueSats, outboundMsat uint64) *ldkrpc.Channel {
	baseMsat := uint32(1000)
	ppm := uint32(100)
	return &ldkrpc.Channel{
		ChannelID:            id,
		UserChannelID:        "user_" + id,
		CounterpartyNodeID:   peer,
		ChannelValueSats:     valueSats,
		OutboundCapacityMsat: outboundMsat,
		InboundCapacityMsat:  valueSats*1000 - outboundMsat,
		IsChannelReady:       true,
		IsUsable:             true,
		Config: &ldkrpc.ChannelConfig{
			ForwardingFeeBaseMsat:               &baseMsat,
			ForwardingFeeProportionalMillionths: &ppm,
		},
	}
}

func TestCycleEmptyNode(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	sched := NewForceAllScheduler(cfg)

	client := ldkrpc.NewRecordingClient()
	client.Balances = ldkrpc.Balances{
		TotalOnchainBalanceSats:     50_000,
		SpendableOnchainBalanceSats: 50_000,
	}

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), sched))

	// Not enough funds to open, no channels to adjust or close.
	require.Zero(t, client.MutationCount())
}

func TestCycleFeeAdjustment(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	cfg.Fees.Enabled = true
	cfg.Fees.BalanceModderEnabled = true
	cfg.Fees.PriceTheoryEnabled = false
	cfg.Autopilot.Enabled = false
	cfg.Rebalancer.Enabled = false
	cfg.Judge.Enabled = false

	client := ldkrpc.NewRecordingClient()
	client.Channels = []*ldkrpc.Channel{
		// Heavily outbound, fees should drop.
		makeChannel("ch1", "peer_a", 1_000_000, 900_000_000),
		// Heavily inbound, fees should rise.
		makeChannel("ch2", "peer_b", 1_000_000, 100_000_000),
	}
	client.Balances = ldkrpc.Balances{TotalLightningBalanceSats: 2_000_000}

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), NewForceAllScheduler(cfg)))

	require.Len(t, client.UpdateConfigCalls, 2)

	var ch1PPM, ch2PPM uint32
	for _, call := range client.UpdateConfigCalls {
		switch call.UserChannelID {
		case "user_ch1":
			ch1PPM = call.Config.PPM()
		case "user_ch2":
			ch2PPM = call.Config.PPM()
		}
	}
	require.Less(t, ch1PPM, ch2PPM,
		"outbound-heavy channel should charge less than inbound-heavy")
}

func TestCycleAutopilotOpens(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	cfg.Autopilot.Enabled = true
	cfg.Fees.Enabled = false
	cfg.Rebalancer.Enabled = false
	cfg.Judge.Enabled = false

	// A single cheap sample puts the fee regime at low.
	require.NoError(t, st.AddFeeSample(5.0))
	require.NoError(t, tracker.SaveRegime(st, tracker.FeeRegimeLow))

	client := ldkrpc.NewRecordingClient()
	client.Balances = ldkrpc.Balances{
		TotalOnchainBalanceSats:     500_000,
		SpendableOnchainBalanceSats: 500_000,
	}

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), NewForceAllScheduler(cfg)))

	require.NotEmpty(t, client.OpenChannelCalls,
		"autopilot should have opened at least one channel")

	opens, err := st.AutopilotOpenCount()
	require.NoError(t, err)
	require.Positive(t, opens)
}

func TestCycleJudgeClosesUnderperformer(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	cfg.Autopilot.Enabled = false
	cfg.Fees.Enabled = false
	cfg.Rebalancer.Enabled = false
	cfg.Judge.Enabled = true
	cfg.Judge.MinAgeDays = 0
	cfg.Judge.EvaluationWindowDays = 365
	cfg.Judge.EstimatedReopenCostSats = 50

	client := ldkrpc.NewRecordingClient()
	client.Channels = []*ldkrpc.Channel{
		makeChannel("ch1", "good1", 1_000_000, 500_000_000),
		makeChannel("ch2", "good2", 1_000_000, 500_000_000),
		makeChannel("ch3", "good3", 1_000_000, 500_000_000),
		makeChannel("ch4", "bad_peer", 1_000_000, 500_000_000),
	}
	client.Balances = ldkrpc.Balances{TotalLightningBalanceSats: 4_000_000}

	// Good peers earned plenty in the window, bad_peer earned nothing.
	bucket := store.DayBucket(float64(time.Now().Unix()))
	require.NoError(t, st.AddEarning("ch1", "good1", bucket, 10_000_000, 1_000_000_000, store.DirectionIn))
	require.NoError(t, st.AddEarning("ch2", "good2", bucket, 10_000_000, 1_000_000_000, store.DirectionIn))
	require.NoError(t, st.AddEarning("ch3", "good3", bucket, 10_000_000, 1_000_000_000, store.DirectionIn))

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), NewForceAllScheduler(cfg)))

	require.Len(t, client.CloseChannelCalls, 1, "judge should close exactly 1 channel")
	require.Equal(t, "bad_peer", client.CloseChannelCalls[0].CounterpartyNodeID)

	closures, err := st.JudgeClosureCount()
	require.NoError(t, err)
	require.Equal(t, int64(1), closures)
}

func TestCycleDryRunNoMutations(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	cfg.General.DryRun = true
	cfg.Fees.Enabled = true
	cfg.Fees.PriceTheoryEnabled = false
	cfg.Autopilot.Enabled = true
	cfg.Rebalancer.Enabled = false
	cfg.Judge.Enabled = false

	require.NoError(t, st.AddFeeSample(5.0))
	require.NoError(t, tracker.SaveRegime(st, tracker.FeeRegimeLow))

	client := ldkrpc.NewRecordingClient()
	client.Channels = []*ldkrpc.Channel{
		makeChannel("ch1", "peer_a", 1_000_000, 900_000_000),
	}
	client.Balances = ldkrpc.Balances{
		TotalOnchainBalanceSats:     500_000,
		SpendableOnchainBalanceSats: 500_000,
		TotalLightningBalanceSats:   1_000_000,
	}

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), NewForceAllScheduler(cfg)))

	require.Zero(t, client.MutationCount())
}

func TestCycleSkipsDisabledModules(t *testing.T) {
	st := newTestStore(t)
	cfg := cycleTestConfig()
	cfg.Fees.Enabled = false
	cfg.Autopilot.Enabled = false
	cfg.Rebalancer.Enabled = false
	cfg.Judge.Enabled = false

	client := ldkrpc.NewRecordingClient()
	client.Channels = []*ldkrpc.Channel{
		makeChannel("ch1", "peer_a", 1_000_000, 500_000_000),
	}
	client.Balances = ldkrpc.Balances{TotalLightningBalanceSats: 1_000_000}

	b := New(cfg, client, st)
	require.NoError(t, b.RunCycle(context.Background(), NewForceAllScheduler(cfg)))

	require.Zero(t, client.MutationCount())
}
