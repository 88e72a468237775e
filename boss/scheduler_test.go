package boss

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joemphilips/ldkboss/config"
)

func TestSchedulerTickIncrements(t *testing.T) {
	sched := NewScheduler(config.DefaultConfig())
	require.Equal(t, uint64(0), sched.TickCount())
	sched.Tick()
	require.Equal(t, uint64(1), sched.TickCount())
	sched.Tick()
	require.Equal(t, uint64(2), sched.TickCount())
}

func TestSchedulerAutopilotInterval(t *testing.T) {
	sched := NewScheduler(config.DefaultConfig())

	// Tick 0 runs, ticks 1 through 5 do not, tick 6 runs again.
	require.True(t, sched.ShouldRunAutopilot())
	for i := 0; i < 5; i++ {
		sched.Tick()
		require.False(t, sched.ShouldRunAutopilot(), "tick %d", sched.TickCount())
	}
	sched.Tick()
	require.Equal(t, uint64(6), sched.TickCount())
	require.True(t, sched.ShouldRunAutopilot())
}

func TestSchedulerJudgeInterval(t *testing.T) {
	sched := NewScheduler(config.DefaultConfig())

	require.True(t, sched.ShouldRunJudge())
	for i := 0; i < 35; i++ {
		sched.Tick()
	}
	require.False(t, sched.ShouldRunJudge())
	sched.Tick()
	require.Equal(t, uint64(36), sched.TickCount())
	require.True(t, sched.ShouldRunJudge())
}

func TestSchedulerForceAllAlwaysRuns(t *testing.T) {
	sched := NewForceAllScheduler(config.DefaultConfig())

	require.True(t, sched.ShouldRunAutopilot())
	require.True(t, sched.ShouldRunRebalancer())
	require.True(t, sched.ShouldRunJudge())

	sched.Tick()
	require.True(t, sched.ShouldRunAutopilot())
	require.True(t, sched.ShouldRunRebalancer())
	require.True(t, sched.ShouldRunJudge())
}

func TestSchedulerRebalancerIntervalGating(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rebalancer.TriggerProbability = 1.0
	sched := NewScheduler(cfg)

	// Off-interval ticks never run, regardless of the probability.
	sched.Tick()
	require.False(t, sched.ShouldRunRebalancer())

	// On an eligible tick with probability 1.0 the gate always opens.
	for i := 0; i < 11; i++ {
		sched.Tick()
	}
	require.Equal(t, uint64(12), sched.TickCount())
	require.True(t, sched.ShouldRunRebalancer())
}

func TestSchedulerRebalancerZeroProbabilityNeverRuns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rebalancer.TriggerProbability = 0.0
	sched := NewScheduler(cfg)

	require.False(t, sched.ShouldRunRebalancer())
	for i := 0; i < 12; i++ {
		sched.Tick()
	}
	require.False(t, sched.ShouldRunRebalancer())
}
