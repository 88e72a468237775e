package boss

import (
	"math/rand"
	"time"

	"github.com/joemphilips/ldkboss/config"
)

// Scheduler decides which policy engines run on a given tick. Ticks
// are loop iterations, 10 minutes apart by default, so autopilot runs
// roughly hourly, the rebalancer every two hours and the judge every
// six.
type Scheduler struct {
	tickCount          uint64
	autopilotInterval  uint64
	rebalancerInterval uint64
	judgeInterval      uint64
	triggerProbability float64
	forceAll           bool
	rng                *rand.Rand
}

// NewScheduler creates a scheduler with the standard intervals.
func NewScheduler(cfg *config.Config) *Scheduler {
	return &Scheduler{
		autopilotInterval:  6,
		rebalancerInterval: 12,
		judgeInterval:      36,
		triggerProbability: cfg.Rebalancer.TriggerProbability,
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewForceAllScheduler creates a scheduler where every engine runs on
// every tick, used for run-once mode.
func NewForceAllScheduler(cfg *config.Config) *Scheduler {
	s := NewScheduler(cfg)
	s.forceAll = true
	return s
}

// Tick advances the scheduler by one loop iteration.
func (s *Scheduler) Tick() {
	s.tickCount++
}

// TickCount returns the number of completed ticks.
func (s *Scheduler) TickCount() uint64 {
	return s.tickCount
}

// ShouldRunAutopilot reports whether the autopilot runs this tick.
func (s *Scheduler) ShouldRunAutopilot() bool {
	if s.forceAll {
		return true
	}
	return s.tickCount%s.autopilotInterval == 0
}

// ShouldRunRebalancer reports whether the rebalancer runs this tick.
// On eligible ticks the run is further gated by a coin flip so
// rebalances do not land on a fixed rhythm.
func (s *Scheduler) ShouldRunRebalancer() bool {
	if s.forceAll {
		return true
	}
	if s.tickCount%s.rebalancerInterval != 0 {
		return false
	}
	return s.rng.Float64() < s.triggerProbability
}

// ShouldRunJudge reports whether the judge runs this tick.
func (s *Scheduler) ShouldRunJudge() bool {
	if s.forceAll {
		return true
	}
	return s.tickCount%s.judgeInterval == 0
}
