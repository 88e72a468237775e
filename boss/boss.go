// Package boss runs the control loop that drives every policy engine
// against a fresh snapshot of the node each cycle.
package boss

import (
	"context"
	"time"

	"github.com/joemphilips/ldkboss/autopilot"
	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/fees"
	"github.com/joemphilips/ldkboss/judge"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/rebalancer"
	"github.com/joemphilips/ldkboss/reconnector"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
	"github.com/joemphilips/ldkboss/tracker"
)

// Boss wires the client, the store and the configuration into a
// runnable daemon.
type Boss struct {
	cfg    *config.Config
	client ldkrpc.Client
	store  *store.Store
}

// New creates a Boss from its dependencies.
func New(cfg *config.Config, client ldkrpc.Client, st *store.Store) *Boss {
	return &Boss{cfg: cfg, client: client, store: st}
}

// Run is the daemon loop. It verifies connectivity once, then runs a
// cycle every loop interval until the context is cancelled.
func (b *Boss) Run(ctx context.Context) error {
	log.Infof("Verifying LDK Server connectivity...")
	info, err := b.client.GetNodeInfo(ctx)
	if err != nil {
		log.Errorf("Cannot reach LDK Server: %v. Aborting.", err)
		return err
	}
	log.Infof("Connected to LDK Server node: %s", info.NodeID)

	sched := NewScheduler(b.cfg)
	interval := time.Duration(b.cfg.General.LoopIntervalSecs) * time.Second
	log.Infof("Entering main loop (interval: %ds)", b.cfg.General.LoopIntervalSecs)

	timer := time.NewTimer(0)
	defer timer.Stop()
	// Drain the immediate fire so the first cycle runs right away.
	<-timer.C

	for {
		if err := b.RunCycle(ctx, sched); err != nil {
			log.Errorf("Cycle error: %v", err)
		}
		sched.Tick()

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			log.Infof("Shutting down gracefully")
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce executes a single cycle with every engine forced to run.
func (b *Boss) RunOnce(ctx context.Context) error {
	log.Infof("Running single cycle...")
	if err := b.RunCycle(ctx, NewForceAllScheduler(b.cfg)); err != nil {
		return err
	}
	log.Infof("Single cycle complete")
	return nil
}

// RunCycle executes one control cycle: collect a snapshot, feed the
// trackers, then let each enabled engine act on it. Snapshot and
// tracker failures abort the cycle since every engine depends on
// them. Engine failures are logged and swallowed so one misbehaving
// engine cannot starve the others.
func (b *Boss) RunCycle(ctx context.Context, sched *Scheduler) error {
	snap, err := state.Collect(ctx, b.client)
	if err != nil {
		return err
	}

	if err := tracker.UpdateChannels(b.store, snap); err != nil {
		return err
	}
	if err := tracker.IngestEarnings(ctx, b.store, b.client); err != nil {
		return err
	}
	if err := tracker.SampleOnchainFees(ctx, b.store, &b.cfg.OnchainFees); err != nil {
		return err
	}

	if err := reconnector.Run(ctx, b.cfg, b.client, b.store, snap); err != nil {
		log.Errorf("Reconnector error: %v", err)
	}

	if b.cfg.Fees.Enabled {
		if err := fees.Run(ctx, b.cfg, b.client, b.store, snap); err != nil {
			log.Errorf("Fee management error: %v", err)
		}
	}

	if b.cfg.Autopilot.Enabled && sched.ShouldRunAutopilot() {
		if err := autopilot.Run(ctx, b.cfg, b.client, b.store, snap); err != nil {
			log.Errorf("Autopilot error: %v", err)
		}
	}

	if b.cfg.Rebalancer.Enabled && sched.ShouldRunRebalancer() {
		if err := rebalancer.Run(ctx, b.cfg, b.client, b.store, snap); err != nil {
			log.Errorf("Rebalancer error: %v", err)
		}
	}

	if b.cfg.Judge.Enabled && sched.ShouldRunJudge() {
		if err := judge.Run(ctx, b.cfg, b.client, b.store, snap); err != nil {
			log.Errorf("Judge error: %v", err)
		}
	}

	return nil
}
