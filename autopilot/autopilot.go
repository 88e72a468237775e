// Package autopilot opens new channels when on-chain conditions are
// favorable, picking counterparties from configured seeds, forwarding
// history, an optional ranking API and a list of well-known routing
// nodes.
package autopilot

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Run evaluates whether to open channels, selects candidates, plans
// amounts and executes the opens.
func Run(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot) error {

	budget, ok, err := ShouldOpen(cfg, st, snap)
	if err != nil {
		return err
	}
	if !ok {
		log.Debugf("Autopilot: conditions not met for channel opening")
		return nil
	}
	log.Infof("Autopilot: budget of %v available for new channels",
		btcutil.Amount(budget))

	existingPeers := make(map[string]struct{})
	for _, ch := range snap.Channels {
		existingPeers[ch.CounterpartyNodeID] = struct{}{}
	}

	candidates, err := Candidates(ctx, cfg, st, existingPeers)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Infof("Autopilot: no suitable candidates found")
		return nil
	}

	maxProposals := cfg.Autopilot.MaxProposals
	if snap.UsableChannelCount() >= cfg.Autopilot.MinChannelsToBackoff {
		// Backoff mode: only one channel at a time.
		maxProposals = 1
	}

	plan := PlanOpens(cfg, candidates, budget, maxProposals)
	if len(plan) == 0 {
		log.Debugf("Autopilot: no viable opens planned")
		return nil
	}
	log.Infof("Autopilot: planning %d channel opens", len(plan))

	for i := range plan {
		if err := ExecuteOpen(ctx, cfg, client, st, &plan[i]); err != nil {
			return err
		}
	}
	return nil
}
