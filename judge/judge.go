// Package judge evaluates peers against each other and closes
// channels whose capacity would demonstrably earn more if redeployed.
package judge

import (
	"context"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Run gathers peer performance, judges it and closes at most one
// channel per cycle.
func Run(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot) error {

	peerInfos, err := Gather(cfg, st, snap)
	if err != nil {
		return err
	}
	if len(peerInfos) < 3 {
		log.Debugf("Judge: need at least 3 peers to evaluate (have %d)",
			len(peerInfos))
		return nil
	}

	recommendations := Judge(peerInfos, cfg.Judge.EstimatedReopenCostSats)
	if len(recommendations) == 0 {
		log.Debugf("Judge: no channels recommended for closure")
		return nil
	}
	log.Infof("Judge: %d channels recommended for closure", len(recommendations))

	return ExecuteClosure(ctx, cfg, client, st, snap, &recommendations[0])
}
