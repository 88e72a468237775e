package autopilot

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/store"
)

// PlannedOpen is one channel open the planner committed to.
type PlannedOpen struct {
	Candidate  Candidate
	AmountSats uint64
}

// PlanOpens distributes the budget across the top candidates. The
// remaining budget is split evenly over remaining slots, clamped to
// the configured channel size limits, and no single channel may take
// more than half the total budget.
func PlanOpens(cfg *config.Config, candidates []Candidate, budgetSats uint64,
	maxProposals int) []PlannedOpen {

	var plan []PlannedOpen
	remaining := budgetSats

	numToOpen := maxProposals
	if len(candidates) < numToOpen {
		numToOpen = len(candidates)
	}

	for i := 0; i < numToOpen; i++ {
		if remaining < cfg.Autopilot.MinChannelSats {
			break
		}
		if candidates[i].Address == "" {
			continue
		}

		slotsLeft := uint64(numToOpen - i)
		perChannel := remaining / slotsLeft
		amount := perChannel
		if amount < cfg.Autopilot.MinChannelSats {
			amount = cfg.Autopilot.MinChannelSats
		}
		if amount > cfg.Autopilot.MaxChannelSats {
			amount = cfg.Autopilot.MaxChannelSats
		}
		if amount > remaining {
			amount = remaining
		}
		if amount > budgetSats/2 {
			amount = budgetSats / 2
		}
		if amount < cfg.Autopilot.MinChannelSats {
			amount = cfg.Autopilot.MinChannelSats
		}

		if amount < cfg.Autopilot.MinChannelSats {
			break
		}

		plan = append(plan, PlannedOpen{
			Candidate:  candidates[i],
			AmountSats: amount,
		})
		if amount > remaining {
			remaining = 0
		} else {
			remaining -= amount
		}
	}
	return plan
}

// ExecuteOpen connects to the candidate and opens the channel. Connect
// failures are tolerated since the peer may already be connected; open
// failures abort.
func ExecuteOpen(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, open *PlannedOpen) error {

	log.Infof("Autopilot: opening %v channel with %s (%s)",
		btcutil.Amount(open.AmountSats), open.Candidate.NodeID,
		open.Candidate.Address)

	if cfg.General.DryRun {
		log.Infof("  (dry-run: not executing)")
		return nil
	}

	err := client.ConnectPeer(ctx, &ldkrpc.ConnectPeerRequest{
		NodePubkey: open.Candidate.NodeID,
		Address:    open.Candidate.Address,
		Persist:    true,
	})
	if err != nil {
		log.Warnf("Autopilot: connect to %s returned: %v (may already be connected)",
			open.Candidate.NodeID, err)
	} else {
		log.Infof("Autopilot: connected to %s", open.Candidate.NodeID)
	}

	resp, err := client.OpenChannel(ctx, &ldkrpc.OpenChannelRequest{
		NodePubkey:        open.Candidate.NodeID,
		Address:           open.Candidate.Address,
		ChannelAmountSats: open.AmountSats,
		AnnounceChannel:   cfg.Autopilot.AnnounceChannels,
	})
	if err != nil {
		log.Errorf("Autopilot: failed to open channel with %s: %v",
			open.Candidate.NodeID, err)
		return err
	}

	log.Infof("Autopilot: channel opened with %s -- user_channel_id=%s",
		open.Candidate.NodeID, resp.UserChannelID)

	if err := st.SavePeerAddress(open.Candidate.NodeID,
		open.Candidate.Address, "autopilot"); err != nil {
		return err
	}
	reason := fmt.Sprintf("source=%s, score=%.2f",
		open.Candidate.Source, open.Candidate.Score)
	return st.RecordAutopilotOpen(resp.UserChannelID, open.Candidate.NodeID,
		open.AmountSats, reason)
}
