// Package reconnector redials peers that still have channels but
// appear offline. It runs every cycle since reconnecting is cheap and
// a disconnected peer earns nothing.
package reconnector

import (
	"context"

	"github.com/joemphilips/ldkboss/autopilot"
	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/ldkrpc"
	"github.com/joemphilips/ldkboss/state"
	"github.com/joemphilips/ldkboss/store"
)

// Run reconnects to peers whose channels are ready but not usable,
// which signals a dropped connection.
func Run(ctx context.Context, cfg *config.Config, client ldkrpc.Client,
	st *store.Store, snap *state.Snapshot) error {

	if err := SeedAddresses(cfg, st); err != nil {
		return err
	}

	disconnected := make(map[string]struct{})
	for _, ch := range snap.Channels {
		if ch.IsChannelReady && !ch.IsUsable {
			disconnected[ch.CounterpartyNodeID] = struct{}{}
		}
	}
	if len(disconnected) == 0 {
		log.Debugf("Reconnector: all peers connected")
		return nil
	}
	log.Infof("Reconnector: %d peers appear disconnected, attempting reconnection",
		len(disconnected))

	for peerID := range disconnected {
		address, ok, err := st.PeerAddress(peerID)
		if err != nil {
			return err
		}
		if !ok {
			log.Debugf("Reconnector: no known address for peer %s, skipping", peerID)
			continue
		}

		if cfg.General.DryRun {
			log.Infof("Reconnector: would reconnect to %s at %s (dry-run)",
				peerID, address)
			continue
		}

		err = client.ConnectPeer(ctx, &ldkrpc.ConnectPeerRequest{
			NodePubkey: peerID,
			Address:    address,
			Persist:    true,
		})
		if err != nil {
			log.Warnf("Reconnector: failed to reconnect to %s at %s: %v",
				peerID, address, err)
			continue
		}
		log.Infof("Reconnector: reconnected to %s at %s", peerID, address)
		if err := st.TouchPeerConnected(peerID); err != nil {
			return err
		}
	}
	return nil
}

// SeedAddresses fills the address book from configured seed nodes and
// the well-known fallback list. Known entries are never overwritten.
func SeedAddresses(cfg *config.Config, st *store.Store) error {
	for _, seed := range cfg.Autopilot.SeedNodes {
		nodeID, address, ok := autopilot.ParseNodeAddress(seed)
		if !ok {
			continue
		}
		if err := st.SeedPeerAddress(nodeID, address, "config"); err != nil {
			return err
		}
	}
	for _, node := range autopilot.HardcodedNodes {
		if err := st.SeedPeerAddress(node.NodeID, node.Address, "hardcoded"); err != nil {
			return err
		}
	}
	return nil
}
