package autopilot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/store"
)

// Source identifies where a candidate came from.
type Source int

const (
	SourceHardcoded Source = iota
	SourceSeedNode
	SourceEarnings
	SourceExternal
)

func (s Source) String() string {
	switch s {
	case SourceHardcoded:
		return "Hardcoded"
	case SourceSeedNode:
		return "SeedNode"
	case SourceEarnings:
		return "Earnings"
	case SourceExternal:
		return "External"
	}
	return "Unknown"
}

// Candidate is a node considered for a channel open.
type Candidate struct {
	NodeID  string
	Address string
	Score   float64
	Source  Source
}

// HardcodedNodes are well-known, highly-connected routing nodes. They
// serve as a fallback when no external ranking API is configured.
var HardcodedNodes = []struct {
	NodeID  string
	Address string
}{
	// ACINQ
	{"03864ef025fde8fb587d989186ce6a4a186895ee44a926bfc370e2c366597a3f8f", "3.33.236.230:9735"},
	// Kraken
	{"02f1a8c87607f415c8f22c00571c93e301a0ab6e73e38bfa3eb97ee71f96aab5f6", "52.13.118.208:9735"},
	// River Financial
	{"03037dc08e9ac63b82581f79b662a4d0ceca8a8ca162b1af3551595b8f2d97b70a", "104.196.249.140:9735"},
	// Wallet of Satoshi
	{"035e4ff418fc8b5554c5d9eea66396c227bd3a1a07c54c2b7b8d8dfdfc0e0a941b", "170.75.163.209:9735"},
	// Bitfinex
	{"033d8656219478701227199cbd6f670335c8d408a92ae88b962c49d4dc0e83e025", "3.33.236.230:9735"},
	// OpenNode
	{"028d98b9969fbed53784a36617eb489a59ab6dc9b9d77571a4a3e5cba4a0c71284", "18.221.23.28:9735"},
	// Fold
	{"02816caed43171d3c9854e3b0ab2dee0a029c7290e2dd04cf4a68df1e8a0586cac", "35.238.153.25:9735"},
	// Boltz
	{"026165850492521f4ac8abd9bd8088123446d126f648ca35e60f88177dc149ceb2", "24.249.146.89:9735"},
	// Zero Fee Routing
	{"038863cf8ab91046230f561cd5b386cbff8309fa02e3f0c3ed161a3aeb64a643b9", "203.132.95.10:9735"},
	// LNBig
	{"0331f80652fb840239df8dc99205792bba2e559a05469915804c08420230e23c7c", "138.68.14.104:9735"},
}

// Candidates gathers a ranked list of channel candidates from seed
// nodes, forwarding history, the external ranking API and the
// hardcoded fallback list. Existing peers and blacklisted nodes are
// excluded.
func Candidates(ctx context.Context, cfg *config.Config, st *store.Store,
	existingPeers map[string]struct{}) ([]Candidate, error) {

	var candidates []Candidate

	for _, seed := range cfg.Autopilot.SeedNodes {
		nodeID, address, ok := ParseNodeAddress(seed)
		if !ok {
			continue
		}
		if _, exists := existingPeers[nodeID]; exists {
			continue
		}
		if isBlacklisted(cfg, nodeID) {
			continue
		}
		candidates = append(candidates, Candidate{
			NodeID:  nodeID,
			Address: address,
			Score:   100.0,
			Source:  SourceSeedNode,
		})
	}

	earningsCandidates, err := earningsCandidates(st, existingPeers)
	if err != nil {
		return nil, err
	}
	for _, c := range earningsCandidates {
		if !isBlacklisted(cfg, c.NodeID) {
			candidates = append(candidates, c)
		}
	}

	if cfg.Autopilot.RankingAPIURL != "" {
		external, err := fetchExternalCandidates(ctx, cfg.Autopilot.RankingAPIURL)
		if err != nil {
			log.Warnf("Failed to fetch external candidates: %v", err)
		} else {
			for _, c := range external {
				if _, exists := existingPeers[c.NodeID]; exists {
					continue
				}
				if isBlacklisted(cfg, c.NodeID) {
					continue
				}
				candidates = append(candidates, c)
			}
		}
	}

	for _, node := range HardcodedNodes {
		if _, exists := existingPeers[node.NodeID]; exists {
			continue
		}
		if isBlacklisted(cfg, node.NodeID) {
			continue
		}
		duplicate := false
		for _, c := range candidates {
			if c.NodeID == node.NodeID {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		candidates = append(candidates, Candidate{
			NodeID:  node.NodeID,
			Address: node.Address,
			Score:   10.0,
			Source:  SourceHardcoded,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	log.Debugf("Autopilot: %d candidates available", len(candidates))
	return candidates, nil
}

// earningsCandidates ranks nodes that show up in forwarding history
// but are not yet peers. They have no known address; the planner skips
// them unless one is learned elsewhere.
func earningsCandidates(st *store.Store, existingPeers map[string]struct{}) ([]Candidate, error) {
	top, err := st.TopEarningNodes(20)
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	for _, node := range top {
		if _, exists := existingPeers[node.NodeID]; exists {
			continue
		}
		candidates = append(candidates, Candidate{
			NodeID: node.NodeID,
			Score:  math.Sqrt(float64(node.TotalEarnedMsat)) / 100.0,
			Source: SourceEarnings,
		})
	}
	return candidates, nil
}

func isBlacklisted(cfg *config.Config, nodeID string) bool {
	for _, b := range cfg.Autopilot.Blacklist {
		if b == nodeID {
			return true
		}
	}
	return false
}

// ParseNodeAddress splits a "node_id@host:port" entry.
func ParseNodeAddress(s string) (nodeID, address string, ok bool) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

const externalFetchTimeout = 10 * time.Second

type externalCandidate struct {
	NodeID  string  `json:"node_id"`
	Address string  `json:"address"`
	Score   float64 `json:"score"`
}

// fetchExternalCandidates pulls a JSON ranking from a user-configured
// API. The expected shape is a flat array of node_id, address, score
// objects.
func fetchExternalCandidates(ctx context.Context, url string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, externalFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var raw []externalCandidate
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		if c.NodeID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			NodeID:  c.NodeID,
			Address: c.Address,
			Score:   c.Score,
			Source:  SourceExternal,
		})
	}
	return candidates, nil
}
