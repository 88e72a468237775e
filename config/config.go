// Package config loads and validates the ldkboss TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// Hard limits. These are safety rails, not tunables.
const (
	AbsMinChannelSats uint64 = 20_000
	AbsMaxChannelSats uint64 = 16_777_215
	AbsMaxFeePPM      uint32 = 50_000
	AbsMaxProposals   int    = 5
)

// Config is the top-level daemon configuration. All sections except
// Server are optional in the TOML file and fall back to defaults.
type Config struct {
	Server      Server      `toml:"server"`
	General     General     `toml:"general"`
	Autopilot   Autopilot   `toml:"autopilot"`
	Fees        Fees        `toml:"fees"`
	Rebalancer  Rebalancer  `toml:"rebalancer"`
	Judge       Judge       `toml:"judge"`
	OnchainFees OnchainFees `toml:"onchain_fees"`
}

// Server describes how to reach the LDK Server node.
type Server struct {
	// REST endpoint, host:port without scheme.
	BaseURL string `toml:"base_url"`

	// API key sent as a bearer token.
	APIKey string `toml:"api_key"`

	// Path to the server's TLS certificate.
	TLSCertPath string `toml:"tls_cert_path"`
}

type General struct {
	DatabasePath     string `toml:"database_path"`
	LogLevel         string `toml:"log_level"`
	Network          string `toml:"network"`
	Enabled          bool   `toml:"enabled"`
	DryRun           bool   `toml:"dry_run"`
	LoopIntervalSecs uint64 `toml:"loop_interval_secs"`
}

type Autopilot struct {
	Enabled bool `toml:"enabled"`

	// Once this many channels are usable, only one proposal per cycle.
	MinChannelsToBackoff int `toml:"min_channels_to_backoff"`

	MaxProposals       int     `toml:"max_proposals"`
	MinChannelSats     uint64  `toml:"min_channel_sats"`
	MaxChannelSats     uint64  `toml:"max_channel_sats"`
	OnchainReserveSats uint64  `toml:"onchain_reserve_sats"`
	MinOnchainPercent  float64 `toml:"min_onchain_percent"`
	MaxOnchainPercent  float64 `toml:"max_onchain_percent"`
	AnnounceChannels   bool    `toml:"announce_channels"`

	// External node ranking API, empty disables the source.
	RankingAPIURL string `toml:"ranking_api_url"`

	// node_id@host:port entries that are always considered.
	SeedNodes []string `toml:"seed_nodes"`

	// Node ids we never open channels with.
	Blacklist []string `toml:"blacklist"`
}

type Fees struct {
	Enabled              bool   `toml:"enabled"`
	DefaultBaseMsat      uint32 `toml:"default_base_msat"`
	DefaultPPM           uint32 `toml:"default_ppm"`
	BalanceModderEnabled bool   `toml:"balance_modder_enabled"`
	PreferredBinSizeSats uint64 `toml:"preferred_bin_size_sats"`
	PriceTheoryEnabled   bool   `toml:"price_theory_enabled"`

	// Ticks a price card stays in play, roughly 2 days at 10 min per tick.
	PriceTheoryCardLifetimeTicks uint32 `toml:"price_theory_card_lifetime_ticks"`
	PriceTheoryMaxStep           int    `toml:"price_theory_max_step"`
}

type Rebalancer struct {
	Enabled                bool    `toml:"enabled"`
	TriggerProbability     float64 `toml:"trigger_probability"`
	MaxSpendablePercent    float64 `toml:"max_spendable_percent"`
	SourceGapPercent       float64 `toml:"source_gap_percent"`
	TargetSpendablePercent float64 `toml:"target_spendable_percent"`
	MaxFeePPM              uint32  `toml:"max_fee_ppm"`
	MaxTotalFeeSats        uint64  `toml:"max_total_fee_sats"`
}

type Judge struct {
	// Disabled by default, closing channels needs explicit opt-in.
	Enabled bool `toml:"enabled"`

	MinAgeDays              uint64 `toml:"min_age_days"`
	EvaluationWindowDays    uint64 `toml:"evaluation_window_days"`
	EstimatedReopenCostSats uint64 `toml:"estimated_reopen_cost_sats"`
	CooperativeClose        bool   `toml:"cooperative_close"`
}

type OnchainFees struct {
	// "mempool" or "none".
	Provider string `toml:"provider"`

	MempoolAPIURL    string  `toml:"mempool_api_url"`
	HiToLoPercentile float64 `toml:"hi_to_lo_percentile"`
	LoToHiPercentile float64 `toml:"lo_to_hi_percentile"`
}

// DefaultConfig returns a config with every optional field set to its
// default. The Server section is left empty and must be filled in.
func DefaultConfig() *Config {
	return &Config{
		General: General{
			DatabasePath:     "ldkboss.db",
			LogLevel:         "info",
			Network:          "bitcoin",
			Enabled:          true,
			DryRun:           false,
			LoopIntervalSecs: 600,
		},
		Autopilot: Autopilot{
			Enabled:              true,
			MinChannelsToBackoff: 4,
			MaxProposals:         5,
			MinChannelSats:       100_000,
			MaxChannelSats:       16_777_215,
			OnchainReserveSats:   30_000,
			MinOnchainPercent:    10.0,
			MaxOnchainPercent:    25.0,
			AnnounceChannels:     true,
		},
		Fees: Fees{
			Enabled:                      true,
			DefaultBaseMsat:              1000,
			DefaultPPM:                   100,
			BalanceModderEnabled:         true,
			PreferredBinSizeSats:         200_000,
			PriceTheoryEnabled:           true,
			PriceTheoryCardLifetimeTicks: 288,
			PriceTheoryMaxStep:           2,
		},
		Rebalancer: Rebalancer{
			Enabled:                true,
			TriggerProbability:     0.5,
			MaxSpendablePercent:    25.0,
			SourceGapPercent:       2.5,
			TargetSpendablePercent: 75.0,
			MaxFeePPM:              1000,
			MaxTotalFeeSats:        10_000,
		},
		Judge: Judge{
			Enabled:                 false,
			MinAgeDays:              90,
			EvaluationWindowDays:    30,
			EstimatedReopenCostSats: 5000,
			CooperativeClose:        true,
		},
		OnchainFees: OnchainFees{
			Provider:         "mempool",
			MempoolAPIURL:    "https://mempool.space/api",
			HiToLoPercentile: 17.0,
			LoToHiPercentile: 23.0,
		},
	}
}

// Load reads, parses and validates the TOML config at path. Keys absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the absolute limits and checks that required server
// fields are present.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required")
	}
	if c.Autopilot.MinChannelSats < AbsMinChannelSats {
		return fmt.Errorf("min_channel_sats (%d) below absolute minimum (%d)",
			c.Autopilot.MinChannelSats, AbsMinChannelSats)
	}
	if c.Autopilot.MaxChannelSats > AbsMaxChannelSats {
		return fmt.Errorf("max_channel_sats (%d) above absolute maximum (%d)",
			c.Autopilot.MaxChannelSats, AbsMaxChannelSats)
	}
	if c.Autopilot.MinChannelSats > c.Autopilot.MaxChannelSats {
		return fmt.Errorf("min_channel_sats > max_channel_sats")
	}
	if c.Autopilot.MaxProposals > AbsMaxProposals {
		return fmt.Errorf("max_proposals (%d) above absolute maximum (%d)",
			c.Autopilot.MaxProposals, AbsMaxProposals)
	}
	if c.Fees.DefaultPPM > AbsMaxFeePPM {
		return fmt.Errorf("default_ppm (%d) above absolute maximum (%d)",
			c.Fees.DefaultPPM, AbsMaxFeePPM)
	}
	if c.Rebalancer.TriggerProbability < 0.0 || c.Rebalancer.TriggerProbability > 1.0 {
		return fmt.Errorf("trigger_probability must be between 0.0 and 1.0")
	}
	if c.Rebalancer.MaxSpendablePercent >= 100.0 || c.Rebalancer.MaxSpendablePercent <= 0.0 {
		return fmt.Errorf("max_spendable_percent must be between 0 and 100")
	}
	if _, err := os.Stat(c.Server.TLSCertPath); err != nil {
		return fmt.Errorf("TLS cert not found at %s: %w", c.Server.TLSCertPath, err)
	}
	return nil
}
