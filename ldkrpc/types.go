package ldkrpc

// Wire types for the LDK Server JSON API surface the daemon consumes.
// Optional fields are pointers so that absent and zero can be told apart
// and unmanaged channel config fields can be passed through untouched.

type NodeInfo struct {
	NodeID                 string `json:"node_id"`
	CurrentBestBlockHeight uint32 `json:"current_best_block_height,omitempty"`
}

type Balances struct {
	TotalOnchainBalanceSats     uint64 `json:"total_onchain_balance_sats"`
	SpendableOnchainBalanceSats uint64 `json:"spendable_onchain_balance_sats"`
	TotalLightningBalanceSats   uint64 `json:"total_lightning_balance_sats"`
}

type Channel struct {
	ChannelID            string         `json:"channel_id"`
	UserChannelID        string         `json:"user_channel_id"`
	CounterpartyNodeID   string         `json:"counterparty_node_id"`
	ChannelValueSats     uint64         `json:"channel_value_sats"`
	OutboundCapacityMsat uint64         `json:"outbound_capacity_msat"`
	InboundCapacityMsat  uint64         `json:"inbound_capacity_msat"`
	IsChannelReady       bool           `json:"is_channel_ready"`
	IsUsable             bool           `json:"is_usable"`
	Config               *ChannelConfig `json:"channel_config,omitempty"`
}

type ChannelConfig struct {
	ForwardingFeeBaseMsat               *uint32 `json:"forwarding_fee_base_msat,omitempty"`
	ForwardingFeeProportionalMillionths *uint32 `json:"forwarding_fee_proportional_millionths,omitempty"`
	CltvExpiryDelta                     *uint32 `json:"cltv_expiry_delta,omitempty"`
	ForceCloseAvoidanceMaxFeeSatoshis   *uint64 `json:"force_close_avoidance_max_fee_satoshis,omitempty"`
	AcceptUnderpayingHTLCs              *bool   `json:"accept_underpaying_htlcs,omitempty"`
	MaxDustHTLCExposure                 *string `json:"max_dust_htlc_exposure,omitempty"`
}

// BaseMsat returns the published base fee, zero when unset.
func (c *ChannelConfig) BaseMsat() uint32 {
	if c == nil || c.ForwardingFeeBaseMsat == nil {
		return 0
	}
	return *c.ForwardingFeeBaseMsat
}

// PPM returns the published proportional fee, zero when unset.
func (c *ChannelConfig) PPM() uint32 {
	if c == nil || c.ForwardingFeeProportionalMillionths == nil {
		return 0
	}
	return *c.ForwardingFeeProportionalMillionths
}

// PageToken is the cursor for paginated forwarded-payment listing.
type PageToken struct {
	Index uint64 `json:"index"`
	Token string `json:"token"`
}

type ForwardedPayment struct {
	PrevChannelID               string `json:"prev_channel_id"`
	NextChannelID               string `json:"next_channel_id"`
	PrevNodeID                  string `json:"prev_node_id"`
	NextNodeID                  string `json:"next_node_id"`
	TotalFeeEarnedMsat          uint64 `json:"total_fee_earned_msat"`
	OutboundAmountForwardedMsat uint64 `json:"outbound_amount_forwarded_msat"`
}

type ForwardedPaymentsPage struct {
	ForwardedPayments []ForwardedPayment `json:"forwarded_payments"`
	NextPageToken     *PageToken         `json:"next_page_token,omitempty"`
}

type UpdateChannelConfigRequest struct {
	UserChannelID      string         `json:"user_channel_id"`
	CounterpartyNodeID string         `json:"counterparty_node_id"`
	Config             *ChannelConfig `json:"channel_config"`
}

type ConnectPeerRequest struct {
	NodePubkey string `json:"node_pubkey"`
	Address    string `json:"address"`
	Persist    bool   `json:"persist"`
}

type OpenChannelRequest struct {
	NodePubkey             string         `json:"node_pubkey"`
	Address                string         `json:"address"`
	ChannelAmountSats      uint64         `json:"channel_amount_sats"`
	PushToCounterpartyMsat *uint64        `json:"push_to_counterparty_msat,omitempty"`
	Config                 *ChannelConfig `json:"channel_config,omitempty"`
	AnnounceChannel        bool           `json:"announce_channel"`
}

type OpenChannelResponse struct {
	UserChannelID string `json:"user_channel_id"`
}

type CloseChannelRequest struct {
	UserChannelID      string `json:"user_channel_id"`
	CounterpartyNodeID string `json:"counterparty_node_id"`
}

type ForceCloseChannelRequest struct {
	UserChannelID      string  `json:"user_channel_id"`
	CounterpartyNodeID string  `json:"counterparty_node_id"`
	ForceCloseReason   *string `json:"force_close_reason,omitempty"`
}

type Bolt11ReceiveRequest struct {
	AmountMsat  *uint64 `json:"amount_msat,omitempty"`
	Description string  `json:"description"`
	ExpirySecs  uint32  `json:"expiry_secs"`
}

type Bolt11ReceiveResponse struct {
	Invoice string `json:"invoice"`
}

// RouteParameters caps the pathfinding for a single payment.
type RouteParameters struct {
	MaxTotalRoutingFeeMsat          *uint64 `json:"max_total_routing_fee_msat,omitempty"`
	MaxTotalCltvExpiryDelta         uint32  `json:"max_total_cltv_expiry_delta"`
	MaxPathCount                    uint32  `json:"max_path_count"`
	MaxChannelSaturationPowerOfHalf uint32  `json:"max_channel_saturation_power_of_half"`
}

type Bolt11SendRequest struct {
	Invoice         string           `json:"invoice"`
	AmountMsat      *uint64          `json:"amount_msat,omitempty"`
	RouteParameters *RouteParameters `json:"route_parameters,omitempty"`
}

type Bolt11SendResponse struct {
	PaymentID string `json:"payment_id"`
}
