package ldkrpc

import (
	"context"
	"fmt"
	"sync"
)

// RecordingClient is an in-memory Client that returns preset responses
// and records every mutating call. It is exported so integration tests
// across packages can share one mock.
type RecordingClient struct {
	mu sync.Mutex

	NodeInfo          NodeInfo
	Balances          Balances
	Channels          []*Channel
	ForwardedPayments ForwardedPaymentsPage

	UpdateConfigCalls []*UpdateChannelConfigRequest
	ConnectPeerCalls  []*ConnectPeerRequest
	OpenChannelCalls  []*OpenChannelRequest
	CloseChannelCalls []*CloseChannelRequest
	ForceCloseCalls   []*ForceCloseChannelRequest
	Bolt11SendCalls   []*Bolt11SendRequest
}

// NewRecordingClient returns a mock with an empty node.
func NewRecordingClient() *RecordingClient {
	return &RecordingClient{
		NodeInfo: NodeInfo{
			NodeID: "mock_node_id_000000000000000000000000000000000000000000000000000000",
		},
	}
}

func (m *RecordingClient) GetNodeInfo(context.Context) (*NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.NodeInfo
	return &info, nil
}

func (m *RecordingClient) GetBalances(context.Context) (*Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.Balances
	return &bal, nil
}

func (m *RecordingClient) ListChannels(context.Context) ([]*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Channel(nil), m.Channels...), nil
}

func (m *RecordingClient) ListForwardedPayments(_ context.Context,
	_ *PageToken) (*ForwardedPaymentsPage, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	page := m.ForwardedPayments
	return &page, nil
}

func (m *RecordingClient) UpdateChannelConfig(_ context.Context,
	req *UpdateChannelConfigRequest) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateConfigCalls = append(m.UpdateConfigCalls, req)
	return nil
}

func (m *RecordingClient) ConnectPeer(_ context.Context, req *ConnectPeerRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectPeerCalls = append(m.ConnectPeerCalls, req)
	return nil
}

func (m *RecordingClient) OpenChannel(_ context.Context,
	req *OpenChannelRequest) (*OpenChannelResponse, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenChannelCalls = append(m.OpenChannelCalls, req)
	return &OpenChannelResponse{
		UserChannelID: fmt.Sprintf("mock_user_channel_%s", req.NodePubkey),
	}, nil
}

func (m *RecordingClient) CloseChannel(_ context.Context, req *CloseChannelRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseChannelCalls = append(m.CloseChannelCalls, req)
	return nil
}

func (m *RecordingClient) ForceCloseChannel(_ context.Context,
	req *ForceCloseChannelRequest) error {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceCloseCalls = append(m.ForceCloseCalls, req)
	return nil
}

func (m *RecordingClient) Bolt11Receive(_ context.Context,
	_ *Bolt11ReceiveRequest) (*Bolt11ReceiveResponse, error) {

	return &Bolt11ReceiveResponse{Invoice: "lnbcrt1mock_invoice"}, nil
}

func (m *RecordingClient) Bolt11Send(_ context.Context,
	req *Bolt11SendRequest) (*Bolt11SendResponse, error) {

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bolt11SendCalls = append(m.Bolt11SendCalls, req)
	return &Bolt11SendResponse{PaymentID: "mock_payment_id"}, nil
}

// MutationCount returns the total number of mutating RPC calls recorded.
func (m *RecordingClient) MutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.UpdateConfigCalls) + len(m.ConnectPeerCalls) +
		len(m.OpenChannelCalls) + len(m.CloseChannelCalls) +
		len(m.ForceCloseCalls) + len(m.Bolt11SendCalls)
}

var _ Client = (*RecordingClient)(nil)
