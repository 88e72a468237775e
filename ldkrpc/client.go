// Package ldkrpc is the client side of the LDK Server API. The policy
// engines program against the Client interface; production code uses the
// rate-limited retrying HTTP implementation and tests use RecordingClient.
package ldkrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/semaphore"
)

// Client is the LDK Server API surface consumed by the daemon.
type Client interface {
	GetNodeInfo(ctx context.Context) (*NodeInfo, error)
	GetBalances(ctx context.Context) (*Balances, error)
	ListChannels(ctx context.Context) ([]*Channel, error)
	ListForwardedPayments(ctx context.Context, token *PageToken) (*ForwardedPaymentsPage, error)
	UpdateChannelConfig(ctx context.Context, req *UpdateChannelConfigRequest) error
	ConnectPeer(ctx context.Context, req *ConnectPeerRequest) error
	OpenChannel(ctx context.Context, req *OpenChannelRequest) (*OpenChannelResponse, error)
	CloseChannel(ctx context.Context, req *CloseChannelRequest) error
	ForceCloseChannel(ctx context.Context, req *ForceCloseChannelRequest) error
	Bolt11Receive(ctx context.Context, req *Bolt11ReceiveRequest) (*Bolt11ReceiveResponse, error)
	Bolt11Send(ctx context.Context, req *Bolt11SendRequest) (*Bolt11SendResponse, error)
}

const (
	// maxRetries bounds attempts for idempotent reads. Mutating calls are
	// issued exactly once; a retried OpenChannel could double-spend.
	maxRetries = 3

	retryBaseDelay = time.Second
	rateLimitDelay = 100 * time.Millisecond
	requestTimeout = 30 * time.Second
)

// HTTPClient talks to a single LDK Server instance. All calls are
// serialized through a one-permit semaphore with a fixed post-call delay.
type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	sem     *semaphore.Weighted
}

// NewHTTPClient builds a client for the server at baseURL (host:port,
// no scheme) authenticated with apiKey, trusting only the certificate
// at tlsCertPath.
func NewHTTPClient(baseURL, apiKey, tlsCertPath string) (*HTTPClient, error) {
	certPEM, err := os.ReadFile(tlsCertPath)
	if err != nil {
		return nil, fmt.Errorf("read TLS cert %s: %w", tlsCertPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("no certificates parsed from %s", tlsCertPath)
	}

	return &HTTPClient{
		baseURL: "https://" + baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		},
		sem: semaphore.NewWeighted(1),
	}, nil
}

// call posts in as JSON to path and decodes the response into out. When
// retry is set, transient failures back off 1s, 2s, 4s before giving up.
func (c *HTTPClient) call(ctx context.Context, name, path string, in, out interface{}, retry bool) error {
	attempts := 1
	if retry {
		attempts = maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := c.post(ctx, path, in, out)
		if err == nil {
			log.Debugf("%s: success", name)
			return nil
		}
		lastErr = err

		if attempt < attempts-1 {
			delay := retryBaseDelay << uint(attempt)
			log.Warnf("%s: attempt %d failed (%v), retrying in %v",
				name, attempt+1, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if retry {
		return fmt.Errorf("%s: all %d attempts failed: %w", name, attempts, lastErr)
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out interface{}) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer func() {
		// Fixed delay before the permit is released keeps the request
		// rate bounded no matter how eager the callers are.
		time.Sleep(rateLimitDelay)
		c.sem.Release(1)
	}()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) GetNodeInfo(ctx context.Context) (*NodeInfo, error) {
	var resp NodeInfo
	err := c.call(ctx, "GetNodeInfo", "/getNodeInfo", struct{}{}, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetBalances(ctx context.Context) (*Balances, error) {
	var resp Balances
	err := c.call(ctx, "GetBalances", "/getBalances", struct{}{}, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListChannels(ctx context.Context) ([]*Channel, error) {
	var resp struct {
		Channels []*Channel `json:"channels"`
	}
	err := c.call(ctx, "ListChannels", "/listChannels", struct{}{}, &resp, true)
	if err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

func (c *HTTPClient) ListForwardedPayments(ctx context.Context,
	token *PageToken) (*ForwardedPaymentsPage, error) {

	req := struct {
		PageToken *PageToken `json:"page_token,omitempty"`
	}{PageToken: token}

	var resp ForwardedPaymentsPage
	err := c.call(ctx, "ListForwardedPayments", "/listForwardedPayments",
		&req, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateChannelConfig(ctx context.Context,
	req *UpdateChannelConfigRequest) error {

	return c.call(ctx, "UpdateChannelConfig", "/updateChannelConfig",
		req, nil, false)
}

func (c *HTTPClient) ConnectPeer(ctx context.Context, req *ConnectPeerRequest) error {
	return c.call(ctx, "ConnectPeer", "/connectPeer", req, nil, false)
}

func (c *HTTPClient) OpenChannel(ctx context.Context,
	req *OpenChannelRequest) (*OpenChannelResponse, error) {

	var resp OpenChannelResponse
	err := c.call(ctx, "OpenChannel", "/openChannel", req, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CloseChannel(ctx context.Context, req *CloseChannelRequest) error {
	return c.call(ctx, "CloseChannel", "/closeChannel", req, nil, false)
}

func (c *HTTPClient) ForceCloseChannel(ctx context.Context,
	req *ForceCloseChannelRequest) error {

	return c.call(ctx, "ForceCloseChannel", "/forceCloseChannel", req, nil, false)
}

func (c *HTTPClient) Bolt11Receive(ctx context.Context,
	req *Bolt11ReceiveRequest) (*Bolt11ReceiveResponse, error) {

	var resp Bolt11ReceiveResponse
	err := c.call(ctx, "Bolt11Receive", "/bolt11Receive", req, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Bolt11Send(ctx context.Context,
	req *Bolt11SendRequest) (*Bolt11SendResponse, error) {

	var resp Bolt11SendResponse
	err := c.call(ctx, "Bolt11Send", "/bolt11Send", req, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

var _ Client = (*HTTPClient)(nil)
