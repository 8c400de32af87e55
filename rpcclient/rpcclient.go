// Package rpcclient implements a plain HTTP JSON-RPC client for swapd,
// the synchronous half of swapcli's transport: one POST per call, decoded
// into the rpctypes response shape. Directly grounded on
// noot-atomic-swap/rpcclient/wsclient/wsclient.go's request/response
// marshalling (rpctypes.Request/Response envelope, gorilla/rpc-compatible
// JSON body) with the websocket plumbing dropped — everything here is a
// single request/response round trip, so there's no read-loop or
// subscription channel to manage.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jude-swap/swap/common/rpctypes"
)

// Client is a synchronous JSON-RPC client bound to one swapd HTTP endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient constructs a Client bound to endpoint (e.g. "http://127.0.0.1:5000").
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) call(method string, params, result interface{}) error {
	var raw json.RawMessage
	var err error
	if params != nil {
		// gorilla/rpc/v2's json2 codec decodes Params as a single-element
		// array ([1]interface{}{args}), not a bare object.
		raw, err = json.Marshal([1]interface{}{params})
		if err != nil {
			return fmt.Errorf("rpcclient: failed to marshal params: %w", err)
		}
	}

	req := &rpctypes.Request{
		JSONRPC: rpctypes.DefaultJSONRPCVersion,
		Method:  method,
		Params:  raw,
		ID:      0,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpcclient: failed to marshal request: %w", err)
	}

	httpResp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcclient: request to %s failed: %w", c.endpoint, err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("rpcclient: failed to read response: %w", err)
	}

	var resp rpctypes.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("rpcclient: failed to unmarshal response: %w (%s)", err, respBody)
	}

	if resp.Error != nil {
		return fmt.Errorf("swapd returned error: %s", resp.Error.Message)
	}

	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("rpcclient: failed to unmarshal result: %w", err)
	}
	return nil
}

// Version returns swapd's reported version string.
func (c *Client) Version() (string, error) {
	var resp rpctypes.VersionResponse
	if err := c.call("daemon.Version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// Shutdown asks swapd to begin a graceful shutdown.
func (c *Client) Shutdown() error {
	return c.call("daemon.Shutdown", nil, &rpctypes.ShutdownResponse{})
}

// Addresses lists swapd's libp2p listening multiaddresses.
func (c *Client) Addresses() ([]string, error) {
	var resp rpctypes.AddressesResponse
	if err := c.call("net.Addresses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addrs, nil
}

// Peers lists swapd's currently connected peer ids.
func (c *Client) Peers() ([]string, error) {
	var resp rpctypes.PeersResponse
	if err := c.call("net.Peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PeerIDs, nil
}

// ListSellers queries a rendezvous point for currently registered sellers.
func (c *Client) ListSellers(rendezvousPoint string) ([]rpctypes.Seller, error) {
	var resp rpctypes.ListSellersResponse
	req := &rpctypes.ListSellersRequest{RendezvousPoint: rendezvousPoint}
	if err := c.call("swap.ListSellers", req, &resp); err != nil {
		return nil, err
	}
	return resp.Sellers, nil
}

// BuyJude dials peerMultiaddr and starts a swap as the JUDE-providing side,
// returning the new swap's id immediately; the swap itself runs in the
// background on swapd.
func (c *Client) BuyJude(multiaddr string, btcAmount, judeAmount float64) (string, error) {
	var resp rpctypes.BuyJudeResponse
	req := &rpctypes.BuyJudeRequest{Multiaddr: multiaddr, BtcAmount: btcAmount, JudeAmount: judeAmount}
	if err := c.call("swap.BuyJude", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Resume restarts the Run loop for a persisted swap not currently tracked
// as in-progress.
func (c *Client) Resume(swapID string) (*rpctypes.StatusResponse, error) {
	var resp rpctypes.StatusResponse
	req := &rpctypes.ResumeRequest{ID: swapID}
	if err := c.call("swap.Resume", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel forces the cancel branch for a swap.
func (c *Client) Cancel(swapID string) (*rpctypes.StatusResponse, error) {
	var resp rpctypes.StatusResponse
	req := &rpctypes.SwapIDRequest{ID: swapID}
	if err := c.call("swap.Cancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refund forces Alice's refund recovery operation for a swap.
func (c *Client) Refund(swapID string) (*rpctypes.StatusResponse, error) {
	var resp rpctypes.StatusResponse
	req := &rpctypes.SwapIDRequest{ID: swapID}
	if err := c.call("swap.Refund", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JudeRecovery re-derives and returns the joint JUDE key material for a
// swap whose automatic sweep wallet failed.
func (c *Client) JudeRecovery(swapID string) (*rpctypes.JudeRecoveryResponse, error) {
	var resp rpctypes.JudeRecoveryResponse
	req := &rpctypes.SwapIDRequest{ID: swapID}
	if err := c.call("swap.JudeRecovery", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OngoingSwaps lists every swap still in progress.
func (c *Client) OngoingSwaps() ([]*rpctypes.SwapInfoResponse, error) {
	var resp rpctypes.GetOngoingSwapsResponse
	if err := c.call("swap.GetOngoingSwaps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Swaps, nil
}

// PastSwaps lists every swap that reached a terminal status.
func (c *Client) PastSwaps() ([]*rpctypes.SwapInfoResponse, error) {
	var resp rpctypes.GetPastSwapsResponse
	if err := c.call("swap.GetPastSwaps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Swaps, nil
}

// Balance reports the local BTC wallet's confirmed balance.
func (c *Client) Balance() (*rpctypes.BalanceResponse, error) {
	var resp rpctypes.BalanceResponse
	if err := c.call("wallet.Balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WithdrawBtc sends amount (or the full balance, if all is set) to addr.
func (c *Client) WithdrawBtc(addr, amount string, all bool) (string, error) {
	var resp rpctypes.WithdrawBtcResponse
	req := &rpctypes.WithdrawBtcRequest{Address: addr, Amount: amount, All: all}
	if err := c.call("wallet.Withdraw", req, &resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// ExportBitcoinWallet asks swapd to write its BTC key backup to path.
func (c *Client) ExportBitcoinWallet(path string) (string, error) {
	var resp rpctypes.ExportBitcoinWalletResponse
	req := &rpctypes.ExportBitcoinWalletRequest{Path: path}
	if err := c.call("wallet.Export", req, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}
