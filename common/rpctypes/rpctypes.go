// Package rpctypes defines the JSON-RPC 2.0 envelope and the per-method
// request/response payloads exchanged between swapcli/wsclient and swapd's
// rpc package. Grounded on bingcicle-atomic-swap/common/rpctypes, whose
// Request/Response/Error envelope and per-namespace request/response
// structs this follows directly, trimmed to the namespaces and methods
// this protocol's daemon and recovery operations expose.
package rpctypes

import "encoding/json"

// DefaultJSONRPCVersion is the only JSON-RPC version swapd's server and its
// clients speak.
const DefaultJSONRPCVersion = "2.0"

// Request is the envelope written to the websocket connection by wsclient;
// gorilla/rpc handles this envelope for plain HTTP POST requests.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      uint64          `json:"id"`
}

// Response mirrors Request for the reply direction.
type Response struct {
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      uint64          `json:"id,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// SwapIDRequest identifies a single swap by id; shared by Cancel, Refund,
// JudeRecovery, and GetOngoingSwap/GetPastSwap.
type SwapIDRequest struct {
	ID string `json:"id"`
}

// StatusResponse reports the resulting status of a recovery operation or a
// swap lookup.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JudeRecoveryResponse carries the re-derived JUDE key material printed back
// to a user whose automatic sweep wallet failed.
type JudeRecoveryResponse struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	SpendKey string `json:"spend_key_hex"`
	ViewKey  string `json:"view_key_hex"`
}

// SwapInfoResponse is the CLI `history` subcommand's per-swap view.
type SwapInfoResponse struct {
	ID             string  `json:"id"`
	Provides       string  `json:"provides"`
	ProvidedAmount float64 `json:"provided_amount"`
	ReceivedAmount float64 `json:"received_amount"`
	Status         string  `json:"status"`
}

// GetOngoingSwapsResponse lists every swap still in progress.
type GetOngoingSwapsResponse struct {
	Swaps []*SwapInfoResponse `json:"swaps"`
}

// GetPastSwapsResponse lists every swap that reached a terminal status.
type GetPastSwapsResponse struct {
	Swaps []*SwapInfoResponse `json:"swaps"`
}

// AddressesResponse lists this node's libp2p listening multiaddresses.
type AddressesResponse struct {
	Addrs []string `json:"addrs"`
}

// PeersResponse lists currently connected peer ids.
type PeersResponse struct {
	PeerIDs []string `json:"peer_ids"`
}

// VersionResponse reports swapd's version string, returned by the
// daemon.Version RPC method; no swapcli subcommand calls it.
type VersionResponse struct {
	Version string `json:"version"`
}

// ShutdownResponse is returned before swapd begins its graceful shutdown.
type ShutdownResponse struct {
	Ok bool `json:"ok"`
}

// SubscribeSwapStatusRequest asks the websocket server to stream status
// updates for one swap.
type SubscribeSwapStatusRequest struct {
	ID string `json:"id"`
}

// SubscribeSwapStatusResponse is written to the websocket connection each
// time the subscribed swap's status changes.
type SubscribeSwapStatusResponse struct {
	Status string `json:"status"`
}

// BuyJudeRequest asks swapd to dial a seller and start a swap as Alice.
type BuyJudeRequest struct {
	Multiaddr  string  `json:"multiaddr"`
	BtcAmount  float64 `json:"btc_amount"`
	JudeAmount float64 `json:"jude_amount"`
}

// BuyJudeResponse reports the id of the swap swapd just started.
type BuyJudeResponse struct {
	ID string `json:"id"`
}

// ResumeRequest asks swapd to restart the Run loop for an already-persisted
// swap that isn't currently tracked as in-progress.
type ResumeRequest struct {
	ID string `json:"id"`
}

// ListSellersRequest asks swapd to query a rendezvous point for currently
// registered sellers.
type ListSellersRequest struct {
	RendezvousPoint string `json:"rendezvous_point"`
}

// Seller is one rendezvous-discovered seller.
type Seller struct {
	PeerID string   `json:"peer_id"`
	Addrs  []string `json:"addrs"`
}

// ListSellersResponse lists every seller a rendezvous point reported.
type ListSellersResponse struct {
	Sellers []Seller `json:"sellers"`
}

// BalanceResponse reports the local BTC wallet's confirmed balance.
type BalanceResponse struct {
	ConfirmedBalanceSats uint64 `json:"confirmed_balance_sats"`
}

// WithdrawBtcRequest asks swapd to send BTC from its wallet to an address.
type WithdrawBtcRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount,omitempty"`
	All     bool   `json:"all,omitempty"`
}

// WithdrawBtcResponse reports the resulting transaction id.
type WithdrawBtcResponse struct {
	TxID string `json:"tx_id"`
}

// ExportBitcoinWalletRequest asks swapd to write its BTC key backup to path.
type ExportBitcoinWalletRequest struct {
	Path string `json:"path"`
}

// ExportBitcoinWalletResponse confirms where the key backup was written.
type ExportBitcoinWalletResponse struct {
	Path string `json:"path"`
}
