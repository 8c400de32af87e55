// Package rpc provides swapd's HTTP JSON-RPC and websocket surface for
// swapcli: a daemon namespace (version/shutdown), a net namespace
// (addresses/peers), a swap namespace (cancel/refund/jude-recovery/
// history/buy-jude/resume/list-sellers), and a wallet namespace
// (balance/withdraw/export), directly adapted from
// bingcicle-atomic-swap/rpc/server.go's Server/Config/NewServer shape —
// gorilla/rpc JSON codec, gorilla/mux routing of "/" and "/ws", and
// gorilla/handlers CORS wrapping, unchanged — with the namespaces and
// backend interface narrowed to this protocol's recovery-and-status
// surface instead of the teacher's offer/ETH-signer one.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	rpcv2 "github.com/gorilla/rpc/v2"
	logging "github.com/ipfs/go-log"

	"github.com/jude-swap/swap/common"
	pnet "github.com/jude-swap/swap/net"
	"github.com/jude-swap/swap/protocol/swap"
)

const (
	// DaemonNamespace exposes swapd lifecycle methods (version, shutdown).
	DaemonNamespace = "daemon"
	// NetNamespace exposes libp2p host introspection (addresses, peers).
	NetNamespace = "net"
	// SwapNamespace exposes recovery operations, swap history/status, swap
	// initiation (buy-jude, resume), and rendezvous seller listing.
	SwapNamespace = "swap"
	// WalletNamespace exposes the local BTC wallet's balance and withdrawal
	// operations.
	WalletNamespace = "wallet"
)

var log = logging.Logger("rpc")

// AllNamespaces returns every namespace swapd registers by default.
func AllNamespaces() map[string]struct{} {
	return map[string]struct{}{
		DaemonNamespace: {},
		NetNamespace:    {},
		SwapNamespace:   {},
		WalletNamespace: {},
	}
}

// JudeRecoveryResult is the re-derived JUDE key material a caller of
// Backend.JudeRecovery gets back.
type JudeRecoveryResult struct {
	Address  string
	SpendKey string
	ViewKey  string
}

// SellerResult is one rendezvous-discovered seller, the unit Backend.
// ListSellers returns.
type SellerResult struct {
	PeerID string
	Addrs  []string
}

// BalanceResult reports the local BTC wallet's balance.
type BalanceResult struct {
	ConfirmedBalance common.BtcAmount
}

// Backend is the capability surface swapd's daemon wiring provides to the
// rpc package; an external concrete type (daemon.Backend) implements this
// structurally so rpc never needs to import the protocol state machines or
// wallet packages directly.
type Backend interface {
	Ctx() context.Context
	Env() common.Environment
	SwapManager() *swap.Manager
	Host() *pnet.Host

	Cancel(ctx context.Context, swapID string) (common.Status, error)
	Refund(ctx context.Context, swapID string) (common.Status, error)
	JudeRecovery(ctx context.Context, swapID string) (*JudeRecoveryResult, error)

	// BuyJude dials peerMultiaddr, runs the handshake as Alice, and starts
	// the swap in the background, returning its id immediately.
	BuyJude(ctx context.Context, peerMultiaddr string, btcAmount common.BtcAmount, judeAmount common.JudeAmount) (string, error)
	// Resume restarts the Run loop for a swap that is persisted but not
	// currently tracked as in-progress by the swap manager (e.g. swapd was
	// restarted without picking it up, or a prior Run goroutine exited on
	// a non-fatal error).
	Resume(ctx context.Context, swapID string) (common.Status, error)
	// ListSellers queries a rendezvous point for currently registered
	// sellers.
	ListSellers(ctx context.Context, rendezvousPoint string) ([]SellerResult, error)

	// Balance reports the local BTC wallet's confirmed balance.
	Balance(ctx context.Context) (*BalanceResult, error)
	// WithdrawBtc sends amount (or the full balance, if all is set) to addr.
	WithdrawBtc(ctx context.Context, addr string, amount common.BtcAmount, all bool) (string, error)
	// ExportBitcoinWallet writes the node's BTC key backup to path.
	ExportBitcoinWallet(ctx context.Context, path string) error

	Shutdown()
}

// Server is swapd's JSON-RPC/websocket HTTP server.
type Server struct {
	ctx        context.Context
	listener   net.Listener
	httpServer *http.Server
}

// Config configures NewServer.
type Config struct {
	Ctx        context.Context
	Address    string // "ip:port"
	Backend    Backend
	Namespaces map[string]struct{}
}

// NewServer constructs (but does not start) swapd's RPC server.
func NewServer(cfg *Config) (*Server, error) {
	rpcServer := rpcv2.NewServer()
	rpcServer.RegisterCodec(NewCodec(), "application/json")

	serverCtx, serverCancel := context.WithCancel(cfg.Ctx)

	var err error
	for ns := range cfg.Namespaces {
		switch ns {
		case DaemonNamespace:
			err = rpcServer.RegisterService(NewDaemonService(cfg.Backend), DaemonNamespace)
		case NetNamespace:
			err = rpcServer.RegisterService(NewNetService(cfg.Backend), NetNamespace)
		case SwapNamespace:
			err = rpcServer.RegisterService(NewSwapService(cfg.Backend), SwapNamespace)
		case WalletNamespace:
			err = rpcServer.RegisterService(NewWalletService(cfg.Backend), WalletNamespace)
		default:
			err = fmt.Errorf("rpc: unknown namespace %q", ns)
		}
		if err != nil {
			serverCancel()
			return nil, err
		}
	}

	ws := newWsServer(serverCtx, cfg.Backend)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(serverCtx, "tcp", cfg.Address)
	if err != nil {
		serverCancel()
		return nil, err
	}

	r := mux.NewRouter()
	r.Handle("/", rpcServer)
	r.Handle("/ws", ws)

	headersOk := handlers.AllowedHeaders([]string{"content-type"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"})
	originsOk := handlers.AllowedOrigins([]string{"*"})

	httpServer := &http.Server{
		Addr:              ln.Addr().String(),
		ReadHeaderTimeout: time.Second,
		Handler:           handlers.CORS(headersOk, methodsOk, originsOk)(r),
		BaseContext: func(net.Listener) context.Context {
			return serverCtx
		},
	}

	return &Server{ctx: serverCtx, listener: ln, httpServer: httpServer}, nil
}

// HttpURL returns the URL used for plain JSON-RPC requests. //nolint:revive
func (s *Server) HttpURL() string {
	return fmt.Sprintf("http://%s", s.httpServer.Addr)
}

// WsURL returns the URL used for websocket subscriptions.
func (s *Server) WsURL() string {
	return fmt.Sprintf("ws://%s/ws", s.httpServer.Addr)
}

// Start serves JSON-RPC and websocket requests until ctx is cancelled.
func (s *Server) Start() error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	log.Infof("starting RPC server on %s", s.HttpURL())
	log.Infof("starting websocket server on %s", s.WsURL())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-s.ctx.Done():
		err := s.httpServer.Shutdown(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("http server shutdown errored: %s", err)
		}
		return s.ctx.Err()
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("RPC server failed: %s", err)
		} else {
			log.Info("RPC server shut down")
		}
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	return s.httpServer.Shutdown(s.ctx)
}
