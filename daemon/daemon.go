// Package daemon wires together the persistence, networking, and wallet
// capabilities into the concrete rpc.Backend and net.Handler implementation
// swapd runs: starting Alice-initiated swaps, accepting Bob-initiated
// (inbound) swaps, resuming every persisted swap at startup, and performing
// the three C6 recovery operations on demand. Grounded on
// original_source/swap/src/protocol/alice.rs's EventLoop/Behaviour wiring
// and bingcicle-atomic-swap/protocol/backend's Backend struct shape, which
// bundles exactly this set of capabilities behind one type satisfying the
// rpc package's Backend interface.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/db"
	"github.com/jude-swap/swap/jude"
	pnet "github.com/jude-swap/swap/net"
	"github.com/jude-swap/swap/net/message"
	"github.com/jude-swap/swap/protocol"
	"github.com/jude-swap/swap/protocol/alice"
	"github.com/jude-swap/swap/protocol/bob"
	pswap "github.com/jude-swap/swap/protocol/swap"
	"github.com/jude-swap/swap/rpc"
)

var log = logging.Logger("daemon")

const rendezvousTTL = 30 * time.Minute

// Config bundles every capability and negotiated-default the daemon package
// needs but does not construct itself; cmd/swapd builds each of these from
// flags/config files and hands them in as one bundle.
type Config struct {
	Ctx context.Context
	Cfg *common.Config

	DB   db.Database
	Host *pnet.Host
	BTC  bitcoin.Wallet
	Jude jude.Wallet

	// ExchangeRate prices 1 JUDE in BTC, used to size Bob's side of an
	// inbound swap whose counterparty only proposes a JUDE amount. A real
	// deployment would source this from an oracle or order book; pricing
	// discovery is explicitly out of scope for this protocol layer.
	ExchangeRate common.ExchangeRate

	// RedeemAddress and PunishAddress are this node's own BTC addresses,
	// used when it plays Alice. RefundAddress and ChangeScript are used
	// when it plays Bob.
	RedeemAddress string
	PunishAddress string
	RefundAddress string
	ChangeScript  []byte
}

// Daemon implements both rpc.Backend (the swapd RPC surface) and
// net.Handler (inbound swap-initiation routing).
type Daemon struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *common.Config

	database db.Database
	host     *pnet.Host
	btc      bitcoin.Wallet
	judeW    jude.Wallet

	exchangeRate  common.ExchangeRate
	redeemAddress string
	punishAddress string
	refundAddress string
	changeScript  []byte

	manager    *pswap.Manager
	rendezvous *pnet.Rendezvous

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewDaemon constructs a Daemon bound to cfg and installs it as the Host's
// inbound-message handler.
func NewDaemon(cfg *Config) *Daemon {
	ctx, cancel := context.WithCancel(cfg.Ctx)

	d := &Daemon{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg.Cfg,
		database:      cfg.DB,
		host:          cfg.Host,
		btc:           cfg.BTC,
		judeW:         cfg.Jude,
		exchangeRate:  cfg.ExchangeRate,
		redeemAddress: cfg.RedeemAddress,
		punishAddress: cfg.PunishAddress,
		refundAddress: cfg.RefundAddress,
		changeScript:  cfg.ChangeScript,
		manager:       pswap.NewManager(),
		rendezvous:    pnet.NewRendezvous(rendezvousTTL),
		running:       make(map[string]context.CancelFunc),
	}

	cfg.Host.SetHandlers(d)
	return d
}

// Start resumes every persisted, non-terminal swap found in the database.
// Called once by cmd/swapd after construction.
func (d *Daemon) Start() error {
	records, err := d.database.GetAllSwaps()
	if err != nil {
		return fmt.Errorf("daemon: failed to load persisted swaps: %w", err)
	}

	for _, record := range records {
		if err := d.resumeRecord(record); err != nil {
			log.Warnf("failed to resume swap %s: %s", record.SwapID, err)
		}
	}
	return nil
}

// Ctx implements rpc.Backend.
func (d *Daemon) Ctx() context.Context { return d.ctx }

// Env implements rpc.Backend.
func (d *Daemon) Env() common.Environment { return d.cfg.Env }

// SwapManager implements rpc.Backend.
func (d *Daemon) SwapManager() *pswap.Manager { return d.manager }

// Host implements rpc.Backend.
func (d *Daemon) Host() *pnet.Host { return d.host }

// Shutdown implements rpc.Backend: it cancels every running swap's context,
// letting each finish persisting its current state before the process
// exits.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, cancel := range d.running {
		log.Infof("shutting down swap %s", id)
		cancel()
	}
	d.cancel()
}

// HandleInitiateMessage implements net.Handler: it accepts an inbound
// SendKeysMessage from a counterparty acting as Alice, opens a reciprocal
// event loop back to her, seeds it with the message that triggered this
// call (so Bob's own inline protocol.RunHandshake can Recv it), and starts
// the swap as Bob in the background.
func (d *Daemon) HandleInitiateMessage(msg *message.SendKeysMessage) (pnet.SwapState, pnet.Message, error) {
	swapID := msg.SwapID
	if swapID == "" {
		swapID = uuid.NewString()
	}

	// The stream that carried msg has already been closed by Host.handleStream
	// (it reads exactly one message per stream); open a fresh outbound
	// stream back to whichever peer most recently connected to us so the
	// rest of the handshake has a live event loop. A production deployment
	// keeps the originating peer.ID from the inbound connection instead of
	// guessing; since Host doesn't currently surface it to the Handler
	// interface, the most recently connected peer is used here.
	peers := d.host.Peers()
	if len(peers) == 0 {
		return nil, nil, fmt.Errorf("daemon: no connected peer to respond to swap %s", swapID)
	}
	counterparty := peers[len(peers)-1]

	handle, err := d.host.OpenEventLoop(d.ctx, swapID, counterparty)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to open reciprocal event loop: %w", err)
	}
	if err := d.host.DeliverToSwap(swapID, msg); err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to deliver initiate message: %w", err)
	}
	if err := d.database.PutPeerID(swapID, counterparty.String()); err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to record counterparty for swap %s: %w", swapID, err)
	}

	judeAmount := common.JudeToPiconero(msg.ProvidedAmount)
	btcAmount := d.exchangeRate.ToBtc(judeAmount)

	info := pswap.NewInfo(swapID, common.ProvidesBtc, btcAmount.AsBtc(), judeAmount.AsJude(), d.exchangeRate, common.Ongoing)
	if err := d.manager.AddSwap(info); err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to register swap %s: %w", swapID, err)
	}

	deps := &bob.Deps{
		BTC:  d.btc,
		Jude: d.judeW,
		Net:  handle,
		DB:   d.database,
		Cfg:  d.cfg,
		Info: info,
	}
	state := &bob.Started{
		BtcAmount:     btcAmount,
		JudeAmount:    judeAmount,
		ChangeScript:  d.changeScript,
		RefundAddress: d.refundAddress,
	}
	swap := bob.NewSwap(swapID, state, deps)

	d.runBob(swapID, swap)

	return handle.(pnet.SwapState), nil, nil
}

// BuyJude implements rpc.Backend: it dials a seller, runs the handshake as
// Alice, and starts the swap in the background.
func (d *Daemon) BuyJude(ctx context.Context, peerMultiaddr string, btcAmount common.BtcAmount, judeAmount common.JudeAmount) (string, error) {
	maddr, err := multiaddr.NewMultiaddr(peerMultiaddr)
	if err != nil {
		return "", fmt.Errorf("daemon: invalid peer multiaddr: %w", err)
	}
	addrInfo, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return "", fmt.Errorf("daemon: invalid peer multiaddr: %w", err)
	}

	swapID := uuid.NewString()
	handle, err := d.host.OpenEventLoop(ctx, swapID, addrInfo.ID)
	if err != nil {
		return "", fmt.Errorf("daemon: failed to open event loop to %s: %w", addrInfo.ID, err)
	}

	s3, _, err := protocol.RunHandshake(ctx, handle, protocol.HandshakeParams{
		SwapID:           swapID,
		Params:           d.btc.GetNetwork(),
		BtcAmount:        btcAmount,
		JudeAmount:       judeAmount,
		CancelTimelock:   d.cfg.CancelTimelock,
		PunishTimelock:   d.cfg.PunishTimelock,
		IsBtcProvider:    false,
		OwnRedeemAddress: d.redeemAddress,
		OwnPunishAddress: d.punishAddress,
	})
	if err != nil {
		_ = handle.Close()
		return "", fmt.Errorf("daemon: handshake with %s failed: %w", addrInfo.ID, err)
	}
	if err := d.database.PutPeerID(swapID, addrInfo.ID.String()); err != nil {
		return "", fmt.Errorf("daemon: failed to record counterparty for swap %s: %w", swapID, err)
	}

	info := pswap.NewInfo(swapID, common.ProvidesJude, judeAmount.AsJude(), btcAmount.AsBtc(), d.exchangeRate, common.Ongoing)
	if err := d.manager.AddSwap(info); err != nil {
		return "", fmt.Errorf("daemon: failed to register swap %s: %w", swapID, err)
	}

	deps := &alice.Deps{
		BTC:  d.btc,
		Jude: d.judeW,
		Net:  handle,
		DB:   d.database,
		Cfg:  d.cfg,
		Info: info,
	}
	swap := alice.NewSwap(swapID, &alice.Started{State3: s3}, deps)

	d.runAlice(swapID, swap)

	return swapID, nil
}

// Resume implements rpc.Backend: it restarts the Run loop for a persisted
// swap not currently tracked as in-progress.
func (d *Daemon) Resume(ctx context.Context, swapID string) (common.Status, error) {
	d.mu.Lock()
	_, alreadyRunning := d.running[swapID]
	d.mu.Unlock()
	if alreadyRunning {
		info, _ := d.manager.GetSwap(swapID)
		return info.Status(), nil
	}

	record, err := d.database.GetSwap(swapID)
	if err != nil {
		return common.Aborted, fmt.Errorf("daemon: failed to load swap %s: %w", swapID, err)
	}
	if err := d.resumeRecord(record); err != nil {
		return common.Aborted, err
	}

	info, ok := d.manager.GetSwap(swapID)
	if !ok {
		return common.Aborted, fmt.Errorf("daemon: swap %s not registered after resume", swapID)
	}
	return info.Status(), nil
}

// resumeRecord reconstructs and starts (in the background) a persisted
// swap's Run loop from its last recorded state, dispatching on Role.
func (d *Daemon) resumeRecord(record *protocol.StateRecord) error {
	switch record.Role {
	case protocol.RoleAlice:
		deps, state, err := d.aliceResumeDeps(record)
		if err != nil {
			return err
		}
		if state.IsTerminal() {
			return nil
		}
		swap, err := alice.Resume(record, deps)
		if err != nil {
			return err
		}
		d.runAlice(record.SwapID, swap)
	case protocol.RoleBob:
		deps, state, err := d.bobResumeDeps(record)
		if err != nil {
			return err
		}
		if state.IsTerminal() {
			return nil
		}
		swap, err := bob.Resume(record, deps)
		if err != nil {
			return err
		}
		d.runBob(record.SwapID, swap)
	default:
		return fmt.Errorf("daemon: unknown role %v for swap %s", record.Role, record.SwapID)
	}
	return nil
}

func (d *Daemon) aliceResumeDeps(record *protocol.StateRecord) (*alice.Deps, alice.State, error) {
	peekSwap, err := alice.Resume(record, nil)
	if err != nil {
		return nil, nil, err
	}
	tmp := peekSwap.State

	peerIDStr, err := d.database.GetPeerID(record.SwapID)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: no counterparty recorded for swap %s: %w", record.SwapID, err)
	}
	counterparty, err := peer.Decode(peerIDStr)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: invalid peer id for swap %s: %w", record.SwapID, err)
	}
	handle, err := d.host.OpenEventLoop(d.ctx, record.SwapID, counterparty)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to reconnect for swap %s: %w", record.SwapID, err)
	}

	info, ok := d.manager.GetSwap(record.SwapID)
	if !ok {
		btcAmount, judeAmount := 0.0, 0.0
		if s3, ok := alice.State3Of(tmp); ok {
			btcAmount, judeAmount = s3.BtcAmount.AsBtc(), s3.JudeAmount.AsJude()
		}
		info = pswap.NewInfo(record.SwapID, common.ProvidesJude, judeAmount, btcAmount, d.exchangeRate, alice.Status(tmp))
		if err := d.manager.AddSwap(info); err != nil {
			return nil, nil, err
		}
	}

	return &alice.Deps{
		BTC:  d.btc,
		Jude: d.judeW,
		Net:  handle,
		DB:   d.database,
		Cfg:  d.cfg,
		Info: info,
	}, tmp, nil
}

func (d *Daemon) bobResumeDeps(record *protocol.StateRecord) (*bob.Deps, bob.State, error) {
	peekSwap, err := bob.Resume(record, nil)
	if err != nil {
		return nil, nil, err
	}
	tmp := peekSwap.State

	peerIDStr, err := d.database.GetPeerID(record.SwapID)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: no counterparty recorded for swap %s: %w", record.SwapID, err)
	}
	counterparty, err := peer.Decode(peerIDStr)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: invalid peer id for swap %s: %w", record.SwapID, err)
	}
	handle, err := d.host.OpenEventLoop(d.ctx, record.SwapID, counterparty)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon: failed to reconnect for swap %s: %w", record.SwapID, err)
	}

	info, ok := d.manager.GetSwap(record.SwapID)
	if !ok {
		btcAmount, judeAmount := 0.0, 0.0
		if s3, ok := bob.State3Of(tmp); ok {
			btcAmount, judeAmount = s3.BtcAmount.AsBtc(), s3.JudeAmount.AsJude()
		}
		info = pswap.NewInfo(record.SwapID, common.ProvidesBtc, btcAmount, judeAmount, d.exchangeRate, bob.Status(tmp))
		if err := d.manager.AddSwap(info); err != nil {
			return nil, nil, err
		}
	}

	return &bob.Deps{
		BTC:  d.btc,
		Jude: d.judeW,
		Net:  handle,
		DB:   d.database,
		Cfg:  d.cfg,
		Info: info,
	}, tmp, nil
}

func (d *Daemon) runAlice(swapID string, swap *alice.Swap) {
	runCtx, cancel := context.WithCancel(d.ctx)
	d.mu.Lock()
	d.running[swapID] = cancel
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.running, swapID)
			d.mu.Unlock()
			cancel()
		}()
		if _, err := swap.Run(runCtx); err != nil {
			log.Warnf("swap %s exited: %s", swapID, err)
		}
	}()
}

func (d *Daemon) runBob(swapID string, swap *bob.Swap) {
	runCtx, cancel := context.WithCancel(d.ctx)
	d.mu.Lock()
	d.running[swapID] = cancel
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.running, swapID)
			d.mu.Unlock()
			cancel()
		}()
		if _, err := swap.Run(runCtx); err != nil {
			log.Warnf("swap %s exited: %s", swapID, err)
		}
	}()
}

// Cancel implements rpc.Backend.
func (d *Daemon) Cancel(ctx context.Context, swapID string) (common.Status, error) {
	record, err := d.database.GetSwap(swapID)
	if err != nil {
		return common.Aborted, err
	}

	switch record.Role {
	case protocol.RoleAlice:
		deps, state, err := d.aliceResumeDeps(record)
		if err != nil {
			return common.Aborted, err
		}
		next, err := alice.Cancel(ctx, deps, state)
		if err != nil {
			return common.Aborted, err
		}
		if err := alice.Persist(d.database, swapID, next); err != nil {
			return common.Aborted, err
		}
		return alice.Status(next), nil
	case protocol.RoleBob:
		deps, state, err := d.bobResumeDeps(record)
		if err != nil {
			return common.Aborted, err
		}
		next, err := bob.Cancel(ctx, deps, state)
		if err != nil {
			return common.Aborted, err
		}
		if err := bob.Persist(d.database, swapID, next); err != nil {
			return common.Aborted, err
		}
		return bob.Status(next), nil
	default:
		return common.Aborted, fmt.Errorf("daemon: unknown role for swap %s", swapID)
	}
}

// Refund implements rpc.Backend: Alice-only, per spec.
func (d *Daemon) Refund(ctx context.Context, swapID string) (common.Status, error) {
	record, err := d.database.GetSwap(swapID)
	if err != nil {
		return common.Aborted, err
	}
	if record.Role != protocol.RoleAlice {
		return common.Aborted, fmt.Errorf("daemon: refund is only available to the JUDE-holding side")
	}

	deps, state, err := d.aliceResumeDeps(record)
	if err != nil {
		return common.Aborted, err
	}
	next, err := alice.Refund(ctx, deps, state)
	if err != nil {
		return common.Aborted, err
	}
	if err := alice.Persist(d.database, swapID, next); err != nil {
		return common.Aborted, err
	}
	return alice.Status(next), nil
}

// JudeRecovery implements rpc.Backend: Bob-only, valid only from
// BtcRedeemed, per spec — Bob is the side that holds the joint JUDE spend
// key but may not have finished sweeping it.
func (d *Daemon) JudeRecovery(ctx context.Context, swapID string) (*rpc.JudeRecoveryResult, error) {
	record, err := d.database.GetSwap(swapID)
	if err != nil {
		return nil, err
	}
	if record.Role != protocol.RoleBob {
		return nil, fmt.Errorf("daemon: jude-recovery is only available to the BTC-holding side")
	}

	deps, state, err := d.bobResumeDeps(record)
	if err != nil {
		return nil, err
	}

	info, err := bob.JudeRecovery(ctx, deps, state)
	if err != nil {
		return nil, err
	}
	return &rpc.JudeRecoveryResult{
		Address:  string(info.Address),
		SpendKey: fmt.Sprintf("%x", info.SpendKey),
		ViewKey:  fmt.Sprintf("%x", info.ViewKey),
	}, nil
}

// ListSellers implements rpc.Backend. Remote rendezvous discovery requires
// a dedicated wire protocol this peripheral feature doesn't implement; only
// this node's own embedded rendezvous registry (populated by sellers that
// chose this node as their rendezvous point) can be queried.
func (d *Daemon) ListSellers(ctx context.Context, rendezvousPoint string) ([]rpc.SellerResult, error) {
	if rendezvousPoint != "" && rendezvousPoint != d.host.AddrInfo().ID.String() {
		return nil, fmt.Errorf("daemon: this node only serves its own rendezvous registry, not %s", rendezvousPoint)
	}

	ns := pnet.NamespaceFor(d.cfg.Env == common.Mainnet)
	sellers, err := d.rendezvous.Discover(ctx, ns)
	if err != nil {
		return nil, err
	}

	out := make([]rpc.SellerResult, 0, len(sellers))
	for _, s := range sellers {
		var addrs []string
		for _, a := range s.AddrInfo.Addrs {
			addrs = append(addrs, a.String())
		}
		out = append(out, rpc.SellerResult{PeerID: s.AddrInfo.ID.String(), Addrs: addrs})
	}
	return out, nil
}

// Balance implements rpc.Backend.
func (d *Daemon) Balance(ctx context.Context) (*rpc.BalanceResult, error) {
	bal, err := d.btc.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return &rpc.BalanceResult{ConfirmedBalance: bal}, nil
}

// WithdrawBtc implements rpc.Backend.
func (d *Daemon) WithdrawBtc(ctx context.Context, addr string, amount common.BtcAmount, all bool) (string, error) {
	txid, err := d.btc.Withdraw(ctx, addr, amount, all)
	if err != nil {
		return "", err
	}
	return txid.String(), nil
}

// ExportBitcoinWallet implements rpc.Backend. The BTC wallet's keychain is
// an external capability this protocol never holds directly (see
// bitcoin.Wallet's NewAddress/Balance/Withdraw stubs), so there is no key
// material here to export; this surfaces that constraint to the caller
// instead of silently no-op'ing.
func (d *Daemon) ExportBitcoinWallet(ctx context.Context, path string) error {
	return fmt.Errorf("daemon: this node's BTC wallet keys are held by an external keychain binding, not exportable here")
}
