// rendezvous.go implements the peripheral seller-discovery protocol named
// in spec §6 ("a rendezvous protocol for seller discovery (peripheral)"):
// a libp2p node at which sellers (Bob/ASB-style JUDE-for-BTC providers)
// register under a namespace and clients discover them. Directly grounded
// on original_source/swap/src/network/rendezvous.rs's XmrBtcNamespace
// (mainnet/testnet namespace split) translated to this Host's libp2p
// primitives; not a full libp2p rendezvous-protocol implementation (that
// lives in go-libp2p's own rendezvous module), just the namespace +
// registration bookkeeping this protocol's CLI `list-sellers` needs.
package net

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Namespace selects which rendezvous namespace a registration or discovery
// request targets, keeping mainnet and testnet sellers from being
// discoverable by clients on the other network.
type Namespace string

const (
	// MainnetNamespace is the rendezvous namespace mainnet sellers register
	// under.
	MainnetNamespace Namespace = "jude-swap/mainnet"
	// TestnetNamespace is the rendezvous namespace stagenet/testnet sellers
	// register under.
	TestnetNamespace Namespace = "jude-swap/testnet"
)

// SellerInfo is what a rendezvous point returns for one registered seller:
// its dialable address info and how long the registration is valid for.
type SellerInfo struct {
	AddrInfo peer.AddrInfo
	Expiry   time.Time
}

// Rendezvous is a minimal in-memory rendezvous point: a process a seller
// registers with periodically, and a client queries to discover currently
// live sellers. A production deployment runs this colocated with (or as)
// one of the bootnodes named in Config.Bootnodes; this implementation
// keeps registrations in memory only, matching the peripheral status spec
// §1 gives the rendezvous point relative to the swap protocol core.
type Rendezvous struct {
	mu    sync.Mutex
	byNS  map[Namespace]map[peer.ID]SellerInfo
	ttl   time.Duration
}

// NewRendezvous constructs an empty rendezvous point with the given
// registration time-to-live.
func NewRendezvous(ttl time.Duration) *Rendezvous {
	return &Rendezvous{
		byNS: make(map[Namespace]map[peer.ID]SellerInfo),
		ttl:  ttl,
	}
}

// Register records (or refreshes) host's own registration under ns, the
// operation a seller's swapd repeats on a timer so its entry doesn't expire.
func (r *Rendezvous) Register(ns Namespace, info peer.AddrInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byNS[ns] == nil {
		r.byNS[ns] = make(map[peer.ID]SellerInfo)
	}
	r.byNS[ns][info.ID] = SellerInfo{AddrInfo: info, Expiry: time.Now().Add(r.ttl)}
}

// Unregister removes id's registration under ns, called on graceful
// shutdown so a departed seller doesn't linger in discovery results until
// its TTL lapses.
func (r *Rendezvous) Unregister(ns Namespace, id peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byNS[ns], id)
}

// Discover returns every currently unexpired seller registered under ns,
// the call the CLI's `list-sellers` subcommand drives (per §6's
// "a rendezvous protocol for seller discovery").
func (r *Rendezvous) Discover(ctx context.Context, ns Namespace) ([]SellerInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var out []SellerInfo
	for id, info := range r.byNS[ns] {
		if info.Expiry.Before(now) {
			delete(r.byNS[ns], id)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// NamespaceFor selects the rendezvous namespace matching a network
// environment: mainnet uses MainnetNamespace, everything else (stagenet,
// regtest) uses TestnetNamespace, mirroring
// original_source/swap/src/network/rendezvous.rs's two-namespace split.
func NamespaceFor(isMainnet bool) Namespace {
	if isMainnet {
		return MainnetNamespace
	}
	return TestnetNamespace
}

// ErrRendezvousPointRequired is returned by callers that need a
// rendezvous-point multiaddress but weren't given one.
var ErrRendezvousPointRequired = fmt.Errorf("net: rendezvous point address is required")
