// Package swap tracks in-memory metadata about ongoing and completed swaps
// for the CLI's `history` surface and for recovery operations
// that need to enumerate swaps without reopening every state record.
// Grounded on the protocol/swap package (referenced by
// bob/protocol.go's pswap.NewInfo/pswap.Info/AddSwap, and
// protocol/backend/backend_test.go's use of the same Manager shape), which
// the pack's retrieval filtered down to its test file only; the surface
// below is reconstructed from those call sites.
package swap

import (
	"fmt"
	"sync"

	"github.com/jude-swap/swap/common"
)

// Info is a snapshot of one swap's negotiated amounts and current status,
// the data the CLI's `history` subcommand and the
// `GetOngoingSwap` RPC method report.
type Info struct {
	mu sync.Mutex

	id             string
	provides       common.ProvidesCoin
	providedAmount float64
	receivedAmount float64
	exchangeRate   common.ExchangeRate
	status         common.Status

	statusCh chan common.Status
}

// NewInfo constructs an Info for a freshly started swap.
func NewInfo(id string, provides common.ProvidesCoin, providedAmount, receivedAmount float64,
	rate common.ExchangeRate, status common.Status) *Info {
	return &Info{
		id:             id,
		provides:       provides,
		providedAmount: providedAmount,
		receivedAmount: receivedAmount,
		exchangeRate:   rate,
		status:         status,
		statusCh:       make(chan common.Status, 16),
	}
}

// ID returns the swap's UUID.
func (i *Info) ID() string { return i.id }

// Provides reports which coin this party is providing.
func (i *Info) Provides() common.ProvidesCoin { return i.provides }

// ProvidedAmount returns the amount this party is providing.
func (i *Info) ProvidedAmount() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.providedAmount
}

// ReceivedAmount returns the amount received, or expected to be received,
// at the end of the swap.
func (i *Info) ReceivedAmount() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.receivedAmount
}

// Status returns the swap's current lifecycle status.
func (i *Info) Status() common.Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// SetStatus updates the swap's lifecycle status, called by the state
// machine driver after every transition that changes status (Ongoing →
// Success/Refunded/Aborted/Punished), and notifies any subscriber waiting
// on StatusCh. Once a terminal status is set, StatusCh is closed after
// delivering it — no further transitions follow a terminal state.
func (i *Info) SetStatus(s common.Status) {
	i.mu.Lock()
	i.status = s
	terminal := s != common.Ongoing
	i.mu.Unlock()

	select {
	case i.statusCh <- s:
	default:
	}
	if terminal {
		close(i.statusCh)
	}
}

// StatusCh returns the channel the rpc websocket layer subscribes to for
// this swap's status changes. It is closed once a terminal status is
// reached.
func (i *Info) StatusCh() <-chan common.Status {
	return i.statusCh
}

// Manager tracks every swap this node has started, for the CLI `history`
// subcommand and for recovery operations to enumerate candidates without
// scanning the whole database.
type Manager struct {
	mu    sync.Mutex
	swaps map[string]*Info
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{swaps: make(map[string]*Info)}
}

// AddSwap registers a new swap's Info with the manager.
func (m *Manager) AddSwap(info *Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.swaps[info.ID()]; exists {
		return fmt.Errorf("swap: swap %s already registered", info.ID())
	}
	m.swaps[info.ID()] = info
	return nil
}

// GetOngoingSwap returns the Info for a swap, if known.
func (m *Manager) GetOngoingSwap(id string) (*Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.swaps[id]
	return info, ok
}

// GetSwap returns the Info for a swap regardless of status, for callers
// (recovery operations, the rpc layer) that don't know up front whether a
// swap is still ongoing.
func (m *Manager) GetSwap(id string) (*Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.swaps[id]
	return info, ok
}

// GetPastSwaps returns every swap that has reached a terminal status.
func (m *Manager) GetPastSwaps() []*Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Info
	for _, info := range m.swaps {
		if info.Status() != common.Ongoing {
			out = append(out, info)
		}
	}
	return out
}

// GetOngoingSwaps returns every swap still in progress, the set a CLI
// `resume` scan or a shutdown-time warning would enumerate.
func (m *Manager) GetOngoingSwaps() []*Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Info
	for _, info := range m.swaps {
		if info.Status() == common.Ongoing {
			out = append(out, info)
		}
	}
	return out
}
