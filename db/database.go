// Package db implements the persistence adapter: an append-or-overwrite
// per-swap-id latest-state store, plus a peer-id
// mapping, behind a single capability interface. Grounded directly on
// bingcicle-atomic-swap/protocol/swap/manager.go's db.GetAllSwaps /
// db.PutSwap / db.GetSwap call sites, whose own Database type the pack's
// retrieval filtered out — reconstructed here against the same
// github.com/ChainSafe/chaindb backing store that manager.go's error
// handling (errors.Is(chaindb.ErrKeyNotFound, err)) shows it uses.
package db

import (
	"github.com/jude-swap/swap/protocol"
)

// Database is the persistence capability the protocol state machines and
// the swap.Manager consume. Exactly one latest StateRecord is
// kept per swap id; writes overwrite, they never append a history.
type Database interface {
	PutSwap(record *protocol.StateRecord) error
	GetSwap(swapID string) (*protocol.StateRecord, error)
	GetAllSwaps() ([]*protocol.StateRecord, error)
	DeleteSwap(swapID string) error

	PutPeerID(swapID string, peerID string) error
	GetPeerID(swapID string) (string, error)

	Close() error
}
