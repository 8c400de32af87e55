// memory.go implements Database entirely in-process, for unit tests that
// exercise the state machines without a badger file on disk.
package db

import (
	"sync"

	"github.com/jude-swap/swap/protocol"
)

// MemoryDB implements Database with plain maps guarded by a mutex.
type MemoryDB struct {
	mu      sync.Mutex
	swaps   map[string]*protocol.StateRecord
	peerIDs map[string]string
}

// NewMemoryDB constructs an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		swaps:   make(map[string]*protocol.StateRecord),
		peerIDs: make(map[string]string),
	}
}

// PutSwap writes (overwriting any prior value) the latest StateRecord for a
// swap id.
func (m *MemoryDB) PutSwap(record *protocol.StateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swaps[record.SwapID] = record
	return nil
}

// GetSwap reads the latest StateRecord for a swap id.
func (m *MemoryDB) GetSwap(swapID string) (*protocol.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.swaps[swapID]
	if !ok {
		return nil, ErrSwapNotFound
	}
	return record, nil
}

// GetAllSwaps returns every persisted StateRecord.
func (m *MemoryDB) GetAllSwaps() ([]*protocol.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*protocol.StateRecord, 0, len(m.swaps))
	for _, record := range m.swaps {
		out = append(out, record)
	}
	return out, nil
}

// DeleteSwap removes a swap's persisted record entirely.
func (m *MemoryDB) DeleteSwap(swapID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.swaps, swapID)
	return nil
}

// PutPeerID records the counterparty libp2p peer id for a swap.
func (m *MemoryDB) PutPeerID(swapID string, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peerIDs[swapID] = peerID
	return nil
}

// GetPeerID returns the counterparty peer id recorded for a swap.
func (m *MemoryDB) GetPeerID(swapID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	peerID, ok := m.peerIDs[swapID]
	if !ok {
		return "", ErrSwapNotFound
	}
	return peerID, nil
}

// Close is a no-op for MemoryDB.
func (m *MemoryDB) Close() error {
	return nil
}
