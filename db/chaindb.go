// chaindb.go implements Database against github.com/ChainSafe/chaindb's
// badger-backed key-value store, the library bingcicle-atomic-swap's
// protocol/swap/manager.go depends on for exactly this purpose.
package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ChainSafe/chaindb"

	"github.com/jude-swap/swap/protocol"
)

const (
	swapKeyPrefix   = "swap/"
	peerIDKeyPrefix = "peerid/"
)

// ChainDB implements Database on top of a chaindb.Database (badger).
type ChainDB struct {
	db chaindb.Database
}

// NewChainDB opens (creating if absent) a badger-backed database under
// dataDir.
func NewChainDB(dataDir string) (*ChainDB, error) {
	db, err := chaindb.NewBadgerDB(dataDir)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open chaindb at %s: %w", dataDir, err)
	}
	return &ChainDB{db: db}, nil
}

func swapKey(swapID string) []byte {
	return []byte(swapKeyPrefix + swapID)
}

func peerIDKey(swapID string) []byte {
	return []byte(peerIDKeyPrefix + swapID)
}

// PutSwap writes (overwriting any prior value) the latest StateRecord for a
// swap id.
func (d *ChainDB) PutSwap(record *protocol.StateRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("db: failed to marshal state record: %w", err)
	}
	if err := d.db.Put(swapKey(record.SwapID), b); err != nil {
		return fmt.Errorf("db: failed to write swap %s: %w", record.SwapID, err)
	}
	return nil
}

// ErrSwapNotFound is returned by GetSwap when no record exists for the
// given swap id.
var ErrSwapNotFound = errors.New("db: no swap with given id")

// GetSwap reads the latest StateRecord for a swap id.
func (d *ChainDB) GetSwap(swapID string) (*protocol.StateRecord, error) {
	b, err := d.db.Get(swapKey(swapID))
	if errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, ErrSwapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: failed to read swap %s: %w", swapID, err)
	}

	var record protocol.StateRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("db: failed to unmarshal swap %s: %w", swapID, err)
	}
	return &record, nil
}

// GetAllSwaps returns every persisted StateRecord, the set daemon.Start
// loads at startup to find ongoing swaps to resume.
func (d *ChainDB) GetAllSwaps() ([]*protocol.StateRecord, error) {
	iter, err := d.db.NewIterator()
	if err != nil {
		return nil, fmt.Errorf("db: failed to create iterator: %w", err)
	}
	defer iter.Release()

	var out []*protocol.StateRecord
	prefix := []byte(swapKeyPrefix)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix) || string(key[:len(prefix)]) != swapKeyPrefix {
			continue
		}
		var record protocol.StateRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, fmt.Errorf("db: failed to unmarshal swap record: %w", err)
		}
		out = append(out, &record)
	}
	return out, nil
}

// DeleteSwap removes a swap's persisted record entirely, used once a
// terminal swap's information has been surfaced to the user and no longer
// needs resume support.
func (d *ChainDB) DeleteSwap(swapID string) error {
	if err := d.db.Del(swapKey(swapID)); err != nil {
		return fmt.Errorf("db: failed to delete swap %s: %w", swapID, err)
	}
	return nil
}

// PutPeerID records the counterparty libp2p peer id for a swap, so a
// resumed swap can reconnect without rendezvous discovery.
func (d *ChainDB) PutPeerID(swapID string, peerID string) error {
	if err := d.db.Put(peerIDKey(swapID), []byte(peerID)); err != nil {
		return fmt.Errorf("db: failed to write peer id for swap %s: %w", swapID, err)
	}
	return nil
}

// GetPeerID returns the counterparty peer id recorded for a swap.
func (d *ChainDB) GetPeerID(swapID string) (string, error) {
	b, err := d.db.Get(peerIDKey(swapID))
	if errors.Is(err, chaindb.ErrKeyNotFound) {
		return "", ErrSwapNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db: failed to read peer id for swap %s: %w", swapID, err)
	}
	return string(b), nil
}

// Close releases the underlying badger database.
func (d *ChainDB) Close() error {
	return d.db.Close()
}
