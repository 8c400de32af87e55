package protocol

import (
	"encoding/json"
	"fmt"
)

// Role distinguishes which state machine a persisted record belongs to, so
// a single db.Database can store both roles' swaps without separate tables.
type Role byte

const (
	RoleAlice Role = iota
	RoleBob
)

func (r Role) String() string {
	switch r {
	case RoleAlice:
		return "alice"
	case RoleBob:
		return "bob"
	default:
		return "unknown"
	}
}

// StateRecord is the envelope persisted for every swap: a role tag, the
// current state's name (for diagnostics; the CLI's `history` reads status
// from swap.Info, not from this field),
// and the state's own JSON-encoded payload. The db package stores/loads
// StateRecords keyed by swap ID; it never needs to understand individual
// state shapes, matching the "dynamic dispatch on database" note
// that persistence is a polymorphic capability with a single interface.
type StateRecord struct {
	SwapID    string          `json:"swap_id"`
	Role      Role            `json:"role"`
	StateName string          `json:"state_name"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode marshals any state value into a StateRecord ready for persistence.
func Encode(swapID string, role Role, stateName string, state interface{}) (*StateRecord, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode state %q: %w", stateName, err)
	}
	return &StateRecord{
		SwapID:    swapID,
		Role:      role,
		StateName: stateName,
		Payload:   payload,
	}, nil
}

// Decode unmarshals a StateRecord's payload into dst, a pointer to the
// concrete state type the caller expects based on StateName.
func (r *StateRecord) Decode(dst interface{}) error {
	if err := json.Unmarshal(r.Payload, dst); err != nil {
		return fmt.Errorf("protocol: failed to decode state %q: %w", r.StateName, err)
	}
	return nil
}
