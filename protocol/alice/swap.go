// swap.go implements the driver loop: transition(state, context) → state,
// persisting the result after each transition, until a terminal state is
// reached. Grounded on original_source/swap/src/protocol/alice.rs's
// `Swap::run` shape (state, event_loop_handle, bitcoin_wallet,
// judecoin_wallet, env_config, swap_id, db), mirrored after the driver
// in protocol/xmrtaker.
package alice

import (
	"context"
	"fmt"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/db"
	"github.com/jude-swap/swap/protocol"
)

// Swap bundles one running instance of Alice's state machine: the current
// state, the capability bundle every transition needs, and the swap's id
// for persistence and Info lookups.
type Swap struct {
	SwapID string
	State  State
	Deps   *Deps
}

// NewSwap constructs a Swap ready to run from its initial (or resumed)
// state.
func NewSwap(swapID string, state State, deps *Deps) *Swap {
	return &Swap{SwapID: swapID, State: state, Deps: deps}
}

// Run drives the state machine to completion, persisting after every
// transition. It returns the
// terminal state reached, or an error if a transition returned a fatal
// error.
func (s *Swap) Run(ctx context.Context) (State, error) {
	for {
		next, err := s.State.Transition(ctx, s.Deps)
		if err != nil {
			return s.State, fmt.Errorf("alice: swap %s: %w", s.SwapID, err)
		}
		s.State = next

		if err := s.persist(); err != nil {
			return s.State, fmt.Errorf("alice: swap %s: %w", s.SwapID, err)
		}

		if s.Deps.Info != nil {
			s.Deps.Info.SetStatus(statusOf(s.State))
		}

		if s.State.IsTerminal() {
			return s.State, nil
		}
	}
}

// persist encodes the current state into a StateRecord and writes it
// through the database capability. Writes are last-write-wins // ("Database: per-swap-id key; writes are last-write-wins of the full state
// record").
func (s *Swap) persist() error {
	record, err := protocol.Encode(s.SwapID, protocol.RoleAlice, s.State.Name(), s.State)
	if err != nil {
		return fmt.Errorf("failed to encode state for persistence: %w", err)
	}
	if err := s.Deps.DB.PutSwap(record); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// statusOf maps an internal protocol state to the coarse-grained status the
// CLI/RPC surface reports, distinct from the fine-grained state name.
func statusOf(state State) common.Status {
	switch state.(type) {
	case *BtcRedeemed:
		return common.Success
	case *XmrRefunded:
		return common.Refunded
	case *BtcPunished:
		return common.Punished
	case *SafelyAborted:
		return common.Aborted
	default:
		return common.Ongoing
	}
}

// Status exports statusOf for the rpc/daemon layer, which performs
// recovery transitions outside the normal Run loop and needs to report
// their resulting status the same way.
func Status(state State) common.Status { return statusOf(state) }

// Persist encodes and writes state to the database under swapID, exported
// for recovery operations that perform a single out-of-band transition
// instead of driving the full Swap loop.
func Persist(database db.Database, swapID string, state State) error {
	record, err := protocol.Encode(swapID, protocol.RoleAlice, state.Name(), state)
	if err != nil {
		return fmt.Errorf("failed to encode state for persistence: %w", err)
	}
	return database.PutSwap(record)
}

// Resume reconstructs a Swap from its last persisted StateRecord, the form
// the CLI `resume` subcommand and swapd's startup scan both use.
func Resume(record *protocol.StateRecord, deps *Deps) (*Swap, error) {
	state, err := decodeState(record)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to resume swap %s: %w", record.SwapID, err)
	}
	return NewSwap(record.SwapID, state, deps), nil
}

// decodeState dispatches on the persisted state name to decode the payload
// into its concrete type, matching the `Display`-tagged variant decoding in
// original_source/swap/src/database/alice.rs.
func decodeState(record *protocol.StateRecord) (State, error) {
	var err error
	switch record.StateName {
	case "Started":
		s := &Started{}
		err = record.Decode(s)
		return s, err
	case "BtcLockTransactionSeen":
		s := &BtcLockTransactionSeen{}
		err = record.Decode(s)
		return s, err
	case "BtcLocked":
		s := &BtcLocked{}
		err = record.Decode(s)
		return s, err
	case "XmrLockTransactionSent":
		s := &XmrLockTransactionSent{}
		err = record.Decode(s)
		return s, err
	case "XmrLocked":
		s := &XmrLocked{}
		err = record.Decode(s)
		return s, err
	case "XmrLockTransferProofSent":
		s := &XmrLockTransferProofSent{}
		err = record.Decode(s)
		return s, err
	case "EncSigLearned":
		s := &EncSigLearned{}
		err = record.Decode(s)
		return s, err
	case "BtcRedeemTransactionPublished":
		s := &BtcRedeemTransactionPublished{}
		err = record.Decode(s)
		return s, err
	case "BtcRedeemed":
		s := &BtcRedeemed{}
		err = record.Decode(s)
		return s, err
	case "CancelTimelockExpired":
		s := &CancelTimelockExpired{}
		err = record.Decode(s)
		return s, err
	case "BtcCancelled":
		s := &BtcCancelled{}
		err = record.Decode(s)
		return s, err
	case "BtcRefunded":
		s := &BtcRefunded{}
		err = record.Decode(s)
		return s, err
	case "XmrRefunded":
		s := &XmrRefunded{}
		err = record.Decode(s)
		return s, err
	case "BtcPunishable":
		s := &BtcPunishable{}
		err = record.Decode(s)
		return s, err
	case "BtcPunished":
		s := &BtcPunished{}
		err = record.Decode(s)
		return s, err
	case "SafelyAborted":
		return &SafelyAborted{}, nil
	default:
		return nil, fmt.Errorf("unknown alice state name %q", record.StateName)
	}
}
