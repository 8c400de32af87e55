// recovery.go implements the externally invocable recovery operations
// available from Bob's side: cancel and jude-recovery. Refund ("Refund
// (Alice variant)") is Alice-only, so Bob's recovery surface is narrower
// than protocol/alice/recovery.go's in that one respect.
//
// jude-recovery belongs here rather than in protocol/alice: Bob's
// BtcRedeemed is the one state, on either side, where the joint JUDE
// spend key is known but not yet necessarily swept (Alice's own
// BtcRedeemed is terminal — she locked her JUDE away at handshake time
// and has nothing left to recover once her own redeem confirms).
package bob

import (
	"context"
	"fmt"

	mcrypto "github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/protocol"
)

// state3Of extracts the shared State3 record carried by every one of Bob's
// states except Started (predates the handshake that produces it) and
// SafelyAborted.
func state3Of(state State) (*protocol.State3, bool) {
	switch s := state.(type) {
	case *SwapSetupCompleted:
		return s.State3, true
	case *BtcLocked:
		return s.State3, true
	case *XmrLockProofReceived:
		return s.State3, true
	case *XmrLocked:
		return s.State3, true
	case *EncSigSent:
		return s.State3, true
	case *BtcRedeemed:
		return s.State3, true
	case *XmrRedeemed:
		return s.State3, true
	case *CancelTimelockExpired:
		return s.State3, true
	case *BtcCancelled:
		return s.State3, true
	case *BtcRefunded:
		return s.State3, true
	case *BtcPunished:
		return s.State3, true
	default:
		return nil, false
	}
}

// State3Of exports state3Of for callers outside this package (the daemon's
// swap-resume bookkeeping) that need a resumed state's negotiated amounts
// without re-running a transition.
func State3Of(state State) (*protocol.State3, bool) { return state3Of(state) }

// Cancel implements "Cancel": if the swap is past lock and not
// yet terminal, broadcast the cancel tx once the cancel timelock allows.
// Mirrors alice.Cancel from the opposite role.
func Cancel(ctx context.Context, d *Deps, state State) (State, error) {
	if state.IsTerminal() {
		return nil, ErrSwapNotCancellable
	}

	s3, ok := state3Of(state)
	if !ok {
		return nil, ErrSwapNotCancellable
	}

	status, err := d.BTC.Status(ctx, s3.Txs.LockTxID)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to query lock tx status: %w", err)
	}
	if !status.Confirmed || status.Depth < s3.CancelTimelock {
		return nil, ErrCancelTimelockNotExpired
	}

	next := &CancelTimelockExpired{State3: s3}
	return next.Transition(ctx, d)
}

// JudeRecoveryInfo is the recovery information printed back to a user whose
// automatic sweep wallet failed partway through BtcRedeemed's transition.
type JudeRecoveryInfo struct {
	SpendKey      [32]byte
	ViewKey       [32]byte
	Address       mcrypto.Address
	RestoreHeight uint64
}

// JudeRecovery implements "JUDE-recovery": only valid from BtcRedeemed, it
// re-derives the joint spend key from the state's already-extracted
// CounterpartyJude half rather than attempting another sweep (a prior
// sweep may have already run and partially succeeded).
func JudeRecovery(ctx context.Context, d *Deps, state State) (*JudeRecoveryInfo, error) {
	redeemed, ok := state.(*BtcRedeemed)
	if !ok {
		return nil, ErrJudeRecoveryNotAvailable
	}
	s3 := redeemed.State3

	spendKey := s3.JointSpendKey(redeemed.CounterpartyJude)
	kp := mcrypto.NewPrivateKeyPair(spendKey, s3.JointViewKey)

	restoreHeight, err := d.Jude.GetHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to fetch restore height for jude recovery: %w", err)
	}

	return &JudeRecoveryInfo{
		SpendKey:      kp.SpendKey().Bytes(),
		ViewKey:       kp.ViewKey().Bytes(),
		Address:       kp.Address(d.Cfg.Env),
		RestoreHeight: restoreHeight,
	}, nil
}
