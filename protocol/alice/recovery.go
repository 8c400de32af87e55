// recovery.go implements the two externally invocable recovery
// operations available to Alice: cancel and refund. (jude-recovery is
// Bob's operation — see protocol/bob/recovery.go's doc comment for why.)
// Directly grounded on original_source/swap/src/asb/recovery/refund.rs's
// three-way match (no-XMR-locked / refundable / terminal) translated into
// a Go switch over this package's state types.
package alice

import (
	"context"
	"fmt"

	"github.com/jude-swap/swap/protocol"
)

// state3Of extracts the shared State3 record carried by every one of
// Alice's states except SafelyAborted, which predates handshake lock-in.
func state3Of(state State) (*protocol.State3, bool) {
	switch s := state.(type) {
	case *Started:
		return s.State3, true
	case *BtcLockTransactionSeen:
		return s.State3, true
	case *BtcLocked:
		return s.State3, true
	case *XmrLockTransactionSent:
		return s.State3, true
	case *XmrLocked:
		return s.State3, true
	case *XmrLockTransferProofSent:
		return s.State3, true
	case *EncSigLearned:
		return s.State3, true
	case *BtcRedeemTransactionPublished:
		return s.State3, true
	case *BtcRedeemed:
		return s.State3, true
	case *CancelTimelockExpired:
		return s.State3, true
	case *BtcCancelled:
		return s.State3, true
	case *BtcRefunded:
		return s.State3, true
	case *XmrRefunded:
		return s.State3, true
	case *BtcPunishable:
		return s.State3, true
	case *BtcPunished:
		return s.State3, true
	default:
		return nil, false
	}
}

// restoreHeightOf extracts the restore height carried by states at or after
// XmrLockTransactionSent, needed by the refund recovery operation to open
// the recovery wallet at the right rescan depth.
func restoreHeightOf(state State) uint64 {
	switch s := state.(type) {
	case *XmrLockTransactionSent:
		return s.RestoreHeight
	case *XmrLocked:
		return s.RestoreHeight
	case *XmrLockTransferProofSent:
		return s.RestoreHeight
	case *EncSigLearned:
		return s.RestoreHeight
	case *CancelTimelockExpired:
		return s.RestoreHeight
	case *BtcCancelled:
		return s.RestoreHeight
	case *BtcRefunded:
		return s.RestoreHeight
	default:
		return 0
	}
}

// isBeforeXmrLock reports whether state precedes XmrLockTransactionSent,
// i.e. no JUDE could possibly have been locked yet.
func isBeforeXmrLock(state State) bool {
	switch state.(type) {
	case *Started, *BtcLockTransactionSeen, *BtcLocked:
		return true
	default:
		return false
	}
}

// State3Of exports state3Of for callers outside this package (the daemon's
// swap-resume bookkeeping) that need a resumed state's negotiated amounts
// without re-running a transition.
func State3Of(state State) (*protocol.State3, bool) { return state3Of(state) }

// Cancel implements "Cancel": if the swap is past lock and not
// yet terminal, broadcast the cancel tx once the cancel timelock allows.
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
		return nil, fmt.Errorf("alice: failed to query lock tx status: %w", err)
	}
	if !status.Confirmed || status.Depth < s3.CancelTimelock {
		return nil, ErrCancelTimelockNotExpired
	}

	next := &CancelTimelockExpired{State3: s3, RestoreHeight: restoreHeightOf(state)}
	return next.Transition(ctx, d)
}

// Refund implements "Refund (Alice variant)".
func Refund(ctx context.Context, d *Deps, state State) (State, error) {
	if state.IsTerminal() {
		return nil, ErrSwapNotRefundable
	}
	if isBeforeXmrLock(state) {
		return nil, ErrNoJudeLocked
	}

	s3, ok := state3Of(state)
	if !ok {
		return nil, ErrSwapNotRefundable
	}

	status, err := d.BTC.Status(ctx, s3.Txs.RefundTxID)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to query refund tx status: %w", err)
	}
	if status.Absent || status.Mempool {
		return nil, ErrRefundTransactionNotPublishedYet
	}

	refundTx, err := d.BTC.GetTx(ctx, s3.Txs.RefundTxID)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to fetch refund tx: %w", err)
	}

	sig, err := extractSignatureFromWitness(refundTx)
	if err != nil {
		return nil, fmt.Errorf("alice: %w", err)
	}

	refunded := &BtcRefunded{State3: s3, RestoreHeight: restoreHeightOf(state), RefundSig: sig}
	return refunded.Transition(ctx, d)
}
