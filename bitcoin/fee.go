// fee.go handles the case where an adaptor signature verifies but its
// spend is rejected on broadcast for looking underpriced: that is treated
// as transient and retried with a bumped fee, rather than failing the
// swap outright.
package bitcoin

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/jude-swap/swap/common"
)

// EstimateFeeRate returns a flat per-network fee rate matching the
// defaults recorded in common.Config; a live binding would instead query
// the Electrum backend's fee estimator.
func EstimateFeeRate(cfg *common.Config, targetBlocks uint32) (common.BtcAmount, error) {
	if targetBlocks == 0 {
		return 0, fmt.Errorf("bitcoin: target_blocks must be positive")
	}
	return common.BtcAmount(cfg.BtcFeeTargetBlk), nil
}

// maxFeeBumpAttempts bounds the bump-and-retry loop so a persistently
// malformed transaction fails loudly instead of looping forever.
const maxFeeBumpAttempts = 5

// isFeeRelatedRejection reports whether a broadcast rejection looks like an
// underpriced-transaction complaint rather than a structural problem with
// the transaction itself.
func isFeeRelatedRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fee") || strings.Contains(msg, "min relay")
}

// BumpFee increases a transaction's single output value downward by
// feeStep, making room for a higher-fee resubmission of the same outputs
// (used only for transactions this module fully controls the fee structure
// of: cancel, refund, punish, redeem each have exactly one real output).
func BumpFee(tx *wire.MsgTx, feeStep common.BtcAmount) error {
	if len(tx.TxOut) == 0 {
		return fmt.Errorf("bitcoin: cannot bump fee on a transaction with no outputs")
	}
	out := tx.TxOut[0]
	step := int64(feeStep)
	if out.Value <= step {
		return fmt.Errorf("bitcoin: output value %d too small to absorb fee bump of %d", out.Value, step)
	}
	out.Value -= step
	return nil
}

// BroadcastWithBump broadcasts tx, and on a fee-related rejection, bumps the
// fee and retries up to maxFeeBumpAttempts times before giving up. Any
// non-fee rejection is returned immediately as a fatal error.
func BroadcastWithBump(ctx context.Context, w Wallet, tx *wire.MsgTx, feeStep common.BtcAmount) (chainhash.Hash, error) {
	var lastErr error
	for attempt := 0; attempt < maxFeeBumpAttempts; attempt++ {
		txid, err := w.Broadcast(ctx, tx)
		if err == nil {
			return txid, nil
		}
		if !isFeeRelatedRejection(err) {
			return chainhash.Hash{}, fmt.Errorf("bitcoin: broadcast rejected: %w", err)
		}
		lastErr = err
		if bumpErr := BumpFee(tx, feeStep); bumpErr != nil {
			return chainhash.Hash{}, fmt.Errorf("bitcoin: broadcast rejected for fee (%v), and bump failed: %w", err, bumpErr)
		}
	}
	return chainhash.Hash{}, fmt.Errorf("bitcoin: exhausted %d fee bump attempts, last error: %w", maxFeeBumpAttempts, lastErr)
}
