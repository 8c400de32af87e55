package alice

import "errors"

// Protocol-state errors a recovery operation maps to a user-facing exit
// message.
var (
	// ErrNoJudeLocked is returned by the refund recovery operation when
	// called before any JUDE was locked.
	ErrNoJudeLocked = errors.New("alice: no jude has been locked yet, nothing to refund")

	// ErrSwapNotRefundable is returned when refund is invoked against a
	// terminal state.
	ErrSwapNotRefundable = errors.New("alice: swap has already reached a terminal state, cannot refund")

	// ErrRefundTransactionNotPublishedYet is returned when refund is
	// invoked but Bob has not yet broadcast the BTC refund tx.
	ErrRefundTransactionNotPublishedYet = errors.New("alice: btc refund transaction has not been published yet")

	// ErrCancelTimelockNotExpired is returned by the cancel recovery
	// operation when the cancel timelock hasn't elapsed yet.
	ErrCancelTimelockNotExpired = errors.New("alice: cancel timelock has not expired yet")

	// ErrSwapNotCancellable is returned when cancel is invoked against a
	// state that is neither post-lock nor pre-terminal.
	ErrSwapNotCancellable = errors.New("alice: swap is not in a cancellable state")

	// ErrJudeKeyExtractionFailed is the recorded decision for open
	// question (ii): fetch_tx_refund succeeding but key extraction failing
	// is fatal with a distinct sentinel, not retried.
	ErrJudeKeyExtractionFailed = errors.New("alice: failed to extract jude private key from refund transaction")
)
