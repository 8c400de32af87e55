package bob

import "errors"

// Protocol-state errors a recovery operation maps to a user-facing exit
// message. Mirrors protocol/alice/errors.go;
// Bob's recovery surface is narrower so only Cancel and the shared
// key-extraction fault carry over.
var (
	// ErrSwapNotCancellable is returned when cancel is invoked against a
	// state that is neither post-lock nor pre-terminal.
	ErrSwapNotCancellable = errors.New("bob: swap is not in a cancellable state")

	// ErrCancelTimelockNotExpired is returned by the cancel recovery
	// operation when the cancel timelock hasn't elapsed yet.
	ErrCancelTimelockNotExpired = errors.New("bob: cancel timelock has not expired yet")

	// ErrJudeKeyExtractionFailed is the recorded decision for open
	// question (ii): a confirmed redeem tx being on chain but key
	// extraction failing is fatal with a distinct sentinel, not retried.
	ErrJudeKeyExtractionFailed = errors.New("bob: failed to extract jude private key from redeem transaction")

	// ErrJudeRecoveryNotAvailable is returned by the jude-recovery
	// operation outside BtcRedeemed. BtcRedeemed is the one state where
	// Bob holds the joint spend key but has not necessarily swept it yet.
	ErrJudeRecoveryNotAvailable = errors.New("bob: jude recovery is only available from the BtcRedeemed state")
)
