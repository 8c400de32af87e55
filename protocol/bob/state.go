// Package bob implements the BTC-holder's state machine:
// the handshake runs inline from Started (Bob has no key material until
// then), followed by locking BTC, waiting on Alice's JUDE transfer, the
// anti-footgun-gated encrypted signature release, and the same cancel/
// refund/punish branches as Alice's side viewed from the opposite role.
// Grounded the same way as protocol/alice/state.go: state variant list and
// fields from original_source/swap/src/database/bob.rs, driver shape from
// original_source/swap/src/protocol/bob.rs, translated into the same
// swapState-as-interface idiom.
package bob

import (
	"context"
	"fmt"
	"time"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/crypto/adaptor"
	mcrypto "github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/db"
	"github.com/jude-swap/swap/jude"
	"github.com/jude-swap/swap/net"
	"github.com/jude-swap/swap/net/message"
	"github.com/jude-swap/swap/protocol"
	pswap "github.com/jude-swap/swap/protocol/swap"
)

// Deps mirrors protocol/alice.Deps: the capability bundle every transition
// needs.
type Deps struct {
	BTC  bitcoin.Wallet
	Jude jude.Wallet
	Net  net.EventLoopHandle
	DB   db.Database
	Cfg  *common.Config
	Info *pswap.Info
}

// State is implemented by every one of Bob's protocol states.
type State interface {
	Name() string
	IsTerminal() bool
	Transition(ctx context.Context, d *Deps) (State, error)
}

// Started is Bob's initial state: no key material yet, since the handshake
// itself happens during this transition.
type Started struct {
	BtcAmount     common.BtcAmount
	JudeAmount    common.JudeAmount
	ChangeScript  []byte
	RefundAddress string
}

func (s *Started) Name() string     { return "Started" }
func (s *Started) IsTerminal() bool { return false }

func (s *Started) Transition(ctx context.Context, d *Deps) (State, error) {
	s3, lockTx, err := protocol.RunHandshake(ctx, d.Net, protocol.HandshakeParams{
		SwapID:           d.Info.ID(),
		Params:           d.BTC.GetNetwork(),
		BtcAmount:        s.BtcAmount,
		JudeAmount:       s.JudeAmount,
		CancelTimelock:   d.Cfg.CancelTimelock,
		PunishTimelock:   d.Cfg.PunishTimelock,
		IsBtcProvider:    true,
		BTC:              d.BTC,
		ChangeScript:     s.ChangeScript,
		OwnRefundAddress: s.RefundAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("bob: handshake failed: %w", err)
	}

	if _, err := d.BTC.Broadcast(ctx, lockTx); err != nil {
		return nil, fmt.Errorf("bob: failed to broadcast lock tx: %w", err)
	}

	return &SwapSetupCompleted{State3: s3}, nil
}

// SwapSetupCompleted: handshake done, lock tx broadcast, awaiting
// confirmation.
type SwapSetupCompleted struct {
	State3 *protocol.State3
}

func (s *SwapSetupCompleted) Name() string     { return "SwapSetupCompleted" }
func (s *SwapSetupCompleted) IsTerminal() bool { return false }

func (s *SwapSetupCompleted) Transition(ctx context.Context, d *Deps) (State, error) {
	confirmed, err := d.BTC.WatchForTx(ctx, s.State3.Txs.LockTxID, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return &SafelyAborted{}, nil //nolint:nilerr // timeout/conflict falls through to abort, not a driver error
	}
	return &BtcLocked{State3: s.State3}, nil
}

// BtcLocked: BTC lock tx confirmed; waiting for Alice's JUDE transfer.
type BtcLocked struct {
	State3 *protocol.State3
}

func (s *BtcLocked) Name() string     { return "BtcLocked" }
func (s *BtcLocked) IsTerminal() bool { return false }

func (s *BtcLocked) Transition(ctx context.Context, d *Deps) (State, error) {
	cancelCtx, cancel := context.WithTimeout(ctx, cancelWindow(s.State3))
	defer cancel()

	msg, err := d.Net.Recv(cancelCtx)
	if err != nil {
		return &CancelTimelockExpired{State3: s.State3}, nil //nolint:nilerr // timeout means Alice never locked in time
	}
	proofMsg, ok := msg.(*message.NotifyXmrLockProof)
	if !ok {
		return nil, fmt.Errorf("bob: expected NotifyXmrLockProof, got %s", msg.Type())
	}

	return &XmrLockProofReceived{
		State3: s.State3,
		TransferProof: &jude.TransferProof{
			TxHash: proofMsg.TxHash,
			TxKey:  proofMsg.TxKey,
			Amount: s.State3.JudeAmount,
		},
	}, nil
}

// XmrLockProofReceived: Alice's transfer proof received; verifying against
// Bob's own view of the chain before trusting it.
type XmrLockProofReceived struct {
	State3        *protocol.State3
	TransferProof *jude.TransferProof
}

func (s *XmrLockProofReceived) Name() string     { return "XmrLockProofReceived" }
func (s *XmrLockProofReceived) IsTerminal() bool { return false }

func (s *XmrLockProofReceived) Transition(ctx context.Context, d *Deps) (State, error) {
	// d.Jude is expected to already be scoped to a view-only wallet watching
	// the joint spend key's address (swapd opens it from JointSpendPublicKey
	// + JointViewKey at swap setup, since Bob cannot open a full spend
	// wallet for it until Alice's redeem reveals her half). Bob independently
	// refreshes and checks the balance himself rather than trusting Alice's
	// transfer proof alone, satisfying anti-footgun rule.
	for {
		if _, err := d.Jude.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("bob: failed to refresh jude wallet: %w", err)
		}

		balance, _, err := d.Jude.GetBalance(ctx, 0)
		if err != nil {
			return nil, fmt.Errorf("bob: failed to query jude balance: %w", err)
		}
		if balance >= s.State3.JudeAmount {
			return &XmrLocked{State3: s.State3, TransferProof: s.TransferProof}, nil
		}

		select {
		case <-ctx.Done():
			return &CancelTimelockExpired{State3: s.State3}, nil
		case <-time.After(common.HeightSyncPollInterval):
		}
	}
}

// XmrLocked: JUDE transfer independently confirmed by Bob's own wallet at
// the agreed amount to the joint key.
type XmrLocked struct {
	State3        *protocol.State3
	TransferProof *jude.TransferProof
}

func (s *XmrLocked) Name() string     { return "XmrLocked" }
func (s *XmrLocked) IsTerminal() bool { return false }

func (s *XmrLocked) Transition(ctx context.Context, d *Deps) (State, error) {
	encSig, err := buildRedeemEncryptedSignature(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("bob: failed to build redeem encrypted signature: %w", err)
	}

	msg := &message.NotifyEncryptedSignature{EncryptedSignature: encSig.Bytes()}
	if err := d.Net.SendSwapMessage(msg); err != nil {
		return nil, fmt.Errorf("bob: failed to send encrypted signature: %w", err)
	}

	return &EncSigSent{State3: s.State3}, nil
}

// EncSigSent: Bob released his adaptor-encrypted signature on the redeem
// tx, forcing a future reveal of s_a should Alice redeem.
type EncSigSent struct {
	State3 *protocol.State3
}

func (s *EncSigSent) Name() string     { return "EncSigSent" }
func (s *EncSigSent) IsTerminal() bool { return false }

func (s *EncSigSent) Transition(ctx context.Context, d *Deps) (State, error) {
	redeemCtx, cancel := context.WithTimeout(ctx, cancelWindow(s.State3))
	defer cancel()

	confirmed, err := d.BTC.WatchForTx(redeemCtx, s.State3.Txs.RedeemTxID, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return &CancelTimelockExpired{State3: s.State3}, nil //nolint:nilerr // timeout means cancel timelock elapsed without redeem
	}

	redeemTx, err := d.BTC.GetTx(ctx, s.State3.Txs.RedeemTxID)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to fetch confirmed redeem tx: %w", err)
	}

	sig, err := extractSignatureFromWitness(redeemTx)
	if err != nil {
		return nil, fmt.Errorf("bob: %w", err)
	}

	redeemEncSig, err := buildRedeemEncryptedSignature(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("bob: %w", err)
	}

	aKey, err := adaptor.Extract(redeemEncSig, sig)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to extract s_a from redeem tx: %w", ErrJudeKeyExtractionFailed)
	}

	sA, err := mcrypto.NewPrivateSpendKeyFromScalar(aKey.Scalar())
	if err != nil {
		return nil, fmt.Errorf("bob: %w: %w", ErrJudeKeyExtractionFailed, err)
	}

	return &BtcRedeemed{State3: s.State3, CounterpartyJude: sA}, nil
}

// BtcRedeemed: Alice redeemed, Bob recovered s_a from the on-chain
// signature and can now derive the full joint JUDE spend key.
// Not yet terminal: the JUDE still needs sweeping, mirroring Alice's
// non-terminal BtcRefunded on the symmetric branch.
type BtcRedeemed struct {
	State3           *protocol.State3
	CounterpartyJude *mcrypto.PrivateSpendKey
}

func (s *BtcRedeemed) Name() string     { return "BtcRedeemed" }
func (s *BtcRedeemed) IsTerminal() bool { return false }

func (s *BtcRedeemed) Transition(ctx context.Context, d *Deps) (State, error) {
	spendKey := s.State3.JointSpendKey(s.CounterpartyJude)
	kp := mcrypto.NewPrivateKeyPair(spendKey, s.State3.JointViewKey)

	restoreHeight, err := d.Jude.GetHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to capture restore height: %w", err)
	}
	if err := d.Jude.OpenOrCreateFromKeys(ctx, d.Info.ID(), kp, restoreHeight); err != nil {
		return nil, fmt.Errorf("bob: failed to open sweep wallet: %w", err)
	}
	if _, err := d.Jude.SweepAll(ctx, kp.Address(d.Cfg.Env)); err != nil {
		return nil, fmt.Errorf("bob: failed to sweep jude: %w", err)
	}

	return &XmrRedeemed{State3: s.State3}, nil
}

// XmrRedeemed †: Bob swept the JUDE locked under the joint key.
type XmrRedeemed struct {
	State3 *protocol.State3
}

func (s *XmrRedeemed) Name() string     { return "XmrRedeemed" }
func (s *XmrRedeemed) IsTerminal() bool { return true }
func (s *XmrRedeemed) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// CancelTimelockExpired: BTC cancel timelock elapsed without redeem.
type CancelTimelockExpired struct {
	State3 *protocol.State3
}

func (s *CancelTimelockExpired) Name() string     { return "CancelTimelockExpired" }
func (s *CancelTimelockExpired) IsTerminal() bool { return false }

func (s *CancelTimelockExpired) Transition(ctx context.Context, d *Deps) (State, error) {
	cancelTx, err := buildSignedCancelTx(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("bob: failed to build cancel tx: %w", err)
	}

	txid, err := bitcoin.BroadcastWithBump(ctx, d.BTC, cancelTx, common.BtcAmount(1000))
	if err != nil {
		// The cancel tx may already be broadcast by Alice; fall through to
		// watching for it regardless.
		txid = s.State3.Txs.CancelTxID
	}

	confirmed, err := d.BTC.WatchForTx(ctx, txid, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return nil, fmt.Errorf("bob: cancel tx did not confirm: %w", err)
	}

	return &BtcCancelled{State3: s.State3}, nil
}

// BtcCancelled: BTC cancel tx confirmed (by anyone).
type BtcCancelled struct {
	State3 *protocol.State3
}

func (s *BtcCancelled) Name() string     { return "BtcCancelled" }
func (s *BtcCancelled) IsTerminal() bool { return false }

func (s *BtcCancelled) Transition(ctx context.Context, d *Deps) (State, error) {
	refundTx, err := buildSignedRefundTx(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("bob: failed to build refund tx: %w", err)
	}

	txid, err := bitcoin.BroadcastWithBump(ctx, d.BTC, refundTx, common.BtcAmount(1000))
	if err != nil {
		return nil, fmt.Errorf("bob: failed to broadcast refund tx: %w", err)
	}

	if err := d.Net.SendSwapMessage(&message.NotifyRefund{TxID: txid.String()}); err != nil {
		return nil, fmt.Errorf("bob: failed to notify refund: %w", err)
	}

	confirmed, err := d.BTC.WatchForTx(ctx, txid, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return &BtcPunished{State3: s.State3}, nil //nolint:nilerr // refund never confirmed; Alice may punish after punishTimelock
	}

	return &BtcRefunded{State3: s.State3}, nil
}

// BtcRefunded †: Bob completed his own refund back to his own BTC address.
// Unlike Alice's non-terminal BtcRefunded (which still has to sweep the
// corresponding JUDE), Bob never learns a JUDE secret on this path, so
// there is nothing left to do.
type BtcRefunded struct {
	State3 *protocol.State3
}

func (s *BtcRefunded) Name() string     { return "BtcRefunded" }
func (s *BtcRefunded) IsTerminal() bool { return true }
func (s *BtcRefunded) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// BtcPunished †: Bob failed to refund in time and Alice punished him.
type BtcPunished struct {
	State3 *protocol.State3
}

func (s *BtcPunished) Name() string     { return "BtcPunished" }
func (s *BtcPunished) IsTerminal() bool { return true }
func (s *BtcPunished) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// SafelyAborted †: abort before any BTC was locked.
type SafelyAborted struct{}

func (s *SafelyAborted) Name() string     { return "SafelyAborted" }
func (s *SafelyAborted) IsTerminal() bool { return true }
func (s *SafelyAborted) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

func cancelWindow(s3 *protocol.State3) time.Duration {
	return time.Duration(s3.CancelTimelock) * 10 * time.Minute
}
