// Package alice implements the JUDE-holder's state machine:
// sixteen states driving two on-chain locks, a forced secret-reveal
// handshake, and three recovery branches. Grounded on
// original_source/swap/src/database/alice.rs (the state variant list and
// per-variant fields) and original_source/swap/src/protocol/alice.rs (the
// `Swap` driver shape: state, event_loop_handle, bitcoin_wallet,
// judecoin_wallet, env_config, swap_id, db), translated into a Go sum type
// following the swapState-as-interface idiom used across the pack
// (protocol/bob/swap_state.go / protocol/xmrmaker/swap_state.go).
package alice

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

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

// Deps bundles the capabilities a transition needs: the two coin wallets,
// the event-loop handle to Bob, the persistence adapter, and network
// config. Exactly the set transition rules name as external
// collaborators.
type Deps struct {
	BTC  bitcoin.Wallet
	Jude jude.Wallet
	Net  net.EventLoopHandle
	DB   db.Database
	Cfg  *common.Config
	Info *pswap.Info
}

// State is implemented by every one of Alice's sixteen protocol states
//. Transition performs exactly one state's work and returns the
// next state; the driver in swap.go persists the result after every call.
type State interface {
	Name() string
	IsTerminal() bool
	Transition(ctx context.Context, d *Deps) (State, error)
}

// Started is Alice's initial state: handshake complete, awaiting BTC lock.
type Started struct {
	State3 *protocol.State3
}

func (s *Started) Name() string    { return "Started" }
func (s *Started) IsTerminal() bool { return false }

func (s *Started) Transition(ctx context.Context, d *Deps) (State, error) {
	confirmed, err := d.BTC.WatchForTx(ctx, s.State3.Txs.LockTxID, 0)
	if err != nil {
		return &SafelyAborted{}, nil //nolint:nilerr // timeout/conflict falls through to abort, not a driver error
	}
	if !confirmed {
		return &SafelyAborted{}, nil
	}
	return &BtcLockTransactionSeen{State3: s.State3}, nil
}

// BtcLockTransactionSeen: BTC lock tx observed in mempool.
type BtcLockTransactionSeen struct {
	State3 *protocol.State3
}

func (s *BtcLockTransactionSeen) Name() string     { return "BtcLockTransactionSeen" }
func (s *BtcLockTransactionSeen) IsTerminal() bool { return false }

func (s *BtcLockTransactionSeen) Transition(ctx context.Context, d *Deps) (State, error) {
	confirmed, err := d.BTC.WatchForTx(ctx, s.State3.Txs.LockTxID, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return &SafelyAborted{}, nil
	}
	return &BtcLocked{State3: s.State3}, nil
}

// BtcLocked: BTC lock tx reached required confirmations. RestoreHeight and
// Submitting are scratch fields, pre-written to the database before the
// JUDE transfer is submitted: a crash between submit and the eventual
// XmrLockTransactionSent persist still leaves the restore height
// recoverable, and Submitting lets a resumed Transition tell "never
// attempted" from "already attempted, outcome unknown" apart (RestoreHeight
// alone can't — a genuine wallet height of 0 is indistinguishable from
// "unset").
type BtcLocked struct {
	State3        *protocol.State3
	RestoreHeight uint64
	Submitting    bool
}

func (s *BtcLocked) Name() string     { return "BtcLocked" }
func (s *BtcLocked) IsTerminal() bool { return false }

func (s *BtcLocked) Transition(ctx context.Context, d *Deps) (State, error) {
	dest := s.State3.JointSpendPublicKey()
	jointAddr := jointSpendAddress(dest, s.State3.JointViewKey, d.Cfg.Env)

	if !s.Submitting {
		restoreHeight, err := d.Jude.GetHeight(ctx)
		if err != nil {
			return nil, fmt.Errorf("alice: failed to capture restore height: %w", err)
		}
		s.RestoreHeight = restoreHeight
		s.Submitting = true

		// Pre-write before submitting: per spec, a crash between submit and
		// persisting XmrLockTransactionSent must still leave the restore
		// height (and the fact that submission may have already happened)
		// recoverable.
		if err := Persist(d.DB, d.Info.ID(), s); err != nil {
			return nil, fmt.Errorf("alice: failed to pre-write restore height: %w", err)
		}
	} else {
		// Resumed into BtcLocked with Submitting already on record: a prior
		// run may have submitted the transfer and crashed before
		// XmrLockTransactionSent was persisted. Check for it before
		// submitting a second real transfer.
		proof, err := d.Jude.FindTransfer(ctx, jointAddr, s.RestoreHeight)
		if err != nil {
			return nil, fmt.Errorf("alice: failed to check for an existing jude lock transfer: %w", err)
		}
		if proof != nil {
			return &XmrLockTransactionSent{
				State3:        s.State3,
				RestoreHeight: s.RestoreHeight,
				TransferProof: proof,
			}, nil
		}
	}

	proof, err := d.Jude.Transfer(ctx, jointAddr, s.State3.JudeAmount)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to submit jude lock transfer: %w", err)
	}

	return &XmrLockTransactionSent{
		State3:        s.State3,
		RestoreHeight: s.RestoreHeight,
		TransferProof: proof,
	}, nil
}

// jointSpendAddress derives the address of the joint spend key for a given
// view key and network, wrapping mcrypto.PrivateKeyPair.Address's
// encoding for a public-only spend key.
func jointSpendAddress(spendPub *mcrypto.PublicKey, viewKey *mcrypto.PrivateViewKey, env common.Environment) mcrypto.Address {
	b := spendPub.Bytes()
	v := viewKey.Bytes()
	return mcrypto.Address(fmt.Sprintf("%d:%x:%x", env, b, v))
}

// XmrLockTransactionSent: JUDE transfer submitted; a transfer_proof binds
// Alice to the outgoing tx.
type XmrLockTransactionSent struct {
	State3        *protocol.State3
	RestoreHeight uint64
	TransferProof *jude.TransferProof
}

func (s *XmrLockTransactionSent) Name() string     { return "XmrLockTransactionSent" }
func (s *XmrLockTransactionSent) IsTerminal() bool { return false }

func (s *XmrLockTransactionSent) Transition(ctx context.Context, d *Deps) (State, error) {
	for {
		refreshed, err := d.Jude.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("alice: failed to refresh jude wallet: %w", err)
		}
		if refreshed.Height-s.RestoreHeight >= uint64(d.Cfg.JudeConfirmationDepth) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(common.HeightSyncPollInterval):
		}
	}

	return &XmrLocked{
		State3:        s.State3,
		RestoreHeight: s.RestoreHeight,
		TransferProof: s.TransferProof,
	}, nil
}

// XmrLocked: JUDE tx reached required confirmations under joint key.
type XmrLocked struct {
	State3        *protocol.State3
	RestoreHeight uint64
	TransferProof *jude.TransferProof
}

func (s *XmrLocked) Name() string     { return "XmrLocked" }
func (s *XmrLocked) IsTerminal() bool { return false }

func (s *XmrLocked) Transition(ctx context.Context, d *Deps) (State, error) {
	msg := &message.NotifyXmrLockProof{TxHash: s.TransferProof.TxHash, TxKey: s.TransferProof.TxKey}

	// The send is retried once a second until SendSwapMessage succeeds or
	// ctx is done. No acknowledgement from Bob is awaited, and the loop has
	// no deadline of its own: it ends only with the ctx Run was given.
	for {
		if err := d.Net.SendSwapMessage(msg); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return &CancelTimelockExpired{State3: s.State3}, nil
		case <-time.After(time.Second):
		}
	}

	return &XmrLockTransferProofSent{State3: s.State3, RestoreHeight: s.RestoreHeight}, nil
}

// XmrLockTransferProofSent: proof delivered to Bob.
type XmrLockTransferProofSent struct {
	State3        *protocol.State3
	RestoreHeight uint64
}

func (s *XmrLockTransferProofSent) Name() string     { return "XmrLockTransferProofSent" }
func (s *XmrLockTransferProofSent) IsTerminal() bool { return false }

func (s *XmrLockTransferProofSent) Transition(ctx context.Context, d *Deps) (State, error) {
	msg, err := d.Net.Recv(ctx)
	if err != nil {
		return &CancelTimelockExpired{State3: s.State3}, nil //nolint:nilerr // timeout means cancel timelock elapsed
	}

	encSigMsg, ok := msg.(*message.NotifyEncryptedSignature)
	if !ok {
		return nil, fmt.Errorf("alice: expected NotifyEncryptedSignature, got %s", msg.Type())
	}

	return &EncSigLearned{
		State3:              s.State3,
		RestoreHeight:       s.RestoreHeight,
		EncryptedSignature:  encSigMsg.EncryptedSignature,
	}, nil
}

// EncSigLearned: Bob revealed his adaptor-encrypted signature on the BTC
// redeem tx.
type EncSigLearned struct {
	State3              *protocol.State3
	RestoreHeight       uint64
	EncryptedSignature  []byte
}

func (s *EncSigLearned) Name() string     { return "EncSigLearned" }
func (s *EncSigLearned) IsTerminal() bool { return false }

func (s *EncSigLearned) Transition(ctx context.Context, d *Deps) (State, error) {
	encSig, err := decodeEncryptedSignature(s.EncryptedSignature)
	if err != nil {
		return nil, fmt.Errorf("alice: malformed encrypted signature: %w", err)
	}

	msgHash, err := redeemSighash(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("alice: failed to compute redeem sighash: %w", err)
	}

	// Shape/range check before the message-bound check below; both guard
	// against a protocol fault, but this one is cheap and catches a
	// zero-value sHat without touching the curve.
	if err := adaptor.VerifyEncryptedSignature(encSig, s.State3.CounterpartySecp256k1Pub, msgHash); err != nil {
		return &CancelTimelockExpired{State3: s.State3, RestoreHeight: s.RestoreHeight}, nil //nolint:nilerr // malformed enc sig is a protocol fault, not a driver error
	}

	sig, err := adaptor.Decrypt(encSig, s.State3.OwnSecp256k1Key, s.State3.CounterpartySecp256k1Pub, msgHash)
	if err != nil {
		// A decryption that fails to validate is a protocol fault: do not
		// broadcast, fall through to CancelTimelockExpired once reached.
		return &CancelTimelockExpired{State3: s.State3, RestoreHeight: s.RestoreHeight}, nil //nolint:nilerr // see above
	}

	redeemTx, err := buildSignedRedeemTx(s.State3, d.BTC.GetNetwork(), sig)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to build redeem tx: %w", err)
	}

	txid, err := bitcoin.BroadcastWithBump(ctx, d.BTC, redeemTx, common.BtcAmount(1000))
	if err != nil {
		return nil, fmt.Errorf("alice: failed to broadcast redeem tx: %w", err)
	}

	return &BtcRedeemTransactionPublished{State3: s.State3, RedeemTxID: txid}, nil
}

// BtcRedeemTransactionPublished: Alice decrypted with s_a, broadcast BTC
// redeem.
type BtcRedeemTransactionPublished struct {
	State3     *protocol.State3
	RedeemTxID chainhash.Hash
}

func (s *BtcRedeemTransactionPublished) Name() string     { return "BtcRedeemTransactionPublished" }
func (s *BtcRedeemTransactionPublished) IsTerminal() bool { return false }

func (s *BtcRedeemTransactionPublished) Transition(ctx context.Context, d *Deps) (State, error) {
	confirmed, err := d.BTC.WatchForTx(ctx, s.RedeemTxID, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return nil, fmt.Errorf("alice: redeem tx did not confirm: %w", err)
	}
	return &BtcRedeemed{State3: s.State3}, nil
}

// BtcRedeemed †: redeem confirmed.
type BtcRedeemed struct {
	State3 *protocol.State3
}

func (s *BtcRedeemed) Name() string     { return "BtcRedeemed" }
func (s *BtcRedeemed) IsTerminal() bool { return true }
func (s *BtcRedeemed) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// CancelTimelockExpired: BTC cancel timelock elapsed without redeem.
type CancelTimelockExpired struct {
	State3        *protocol.State3
	RestoreHeight uint64
}

func (s *CancelTimelockExpired) Name() string     { return "CancelTimelockExpired" }
func (s *CancelTimelockExpired) IsTerminal() bool { return false }

func (s *CancelTimelockExpired) Transition(ctx context.Context, d *Deps) (State, error) {
	cancelTx, err := buildSignedCancelTx(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("alice: failed to build cancel tx: %w", err)
	}

	txid, err := bitcoin.BroadcastWithBump(ctx, d.BTC, cancelTx, common.BtcAmount(1000))
	if err != nil {
		// The cancel tx may already be broadcast (e.g. by Bob); fall
		// through to watching for it regardless.
		txid = s.State3.Txs.CancelTxID
	}

	confirmed, err := d.BTC.WatchForTx(ctx, txid, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return nil, fmt.Errorf("alice: cancel tx did not confirm: %w", err)
	}

	return &BtcCancelled{State3: s.State3, RestoreHeight: s.RestoreHeight}, nil
}

// BtcCancelled: BTC cancel tx confirmed (by anyone).
type BtcCancelled struct {
	State3        *protocol.State3
	RestoreHeight uint64
}

func (s *BtcCancelled) Name() string     { return "BtcCancelled" }
func (s *BtcCancelled) IsTerminal() bool { return false }

func (s *BtcCancelled) Transition(ctx context.Context, d *Deps) (State, error) {
	refundCtx, cancel := context.WithTimeout(ctx, punishWindow(s.State3))
	defer cancel()

	confirmed, err := d.BTC.WatchForTx(refundCtx, s.State3.Txs.RefundTxID, d.Cfg.BtcConfirmationDepth)
	if err == nil && confirmed {
		refundTx, err := d.BTC.GetTx(ctx, s.State3.Txs.RefundTxID)
		if err != nil {
			return nil, fmt.Errorf("alice: failed to fetch confirmed refund tx: %w", err)
		}
		sig, err := extractSignatureFromWitness(refundTx)
		if err != nil {
			return nil, fmt.Errorf("alice: %w", err)
		}
		return &BtcRefunded{State3: s.State3, RestoreHeight: s.RestoreHeight, RefundSig: sig}, nil
	}

	return &BtcPunishable{State3: s.State3}, nil
}

// BtcRefunded: Bob broadcast BTC refund; Alice extracted s_b and recombined.
type BtcRefunded struct {
	State3        *protocol.State3
	RestoreHeight uint64
	RefundSig     *adaptor.Signature
}

func (s *BtcRefunded) Name() string     { return "BtcRefunded" }
func (s *BtcRefunded) IsTerminal() bool { return false }

func (s *BtcRefunded) Transition(ctx context.Context, d *Deps) (State, error) {
	refundEncSig, err := buildRefundEncryptedSignature(s.State3)
	if err != nil {
		return nil, fmt.Errorf("alice: %w", err)
	}

	bKey, err := adaptor.Extract(refundEncSig, s.RefundSig)
	if err != nil {
		return nil, fmt.Errorf("alice: failed to extract s_b from refund tx: %w", ErrJudeKeyExtractionFailed)
	}

	sB, err := mcrypto.NewPrivateSpendKeyFromScalar(bKey.Scalar())
	if err != nil {
		return nil, fmt.Errorf("alice: %w: %w", ErrJudeKeyExtractionFailed, err)
	}

	spendKey := s.State3.JointSpendKey(sB)
	kp := mcrypto.NewPrivateKeyPair(spendKey, s.State3.JointViewKey)

	if err := d.Jude.OpenOrCreateFromKeys(ctx, d.Info.ID(), kp, s.RestoreHeight); err != nil {
		return nil, fmt.Errorf("alice: failed to open recovery wallet: %w", err)
	}
	if _, err := d.Jude.SweepAll(ctx, kp.Address(d.Cfg.Env)); err != nil {
		return nil, fmt.Errorf("alice: failed to sweep recovered jude: %w", err)
	}

	return &XmrRefunded{State3: s.State3}, nil
}

// XmrRefunded †: Alice swept JUDE back to a recovery wallet.
type XmrRefunded struct {
	State3 *protocol.State3
}

func (s *XmrRefunded) Name() string     { return "XmrRefunded" }
func (s *XmrRefunded) IsTerminal() bool { return true }
func (s *XmrRefunded) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// BtcPunishable: punish timelock elapsed without refund.
type BtcPunishable struct {
	State3 *protocol.State3
}

func (s *BtcPunishable) Name() string     { return "BtcPunishable" }
func (s *BtcPunishable) IsTerminal() bool { return false }

func (s *BtcPunishable) Transition(ctx context.Context, d *Deps) (State, error) {
	punishTx, err := buildSignedPunishTx(s.State3, d.BTC.GetNetwork())
	if err != nil {
		return nil, fmt.Errorf("alice: failed to build punish tx: %w", err)
	}

	txid, err := bitcoin.BroadcastWithBump(ctx, d.BTC, punishTx, common.BtcAmount(1000))
	if err != nil {
		return nil, fmt.Errorf("alice: failed to broadcast punish tx: %w", err)
	}

	confirmed, err := d.BTC.WatchForTx(ctx, txid, d.Cfg.BtcConfirmationDepth)
	if err != nil || !confirmed {
		return nil, fmt.Errorf("alice: punish tx did not confirm: %w", err)
	}

	return &BtcPunished{State3: s.State3}, nil
}

// BtcPunished †: punish tx confirmed.
type BtcPunished struct {
	State3 *protocol.State3
}

func (s *BtcPunished) Name() string     { return "BtcPunished" }
func (s *BtcPunished) IsTerminal() bool { return true }
func (s *BtcPunished) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

// SafelyAborted †: abort before any JUDE was locked.
type SafelyAborted struct{}

func (s *SafelyAborted) Name() string     { return "SafelyAborted" }
func (s *SafelyAborted) IsTerminal() bool { return true }
func (s *SafelyAborted) Transition(ctx context.Context, d *Deps) (State, error) {
	return s, nil
}

func punishWindow(s3 *protocol.State3) time.Duration {
	return time.Duration(s3.PunishTimelock) * 10 * time.Minute
}
