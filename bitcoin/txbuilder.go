// txbuilder.go constructs the five chained BTC transactions this protocol
// needs (lock, cancel, refund, punish, redeem) and the sighash digests each
// needs signed under BIP-143. Every transaction is built directly as a
// wire.MsgTx and its witness is attached by hand; psbt is not used.
package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const txVersion = 2

// Outpoint identifies a spendable BTC output by txid:vout.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// LockParams describes the inputs to the lock transaction: funding UTXOs controlled solely by Bob, paying into the 2-of-2
// output that both adaptor signatures are built against.
type LockParams struct {
	FundingInputs []wire.OutPoint
	FundingValue  int64
	AlicePub      *btcec.PublicKey
	BobPub        *btcec.PublicKey
	LockAmount    int64
	ChangeScript  []byte
	ChangeValue   int64
}

// BuildLockTx constructs the lock transaction and returns it alongside the
// redeem script of its sole 2-of-2 output, which every later transaction
// (cancel, refund, punish, redeem) spends from.
func BuildLockTx(p LockParams) (*wire.MsgTx, []byte, error) {
	redeemScript, lockOut, err := genLockScript(p.AlicePub, p.BobPub, p.LockAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build lock output script: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	for _, in := range p.FundingInputs {
		tx.AddTxIn(wire.NewTxIn(&in, nil, nil))
	}
	tx.AddTxOut(lockOut)
	if p.ChangeValue > 0 {
		tx.AddTxOut(wire.NewTxOut(p.ChangeValue, p.ChangeScript))
	}

	return tx, redeemScript, nil
}

// SpendParams bundles the arguments common to every transaction that spends
// out of the lock output (cancel) or the cancel output (refund, punish), or
// redeems directly from the lock output (redeem).
type SpendParams struct {
	PrevOutpoint wire.OutPoint
	PrevValue    int64
	PrevScript   []byte // the P2WSH script of the output being spent
	OutputScript []byte
	OutputValue  int64
	Sequence     uint32 // relative locktime (CSV); 0 if not using CSV
	Locktime     uint32 // absolute locktime (CLTV); 0 if not using CLTV
}

// buildSpendTx creates the single-input, single-output skeleton shared by
// cancel/refund/punish/redeem; callers fill in the witness after signing.
func buildSpendTx(p SpendParams) *wire.MsgTx {
	tx := wire.NewMsgTx(txVersion)
	tx.LockTime = p.Locktime

	txIn := wire.NewTxIn(&p.PrevOutpoint, nil, nil)
	txIn.Sequence = p.Sequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(p.OutputValue, p.OutputScript))

	return tx
}

// BuildCancelTx constructs the cancel transaction, spendable after
// cancelTimelock relative blocks have passed since the lock tx confirmed.
func BuildCancelTx(prevOut wire.OutPoint, lockValue int64, redeemScript []byte, cancelTimelock uint32, cancelOutScript []byte) *wire.MsgTx {
	return buildSpendTx(SpendParams{
		PrevOutpoint: prevOut,
		PrevValue:    lockValue,
		PrevScript:   redeemScript,
		OutputScript: cancelOutScript,
		OutputValue:  lockValue,
		Sequence:     cancelTimelock,
	})
}

// BuildRefundTx constructs the refund transaction,
// spending the cancel output back to Bob's own BTC address once Alice's
// cooperation window (or an adaptor-signed unilateral path) allows it.
func BuildRefundTx(prevOut wire.OutPoint, cancelValue int64, bobScript []byte) *wire.MsgTx {
	return buildSpendTx(SpendParams{
		PrevOutpoint: prevOut,
		PrevValue:    cancelValue,
		OutputScript: bobScript,
		OutputValue:  cancelValue,
	})
}

// BuildPunishTx constructs the punish transaction,
// spending the cancel output to Alice alone after punishTimelock additional
// relative blocks, penalizing Bob for failing to cooperate on refund.
func BuildPunishTx(prevOut wire.OutPoint, cancelValue int64, punishTimelock uint32, aliceScript []byte) *wire.MsgTx {
	return buildSpendTx(SpendParams{
		PrevOutpoint: prevOut,
		PrevValue:    cancelValue,
		OutputScript: aliceScript,
		OutputValue:  cancelValue,
		Sequence:     punishTimelock,
	})
}

// BuildRedeemTx constructs the redeem transaction,
// spending the lock output straight to Alice once she holds Bob's decrypted
// adaptor signature, before the cancel timelock expires.
func BuildRedeemTx(prevOut wire.OutPoint, lockValue int64, aliceScript []byte) *wire.MsgTx {
	return buildSpendTx(SpendParams{
		PrevOutpoint: prevOut,
		PrevValue:    lockValue,
		OutputScript: aliceScript,
		OutputValue:  lockValue,
	})
}

// SegwitSighash computes the BIP-143 witness sighash a 2-of-2 multisig or
// cancel-script spend must sign, the message hash adaptor.EncSign and
// adaptor.Decrypt operate over.
func SegwitSighash(tx *wire.MsgTx, inputIndex int, prevScript []byte, prevValue int64) ([32]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(prevScript, prevValue)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	h, err := txscript.CalcWitnessSigHash(prevScript, sigHashes, txscript.SigHashAll, tx, inputIndex, prevValue)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to compute witness sighash: %w", err)
	}

	var out [32]byte
	copy(out[:], h)
	return out, nil
}

// AttachMultiSigWitness finalizes a transaction's sole input with a 2-of-2
// multisig witness stack.
func AttachMultiSigWitness(tx *wire.MsgTx, redeemScript, pubA, sigA, pubB, sigB []byte) {
	tx.TxIn[0].Witness = spendMultiSig(redeemScript, pubA, sigA, pubB, sigB)
}

// AttachSingleSigWitness finalizes a transaction's sole input with a single
// signature, the branch selector and the redeem script, as the punish leaf
// of the cancel script takes it. That leaf names its own public key, so pub
// is not placed on the witness stack.
func AttachSingleSigWitness(tx *wire.MsgTx, redeemScript, sig, pub []byte, takeIfBranch bool) {
	var ifFlag []byte
	if takeIfBranch {
		ifFlag = []byte{1}
	}
	tx.TxIn[0].Witness = wire.TxWitness{sig, ifFlag, redeemScript}
}

// TxID returns the transaction's double-SHA256 hash in display (big-endian,
// reversed) form.
func TxID(tx *wire.MsgTx) chainhash.Hash {
	return tx.TxHash()
}
