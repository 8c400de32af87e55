// Package bitcoin builds the five pre-agreed BTC transactions
// (lock, cancel, refund, punish, redeem) and wraps the Electrum-backed
// wallet capability this protocol needs. Script construction is grounded on
// backend-engineer1-land (lnd)'s lnwallet/script_utils.go: genMultiSigScript,
// genFundingPkScript, spendMultiSig, and the CLTV+CSV pattern from
// senderHTLCScript, applied to the swap's two-stage cancel→punish timelock
// instead of lnd's revoke/HTLC branches.
package bitcoin

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// genMultiSigScript generates the non-P2SH 2-of-2 multisig redeem script for
// the BTC lock output, identical in shape to lnd's funding multisig.
func genMultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if len(aPub) != 33 || len(bPub) != 33 {
		return nil, fmt.Errorf("pubkey size error, compressed pubkeys only")
	}

	// Keys are sorted lexicographically so the witness signature order is
	// deterministic regardless of call-site argument order.
	if bytes.Compare(aPub, bPub) == -1 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	return bldr.Script()
}

// witnessScriptHash wraps a redeem script in a P2WSH output script.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	h := sha256.Sum256(redeemScript)
	bldr.AddData(h[:])
	return bldr.Script()
}

// LockRedeemScript exposes genLockScript to callers outside the package
// (the handshake that assembles State3 needs the bare redeem script and
// output to size the lock transaction before Bob has chosen funding
// inputs).
func LockRedeemScript(aPub, bPub *btcec.PublicKey, amount int64) ([]byte, *wire.TxOut, error) {
	return genLockScript(aPub, bPub, amount)
}

// CancelRedeemScript exposes genCancelScript to callers outside the
// package, for the same handshake-time reason as LockRedeemScript.
func CancelRedeemScript(aPub, bPub, alicePunishPub *btcec.PublicKey, punishTimelock uint32) ([]byte, error) {
	return genCancelScript(aPub, bPub, alicePunishPub, punishTimelock)
}

// WitnessScriptHash exposes witnessScriptHash to callers outside the
// package, needed to turn the cancel redeem script into an output script
// before the cancel transaction itself is signed.
func WitnessScriptHash(redeemScript []byte) ([]byte, error) {
	return witnessScriptHash(redeemScript)
}

// genLockScript builds the 2-of-2 redeem script and matching P2WSH output
// for the BTC lock transaction.
func genLockScript(aPub, bPub *btcec.PublicKey, amount int64) ([]byte, *wire.TxOut, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("lock amount must be positive")
	}

	redeemScript, err := genMultiSigScript(aPub.SerializeCompressed(), bPub.SerializeCompressed())
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, wire.NewTxOut(amount, pkScript), nil
}

// genCancelScript builds the redeem script for the cancel output: spendable
// through the ELSE branch by a 2-of-2 carrying both sides' signatures (the
// refund path; this script itself has no timelock on it, the cancel
// timelock lives in the cancel tx's nSequence), and through the IF branch
// by Alice alone after punishTimelock relative blocks.
//
//	OP_IF
//	    <punishTimelock> OP_CHECKSEQUENCEVERIFY OP_DROP
//	    <alicePunish> OP_CHECKSIG
//	OP_ELSE
//	    2 <A> <B> 2 OP_CHECKMULTISIG
//	OP_ENDIF
func genCancelScript(aPub, bPub, alicePunishPub *btcec.PublicKey, punishTimelock uint32) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()

	bldr.AddOp(txscript.OP_IF)
	bldr.AddInt64(int64(punishTimelock))
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddData(alicePunishPub.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddOp(txscript.OP_2)
	aBytes, bBytes := aPub.SerializeCompressed(), bPub.SerializeCompressed()
	if bytes.Compare(aBytes, bBytes) == -1 {
		aBytes, bBytes = bBytes, aBytes
	}
	bldr.AddData(aBytes)
	bldr.AddData(bBytes)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	bldr.AddOp(txscript.OP_ENDIF)

	return bldr.Script()
}

// genLockRelativeScript wraps the 2-of-2 lock output script with a relative
// locktime gate so the cancel transaction can't confirm before
// cancelTimelock blocks have passed since the lock tx.
func genLockRelativeScript(redeemScript []byte, cancelTimelock uint32) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddInt64(int64(cancelTimelock))
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddOps(redeemScript)
	return bldr.Script()
}

// spendMultiSig builds the witness stack required to spend a 2-of-2 P2WSH
// multisig output, ordering the signatures to match the sorted pubkeys in
// the redeem script (mirrors lnd's spendMultiSig).
func spendMultiSig(redeemScript, pubA, sigA, pubB, sigB []byte) [][]byte {
	witness := make([][]byte, 0, 4)
	witness = append(witness, nil) // OP_CHECKMULTISIG off-by-one stack pop

	if bytes.Compare(pubA, pubB) == -1 {
		witness = append(witness, sigB, sigA)
	} else {
		witness = append(witness, sigA, sigB)
	}

	witness = append(witness, redeemScript)
	return witness
}
