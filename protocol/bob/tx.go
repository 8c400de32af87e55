// tx.go builds and inspects the BTC transactions Bob's transitions need
// beyond the shared builders in the bitcoin package: outpoint bookkeeping,
// his own cached adaptor-encrypted signature on the redeem tx, decryption
// of Alice's cached refund presignature, and extraction of a
// counterparty-revealed signature off a confirmed tx's witness. Mirrors
// protocol/alice/tx.go from the opposite role, grounded on the same
// transaction set and adaptor mechanics.
package bob

import (
	"fmt"

	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/crypto/adaptor"
	"github.com/jude-swap/swap/protocol"
)

func lockOutpoint(s3 *protocol.State3) wire.OutPoint {
	return wire.OutPoint{Hash: s3.Txs.LockTxID, Index: 0}
}

func cancelOutpoint(s3 *protocol.State3) wire.OutPoint {
	return wire.OutPoint{Hash: s3.Txs.CancelTxID, Index: 0}
}

// buildRedeemEncryptedSignature returns Bob's own cached adaptor-encrypted
// signature on the redeem tx, computed once at
// handshake time since EncSign is randomized per call and so cannot be
// reconstructed deterministically later (mirrors
// alice.buildRefundEncryptedSignature).
func buildRedeemEncryptedSignature(s3 *protocol.State3, params *chaincfg.Params) (*adaptor.EncryptedSignature, error) {
	if len(s3.RedeemEncryptedSig) == 0 {
		return nil, fmt.Errorf("bob: no cached redeem encrypted signature in state3")
	}
	return adaptor.ParseEncryptedSignature(s3.RedeemEncryptedSig)
}

// buildSignedCancelTx builds the fully-witnessed cancel transaction: the
// lock output's 2-of-2 witness is completed with the counterparty's
// cooperatively-exchanged signature (cached at handshake) plus Bob's own
// direct signature. Identical in shape to alice.buildSignedCancelTx — the
// cancel branch needs no secret reveal from either side.
func buildSignedCancelTx(s3 *protocol.State3, params *chaincfg.Params) (*wire.MsgTx, error) {
	if len(s3.CounterpartyCancelSig) == 0 {
		return nil, fmt.Errorf("bob: no cached counterparty cancel signature in state3")
	}

	cancelOutScript, err := bitcoin.WitnessScriptHash(s3.CancelScript)
	if err != nil {
		return nil, fmt.Errorf("failed to build cancel output script: %w", err)
	}
	tx := bitcoin.BuildCancelTx(lockOutpoint(s3), int64(s3.BtcAmount), s3.LockScript, s3.CancelTimelock, cancelOutScript)

	sighash, err := bitcoin.SegwitSighash(tx, 0, s3.LockScript, int64(s3.BtcAmount))
	if err != nil {
		return nil, fmt.Errorf("failed to compute cancel sighash: %w", err)
	}

	ownSig := btcecdsa.Sign(s3.OwnSecp256k1Key.BtcecPrivateKey(), sighash[:])
	ownPub := s3.OwnSecp256k1Key.PublicKey().Compressed()
	counterpartyPub := s3.CounterpartySecp256k1Pub.Compressed()

	bitcoin.AttachMultiSigWitness(tx, s3.LockScript, ownPub, withSighashAll(ownSig.Serialize()),
		counterpartyPub, withSighashAll(s3.CounterpartyCancelSig))
	return tx, nil
}

// buildSignedRefundTx builds the fully-witnessed refund transaction: Alice's
// cached adaptor-encrypted presignature on the refund tx, decrypted by Bob
//, plus Bob's own direct
// cooperative signature complete the cancel output's 2-of-2 else-branch
// witness (genCancelScript).
func buildSignedRefundTx(s3 *protocol.State3, params *chaincfg.Params) (*wire.MsgTx, error) {
	if len(s3.RefundEncryptedSig) == 0 {
		return nil, fmt.Errorf("bob: no cached refund encrypted signature in state3")
	}

	refundScript, err := bitcoin.AddressToScript(s3.RefundAddress, params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve refund destination: %w", err)
	}

	tx := bitcoin.BuildRefundTx(cancelOutpoint(s3), int64(s3.BtcAmount), refundScript)

	sighash, err := bitcoin.SegwitSighash(tx, 0, s3.CancelScript, int64(s3.BtcAmount))
	if err != nil {
		return nil, fmt.Errorf("failed to compute refund sighash: %w", err)
	}

	encSig, err := adaptor.ParseEncryptedSignature(s3.RefundEncryptedSig)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to parse cached refund encrypted signature: %w", err)
	}

	if err := adaptor.VerifyEncryptedSignature(encSig, s3.CounterpartySecp256k1Pub, sighash); err != nil {
		return nil, fmt.Errorf("bob: alice's refund presignature is malformed: %w", err)
	}

	aliceSig, err := adaptor.Decrypt(encSig, s3.OwnSecp256k1Key, s3.CounterpartySecp256k1Pub, sighash)
	if err != nil {
		return nil, fmt.Errorf("bob: failed to decrypt alice's refund presignature: %w", err)
	}

	bobSig := btcecdsa.Sign(s3.OwnSecp256k1Key.BtcecPrivateKey(), sighash[:])
	ownPub := s3.OwnSecp256k1Key.PublicKey().Compressed()
	counterpartyPub := s3.CounterpartySecp256k1Pub.Compressed()

	bitcoin.AttachMultiSigWitness(tx, s3.CancelScript, ownPub, withSighashAll(bobSig.Serialize()),
		counterpartyPub, withSighashAll(aliceSig.DER()))
	return tx, nil
}

// extractSignatureFromWitness pulls the revealed signature corresponding to
// Bob's original encrypted redeem presignature off a confirmed redeem tx's
// witness stack, the form adaptor.Extract needs to recover s_a. Mirrors alice.extractSignatureFromWitness exactly — the
// witness layout is the same regardless of which side built the spend.
func extractSignatureFromWitness(tx *wire.MsgTx) (*adaptor.Signature, error) {
	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) < 2 {
		return nil, fmt.Errorf("bob: redeem tx witness is malformed")
	}

	der := tx.TxIn[0].Witness[1]
	sig, err := adaptor.ParseSignature(trimSighashFlag(der))
	if err != nil {
		return nil, fmt.Errorf("failed to parse revealed signature: %w", err)
	}
	return sig, nil
}

// withSighashAll appends the SIGHASH_ALL byte a witness signature element
// carries on the wire; trimSighashFlag strips it back off before DER
// parsing.
func withSighashAll(der []byte) []byte {
	return append(der, byte(0x01))
}

// trimSighashFlag drops the trailing SIGHASH_ALL byte a witness signature
// element carries, which adaptor.ParseSignature's raw DER parser doesn't
// expect.
func trimSighashFlag(sigWithHashType []byte) []byte {
	if len(sigWithHashType) > 0 {
		return sigWithHashType[:len(sigWithHashType)-1]
	}
	return sigWithHashType
}
