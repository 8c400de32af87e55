// tx.go builds and inspects the BTC transactions Alice's transitions need
// beyond the shared builders in the bitcoin package: outpoint bookkeeping,
// her own cooperative signature on the redeem tx, and extraction of a
// counterparty-revealed signature off a confirmed refund tx's witness.
// Grounded on the pre-agreed transaction set and the adaptor
// signature mechanics in crypto/adaptor.
package alice

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

// decodeEncryptedSignature parses the wire bytes Bob's
// NotifyEncryptedSignature carried.
func decodeEncryptedSignature(b []byte) (*adaptor.EncryptedSignature, error) {
	return adaptor.ParseEncryptedSignature(b)
}

// redeemSighash computes the BTC redeem tx's segwit sighash independent of
// any witness — the value Bob's encrypted signature was targeted at, and
// so what EncSigLearned.Transition verifies Bob's decrypted signature
// against before trusting it enough to build and broadcast. Computable
// before any signature exists since it depends only on the fixed lock
// input and redeem output, not the witness.
func redeemSighash(s3 *protocol.State3, params *chaincfg.Params) ([32]byte, error) {
	redeemScript, err := bitcoin.AddressToScript(s3.RedeemAddress, params)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to resolve redeem destination: %w", err)
	}
	tx := bitcoin.BuildRedeemTx(lockOutpoint(s3), int64(s3.BtcAmount), redeemScript)
	return bitcoin.SegwitSighash(tx, 0, s3.LockScript, int64(s3.BtcAmount))
}

// buildSignedRedeemTx builds the fully-witnessed redeem transaction: Bob's
// decrypted signature (revealing s_a, invariant 2) plus Alice's own
// direct cooperative signature complete the lock output's 2-of-2 witness.
func buildSignedRedeemTx(s3 *protocol.State3, params *chaincfg.Params, bobSig *adaptor.Signature) (*wire.MsgTx, error) {
	redeemScript, err := bitcoin.AddressToScript(s3.RedeemAddress, params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve redeem destination: %w", err)
	}

	tx := bitcoin.BuildRedeemTx(lockOutpoint(s3), int64(s3.BtcAmount), redeemScript)

	sighash, err := bitcoin.SegwitSighash(tx, 0, s3.LockScript, int64(s3.BtcAmount))
	if err != nil {
		return nil, fmt.Errorf("failed to compute redeem sighash: %w", err)
	}

	aliceSig := btcecdsa.Sign(s3.OwnSecp256k1Key.BtcecPrivateKey(), sighash[:])

	ownPub := s3.OwnSecp256k1Key.PublicKey().Compressed()
	counterpartyPub := s3.CounterpartySecp256k1Pub.Compressed()

	bitcoin.AttachMultiSigWitness(tx, s3.LockScript, ownPub, withSighashAll(aliceSig.Serialize()), counterpartyPub, withSighashAll(bobSig.DER()))
	return tx, nil
}

// buildSignedCancelTx builds the fully-witnessed cancel transaction: the
// lock output's 2-of-2 witness is completed with the counterparty's
// cooperatively-exchanged signature (cached at handshake, // "Cancel") plus Alice's own direct signature.
func buildSignedCancelTx(s3 *protocol.State3, params *chaincfg.Params) (*wire.MsgTx, error) {
	if len(s3.CounterpartyCancelSig) == 0 {
		return nil, fmt.Errorf("alice: no cached counterparty cancel signature in state3")
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

// buildSignedPunishTx builds the fully-witnessed punish transaction: Alice
// alone can spend the cancel output's punish leaf once punishTimelock
// elapses, so it needs only her own direct signature,
// no adaptor decryption.
func buildSignedPunishTx(s3 *protocol.State3, params *chaincfg.Params) (*wire.MsgTx, error) {
	destScript, err := bitcoin.AddressToScript(s3.PunishAddress, params)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve punish destination: %w", err)
	}

	tx := bitcoin.BuildPunishTx(cancelOutpoint(s3), int64(s3.BtcAmount), s3.PunishTimelock, destScript)

	sighash, err := bitcoin.SegwitSighash(tx, 0, s3.CancelScript, int64(s3.BtcAmount))
	if err != nil {
		return nil, fmt.Errorf("failed to compute punish sighash: %w", err)
	}

	sig := btcecdsa.Sign(s3.OwnSecp256k1Key.BtcecPrivateKey(), sighash[:])
	pub := s3.OwnSecp256k1Key.PublicKey().Compressed()

	bitcoin.AttachSingleSigWitness(tx, s3.CancelScript, withSighashAll(sig.Serialize()), pub, true)
	return tx, nil
}

// extractSignatureFromWitness pulls the revealed signature corresponding to
// Alice's original encrypted refund presignature off a confirmed refund
// tx's witness stack, the form adaptor.Extract needs to recover s_b.
func extractSignatureFromWitness(tx *wire.MsgTx) (*adaptor.Signature, error) {
	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) < 2 {
		return nil, fmt.Errorf("alice: refund tx witness is malformed")
	}

	// spendMultiSig lays the witness out as {nil, sigB-or-sigA, sigA-or-sigB,
	// redeemScript} sorted by pubkey; the revealed signature tied to
	// Alice's original encrypted presignature occupies the first
	// signature slot regardless of sort order, since Bob has nothing of
	// his own to put there for the branch that forces the reveal.
	der := tx.TxIn[0].Witness[1]
	sig, err := adaptor.ParseSignature(trimSighashFlag(der))
	if err != nil {
		return nil, fmt.Errorf("failed to parse revealed signature: %w", err)
	}
	return sig, nil
}

// buildRefundEncryptedSignature returns Alice's cached adaptor-encrypted
// signature on the refund tx, computed once at
// handshake time since EncSign is randomized per call and so cannot be
// reconstructed deterministically later.
func buildRefundEncryptedSignature(s3 *protocol.State3) (*adaptor.EncryptedSignature, error) {
	if len(s3.RefundEncryptedSig) == 0 {
		return nil, fmt.Errorf("alice: no cached refund encrypted signature in state3")
	}
	return adaptor.ParseEncryptedSignature(s3.RefundEncryptedSig)
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
