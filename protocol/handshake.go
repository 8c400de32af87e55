// handshake.go implements the SendKeysMessage exchange that produces
// State3: each side generates a secp256k1/JUDE keypair sharing one scalar,
// proves the dual-curve binding with crypto/dleq, exchanges public
// material (and, for Bob, the txid of the unbroadcast, unsigned lock
// transaction FundLockTx built — unaffected by the as-yet-missing witness under
// BIP-141 — which lets both sides precompute every downstream txid before anyone
// commits to the chain). Grounded on the xmrtaker/xmrmaker key exchange
// (net/*.go SendKeysMessage construction and verification) used elsewhere
// in the pack, generalized from its single ETH secret to the dual-curve
// binding this protocol needs.
package protocol

import (
	"context"
	"encoding/hex"
	"fmt"

	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/jude-swap/swap/bitcoin"
	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/crypto/adaptor"
	"github.com/jude-swap/swap/crypto/dleq"
	"github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/crypto/secp256k1"
	"github.com/jude-swap/swap/net"
	"github.com/jude-swap/swap/net/message"
)

// ErrDLEqVerificationFailed means the counterparty's dual-curve binding
// proof didn't check out: their claimed secp256k1 adaptor point and JUDE
// spend-key point don't share a discrete log, so no adaptor signature under
// that point could ever reveal a usable JUDE scalar. This is a fatal
// abort, never retried.
var ErrDLEqVerificationFailed = fmt.Errorf("protocol: counterparty's dual-curve binding proof failed verification")

// HandshakeParams bundles what the caller already knows before running the
// handshake.
type HandshakeParams struct {
	SwapID         string
	Params         *chaincfg.Params
	BtcAmount      common.BtcAmount
	JudeAmount     common.JudeAmount
	CancelTimelock uint32
	PunishTimelock uint32

	// IsBtcProvider is true for Bob, who alone funds and pre-signs the
	// lock transaction; false for Alice, who instead
	// waits to receive its txid.
	IsBtcProvider bool
	BTC           bitcoin.Wallet // required when IsBtcProvider; unused otherwise
	ChangeScript  []byte         // Bob's change output script; unused on Alice's side

	// OwnRedeemAddress/OwnPunishAddress are set by Alice; OwnRefundAddress
	// is set by Bob. The side that doesn't own a given address leaves it
	// empty and adopts whatever the counterparty sends.
	OwnRedeemAddress string
	OwnPunishAddress string
	OwnRefundAddress string
}

// RunHandshake executes the full key exchange and returns the resulting
// State3, with every derived BTC transaction's txid already computed. When
// p.IsBtcProvider is set, it also returns the lock transaction as
// p.BTC.FundLockTx built it (not broadcast, and carrying no funding
// signatures with ElectrumWallet's FundLockTx); the return is nil
// on Alice's side, who only learns its txid.
func RunHandshake(ctx context.Context, n net.EventLoopHandle, p HandshakeParams) (*State3, *wire.MsgTx, error) {
	secpKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to generate secp256k1 half-key: %w", err)
	}
	judeKey, err := jude.NewPrivateSpendKeyFromScalar(secpKey.Scalar())
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to lift half-key to ed25519: %w", err)
	}
	viewSeed, err := jude.GenerateSpendKey()
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to generate view key seed: %w", err)
	}
	ownView, err := viewSeed.View()
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to derive view key: %w", err)
	}

	prover := &dleq.Prover{Secp256k1Secret: secpKey, JudeSecret: judeKey}
	proof, err := prover.Prove()
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to produce dual-curve binding proof: %w", err)
	}

	out := &message.SendKeysMessage{
		SwapID:             p.SwapID,
		PublicSpendKey:     judeKey.Public().String(),
		PrivateViewKey:     hex.EncodeToString(viewBytes(ownView)),
		DLEqProof:          hex.EncodeToString(proof.Bytes()),
		Secp256k1PublicKey: hex.EncodeToString(secpKey.PublicKey().Compressed()),
		RedeemAddress:      p.OwnRedeemAddress,
		PunishAddress:      p.OwnPunishAddress,
		RefundAddress:      p.OwnRefundAddress,
	}
	if p.IsBtcProvider {
		out.ProvidedAmount = p.BtcAmount.AsBtc()
	} else {
		out.ProvidedAmount = p.JudeAmount.AsJude()
	}
	if err := n.SendSwapMessage(out); err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to send key exchange message: %w", err)
	}

	msg, err := n.Recv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to receive counterparty key exchange message: %w", err)
	}
	in, ok := msg.(*message.SendKeysMessage)
	if !ok {
		return nil, nil, fmt.Errorf("protocol: expected SendKeysMessage, got %s", msg.Type())
	}

	secpPubBytes, err := hex.DecodeString(in.Secp256k1PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty secp256k1 public key encoding: %w", err)
	}
	counterpartySecpPub, err := secp256k1.NewPublicKeyFromCompressed(secpPubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty secp256k1 public key: %w", err)
	}
	counterpartyJudePubBytes, err := fixed32(in.PublicSpendKey)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty JUDE public key encoding: %w", err)
	}
	counterpartyJudePub, err := jude.NewPublicKeyFromBytes(counterpartyJudePubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty JUDE public key: %w", err)
	}
	counterpartyViewBytes, err := fixed32(in.PrivateViewKey)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty view key encoding: %w", err)
	}
	counterpartyView, err := jude.NewPrivateViewKeyFromScalar(counterpartyViewBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid counterparty view key: %w", err)
	}

	dleqProofBytes, err := hex.DecodeString(in.DLEqProof)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid dleq proof encoding: %w", err)
	}
	dleqProof := dleq.NewProofWithoutSecret(dleqProofBytes)
	if _, err := dleq.Verify(counterpartySecpPub, counterpartyJudePub, dleqProof); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDLEqVerificationFailed, err)
	}

	jointView := jude.SumPrivateViewKeys(ownView, counterpartyView)

	redeemAddr := firstNonEmpty(p.OwnRedeemAddress, in.RedeemAddress)
	punishAddr := firstNonEmpty(p.OwnPunishAddress, in.PunishAddress)
	refundAddr := firstNonEmpty(p.OwnRefundAddress, in.RefundAddress)

	var alicePub, bobPub *secp256k1.PublicKey
	if p.OwnRedeemAddress != "" {
		alicePub, bobPub = secpKey.PublicKey(), counterpartySecpPub
	} else {
		alicePub, bobPub = counterpartySecpPub, secpKey.PublicKey()
	}

	lockRedeemScript, lockOut, err := bitcoin.LockRedeemScript(alicePub.BtcecPublicKey(), bobPub.BtcecPublicKey(), int64(p.BtcAmount))
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to build lock script: %w", err)
	}
	cancelRedeemScript, err := bitcoin.CancelRedeemScript(alicePub.BtcecPublicKey(), bobPub.BtcecPublicKey(), alicePub.BtcecPublicKey(), p.PunishTimelock)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to build cancel script: %w", err)
	}
	cancelOutScript, err := bitcoin.WitnessScriptHash(cancelRedeemScript)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to build cancel output script: %w", err)
	}
	refundScript, err := bitcoin.AddressToScript(refundAddr, p.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid refund address: %w", err)
	}
	punishScript, err := bitcoin.AddressToScript(punishAddr, p.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid punish address: %w", err)
	}
	redeemScript, err := bitcoin.AddressToScript(redeemAddr, p.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: invalid redeem address: %w", err)
	}

	var lockHash chainhash.Hash
	var signedLockTx *wire.MsgTx
	if p.IsBtcProvider {
		if p.BTC == nil {
			return nil, nil, fmt.Errorf("protocol: IsBtcProvider set without a wallet")
		}
		signedLockTx, err = p.BTC.FundLockTx(ctx, bitcoin.LockParams{
			AlicePub:     alicePub.BtcecPublicKey(),
			BobPub:       bobPub.BtcecPublicKey(),
			LockAmount:   int64(p.BtcAmount),
			ChangeScript: p.ChangeScript,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to build lock transaction: %w", err)
		}
		lockHash = bitcoin.TxID(signedLockTx)
		if err := n.SendSwapMessage(&message.NotifyBtcLock{TxID: lockHash.String()}); err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to send lock txid: %w", err)
		}
	} else {
		lockMsg, err := n.Recv(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to receive lock txid: %w", err)
		}
		notify, ok := lockMsg.(*message.NotifyBtcLock)
		if !ok {
			return nil, nil, fmt.Errorf("protocol: expected NotifyBtcLock, got %s", lockMsg.Type())
		}
		h, err := chainhash.NewHashFromStr(notify.TxID)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: invalid lock txid: %w", err)
		}
		lockHash = *h
	}

	lockOutpoint := wire.OutPoint{Hash: lockHash, Index: 0}
	cancelTx := bitcoin.BuildCancelTx(lockOutpoint, lockOut.Value, lockRedeemScript, p.CancelTimelock, cancelOutScript)
	cancelTxID := bitcoin.TxID(cancelTx)

	cancelOutpoint := wire.OutPoint{Hash: cancelTxID, Index: 0}
	refundTx := bitcoin.BuildRefundTx(cancelOutpoint, lockOut.Value, refundScript)
	punishTx := bitcoin.BuildPunishTx(cancelOutpoint, lockOut.Value, p.PunishTimelock, punishScript)
	redeemTx := bitcoin.BuildRedeemTx(lockOutpoint, lockOut.Value, redeemScript)

	adaptorPoint := counterpartySecpPub // T_b for Alice's State3, T_a for Bob's: see State3.CounterpartyAdaptorPoint

	// Cooperatively complete the cancel branch and pre-position the refund
	// adaptor presignature before either side locks value; the redeem
	// presignature is deliberately NOT exchanged here, only computed and
	// cached locally by Bob, who must withhold it until the JUDE lock is
	// independently confirmed.
	cancelSighash, err := bitcoin.SegwitSighash(cancelTx, 0, lockRedeemScript, lockOut.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to compute cancel sighash: %w", err)
	}
	ownCancelSig := btcecdsa.Sign(secpKey.BtcecPrivateKey(), cancelSighash[:])

	out2 := &message.SwapSetupSignatures{CancelSig: ownCancelSig.Serialize()}

	var ownRefundEncSig []byte
	var ownRedeemEncSig []byte
	if p.OwnRedeemAddress != "" {
		// Alice's side: produce her adaptor-encrypted presignature on the
		// refund tx under T_b (CounterpartyAdaptorPoint) and send it now.
		refundSighash, err := bitcoin.SegwitSighash(refundTx, 0, cancelRedeemScript, lockOut.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to compute refund sighash: %w", err)
		}
		encSig, err := adaptor.EncSign(secpKey, adaptorPoint, refundSighash)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to produce refund presignature: %w", err)
		}
		ownRefundEncSig = encSig.Bytes()
		out2.RefundEncryptedSig = ownRefundEncSig
	} else {
		// Bob's side: produce his adaptor-encrypted presignature on the
		// redeem tx under T_a, cached for later, not sent until the JUDE
		// lock is independently confirmed.
		redeemSighash, err := bitcoin.SegwitSighash(redeemTx, 0, lockRedeemScript, lockOut.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to compute redeem sighash: %w", err)
		}
		encSig, err := adaptor.EncSign(secpKey, adaptorPoint, redeemSighash)
		if err != nil {
			return nil, nil, fmt.Errorf("protocol: failed to produce redeem presignature: %w", err)
		}
		ownRedeemEncSig = encSig.Bytes()
	}

	if err := n.SendSwapMessage(out2); err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to send setup signatures: %w", err)
	}
	sigMsg, err := n.Recv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: failed to receive counterparty setup signatures: %w", err)
	}
	inSigs, ok := sigMsg.(*message.SwapSetupSignatures)
	if !ok {
		return nil, nil, fmt.Errorf("protocol: expected SwapSetupSignatures, got %s", sigMsg.Type())
	}

	refundEncryptedSig := ownRefundEncSig
	if len(inSigs.RefundEncryptedSig) > 0 {
		// Bob's side: the only copy of Alice's refund presignature is the
		// one she just sent.
		refundEncryptedSig = inSigs.RefundEncryptedSig
	}

	return &State3{
		SwapID:                   p.SwapID,
		OwnSecp256k1Key:          secpKey,
		CounterpartySecp256k1Pub: counterpartySecpPub,
		OwnJudeKey:               judeKey,
		CounterpartyJudePub:      counterpartyJudePub,
		JointViewKey:             jointView,
		CounterpartyAdaptorPoint: adaptorPoint,
		RefundEncryptedSig:       refundEncryptedSig,
		RedeemEncryptedSig:       ownRedeemEncSig,
		CounterpartyCancelSig:    inSigs.CancelSig,
		BtcAmount:                p.BtcAmount,
		JudeAmount:               p.JudeAmount,
		CancelTimelock:           p.CancelTimelock,
		PunishTimelock:           p.PunishTimelock,
		RedeemAddress:            redeemAddr,
		PunishAddress:            punishAddr,
		RefundAddress:            refundAddr,
		LockScript:               lockRedeemScript,
		CancelScript:             cancelRedeemScript,
		Txs: PrecomputedTxs{
			LockTxID:   lockHash,
			CancelTxID: cancelTxID,
			RefundTxID: bitcoin.TxID(refundTx),
			PunishTxID: bitcoin.TxID(punishTx),
			RedeemTxID: bitcoin.TxID(redeemTx),
		},
	}, signedLockTx, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fixed32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func viewBytes(v *jude.PrivateViewKey) []byte {
	b := v.Bytes()
	return b[:]
}
