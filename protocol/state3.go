// Package protocol holds the shared cryptographic record (State3) and
// persisted state envelope both Alice's and Bob's state machines build on,
// directly grounded on original_source/swap/src/database/alice.rs's
// `state3: alice::State3` field threaded through every persisted variant.
package protocol

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/jude-swap/swap/common"
	"github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/crypto/secp256k1"
)

// PrecomputedTxs holds the txids of the four derived BTC transactions,
// computed once at end-of-handshake so every later transition can reference
// them without rebuilding scripts.
type PrecomputedTxs struct {
	LockTxID   chainhash.Hash
	CancelTxID chainhash.Hash
	RefundTxID chainhash.Hash
	PunishTxID chainhash.Hash
	RedeemTxID chainhash.Hash
}

// State3 is the shared cryptographic record produced at the end of the
// handshake. Both roles hold an
// identical copy except for which half of each keypair they know: Alice's
// State3 carries OwnSecp256k1Key = a and OwnJudeKey = s_a with the
// counterparty's halves held only as public keys, and symmetrically for Bob.
type State3 struct {
	SwapID string

	// OwnSecp256k1Key is the caller's own BTC half-key (a for Alice, b for
	// Bob); the counterparty's half-key is known only as a public point
	// until revealed on-chain.
	OwnSecp256k1Key     *secp256k1.PrivateKey
	CounterpartySecp256k1Pub *secp256k1.PublicKey

	// OwnJudeKey is the caller's own JUDE half-key (s_a for Alice, s_b for
	// Bob); S = s_a·G + s_b·G is the joint spend key neither side can
	// derive alone until the corresponding BTC transaction publishes the
	// other half.
	OwnJudeKey             *jude.PrivateSpendKey
	CounterpartyJudePub    *jude.PublicKey
	JointViewKey           *jude.PrivateViewKey

	// CounterpartyAdaptorPoint is the counterparty's secp256k1 point whose
	// discrete log the dual-curve binding proof (crypto/dleq, )
	// certifies equals their JUDE half-key scalar: T_b for Alice's State3,
	// T_a for Bob's. It is the encryption target for the redeem/refund
	// adaptor signatures that force that scalar's on-chain reveal.
	CounterpartyAdaptorPoint *secp256k1.PublicKey

	// RefundEncryptedSig is Alice's adaptor-encrypted signature on the
	// refund tx, produced once at handshake time under CounterpartyAdaptorPoint
	// (T_b) and exchanged with Bob then, since EncSign is randomized and so
	// cannot be recomputed deterministically later. Bob decrypts it with his
	// own b (= s_b) to complete and broadcast the refund tx; Alice keeps her
	// own copy so she can later run adaptor.Extract against whatever
	// signature Bob reveals on-chain.
	RefundEncryptedSig []byte

	// RedeemEncryptedSig is Bob's adaptor-encrypted signature on the redeem
	// tx under CounterpartyAdaptorPoint (T_a), delivered to Alice over
	// NotifyEncryptedSignature; Bob keeps his own copy so he can later run
	// adaptor.Extract against Alice's on-chain redeem signature to recover
	// her a (= s_a).
	RedeemEncryptedSig []byte

	// CounterpartyCancelSig is the counterparty's ordinary (non-adaptor)
	// signature on the cancel tx, exchanged cooperatively at handshake
	// time since moving funds from lock to cancel requires no secret
	// reveal — either side can complete and broadcast it once
	// cancel_timelock allows.
	CounterpartyCancelSig []byte

	BtcAmount  common.BtcAmount
	JudeAmount common.JudeAmount

	CancelTimelock uint32
	PunishTimelock uint32

	RedeemAddress string // BTC address Alice ultimately receives to
	PunishAddress string // BTC address Alice receives to on punish
	RefundAddress string // BTC address Bob receives to on refund

	LockScript   []byte
	CancelScript []byte

	Txs PrecomputedTxs

	HandshakeCompletedAt time.Time
}

// JointSpendKey reconstructs S = s_a·G + s_b·G once both halves are known.
// It is only callable after the counterparty's half has been extracted
// from an on-chain adaptor signature.
func (s *State3) JointSpendKey(counterpartyJude *jude.PrivateSpendKey) *jude.PrivateSpendKey {
	return jude.SumPrivateSpendKeys(s.OwnJudeKey, counterpartyJude)
}

// JointSpendPublicKey returns S as a public point, computable by both sides
// immediately after handshake without either secret half being revealed.
func (s *State3) JointSpendPublicKey() *jude.PublicKey {
	return jude.SumPublicKeys(s.OwnJudeKey.Public(), s.CounterpartyJudePub)
}

// KeyPair bundles the joint spend/view keys into the form the jude wallet
// capability needs to open the swap's JUDE output. Nothing in this module
// calls it.
func (s *State3) KeyPair(counterpartyJude *jude.PrivateSpendKey, counterpartyView *jude.PrivateViewKey) *jude.PrivateKeyPair {
	spend := s.JointSpendKey(counterpartyJude)
	view := jude.SumPrivateViewKeys(s.jointViewHalf(), counterpartyView)
	return jude.NewPrivateKeyPair(spend, view)
}

// jointViewHalf returns this side's own contribution to the joint view key;
// v is stored directly as JointViewKey once both contributions are summed
// at handshake time, since (unlike the spend key) no secrecy is lost by
// computing it eagerly — the view key alone cannot spend JUDE.
func (s *State3) jointViewHalf() *jude.PrivateViewKey {
	return s.JointViewKey
}
