// Package message defines the wire messages exchanged between Alice and
// Bob over the libp2p swap protocol stream, directly adapted from the
// teacher's net/message/message.go (same byte-prefixed JSON encoding, same
// Message interface and DecodeMessage dispatch), with the ETH-specific
// messages replaced by their BTC equivalents.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type represents the type of a network message.
type Type byte

const (
	SendKeysType Type = iota
	NotifyBtcLockType
	NotifyXmrLockType
	NotifyXmrLockProofType
	NotifyEncryptedSignatureType
	NotifyReadyType
	NotifyRefundType
	SwapSetupSignaturesType
	NilType
)

func (t Type) String() string {
	switch t {
	case SendKeysType:
		return "SendKeysMessage"
	case NotifyBtcLockType:
		return "NotifyBtcLock"
	case NotifyXmrLockType:
		return "NotifyXmrLock"
	case NotifyXmrLockProofType:
		return "NotifyXmrLockProof"
	case NotifyEncryptedSignatureType:
		return "NotifyEncryptedSignature"
	case NotifyReadyType:
		return "NotifyReady"
	case NotifyRefundType:
		return "NotifyRefund"
	case SwapSetupSignaturesType:
		return "SwapSetupSignatures"
	default:
		return "unknown"
	}
}

// Message must be implemented by all network messages.
type Message interface {
	String() string
	Encode() ([]byte, error)
	Type() Type
}

// DecodeMessage decodes the given bytes into a Message.
func DecodeMessage(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, errors.New("message: invalid message bytes")
	}

	switch Type(b[0]) {
	case SendKeysType:
		var m SendKeysMessage
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyBtcLockType:
		var m NotifyBtcLock
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyXmrLockType:
		var m NotifyXmrLock
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyXmrLockProofType:
		var m NotifyXmrLockProof
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyEncryptedSignatureType:
		var m NotifyEncryptedSignature
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyReadyType:
		var m NotifyReady
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case NotifyRefundType:
		var m NotifyRefund
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	case SwapSetupSignaturesType:
		var m SwapSetupSignatures
		if err := json.Unmarshal(b[1:], &m); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("message: invalid message type %d", b[0])
	}
}

func encode(t Type, m interface{}) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(t)}, b...), nil
}

// SendKeysMessage is sent by both parties to each other during the
// handshake that produces State3: each side's own BTC/JUDE public keys,
// private view key contribution, and the dual-curve binding proof.
type SendKeysMessage struct {
	SwapID             string
	ProvidedAmount     float64
	PublicSpendKey     string
	PrivateViewKey     string
	DLEqProof          string
	Secp256k1PublicKey string

	// RedeemAddress and PunishAddress are Alice's own BTC receive
	// addresses; empty on the
	// message Bob sends. RefundAddress is Bob's own BTC receive address
	//; empty on the message Alice sends.
	RedeemAddress string
	PunishAddress string
	RefundAddress string
}

func (m *SendKeysMessage) String() string {
	return fmt.Sprintf("SendKeysMessage SwapID=%s ProvidedAmount=%v PublicSpendKey=%s Secp256k1PublicKey=%s",
		m.SwapID, m.ProvidedAmount, m.PublicSpendKey, m.Secp256k1PublicKey)
}

func (m *SendKeysMessage) Encode() ([]byte, error) { return encode(SendKeysType, m) }
func (m *SendKeysMessage) Type() Type              { return SendKeysType }

// NotifyBtcLock is sent by Bob to Alice during the handshake, carrying the
// txid of the lock transaction before it is broadcast.
type NotifyBtcLock struct {
	TxID string
}

func (m *NotifyBtcLock) String() string           { return fmt.Sprintf("NotifyBtcLock TxID=%s", m.TxID) }
func (m *NotifyBtcLock) Encode() ([]byte, error)  { return encode(NotifyBtcLockType, m) }
func (m *NotifyBtcLock) Type() Type               { return NotifyBtcLockType }

// NotifyXmrLock is sent by Alice to Bob after submitting the JUDE transfer
// to the joint spend key, carrying the restore height captured before
// submission.
type NotifyXmrLock struct {
	Address       string
	RestoreHeight uint64
}

func (m *NotifyXmrLock) String() string {
	return fmt.Sprintf("NotifyXmrLock Address=%s RestoreHeight=%d", m.Address, m.RestoreHeight)
}
func (m *NotifyXmrLock) Encode() ([]byte, error) { return encode(NotifyXmrLockType, m) }
func (m *NotifyXmrLock) Type() Type              { return NotifyXmrLockType }

// NotifyXmrLockProof carries the transfer proof binding Alice to the
// outgoing JUDE transaction. Alice's XmrLocked resends it once a second
// until SendSwapMessage succeeds or its ctx is done; no acknowledgement
// from Bob is awaited.
type NotifyXmrLockProof struct {
	TxHash string
	TxKey  string
}

func (m *NotifyXmrLockProof) String() string {
	return fmt.Sprintf("NotifyXmrLockProof TxHash=%s", m.TxHash)
}
func (m *NotifyXmrLockProof) Encode() ([]byte, error) { return encode(NotifyXmrLockProofType, m) }
func (m *NotifyXmrLockProof) Type() Type              { return NotifyXmrLockProofType }

// NotifyEncryptedSignature is sent by Bob to Alice once he has confirmed
// the JUDE lock at the agreed amount and view key; it carries Bob's adaptor-encrypted signature on the
// BTC redeem transaction.
type NotifyEncryptedSignature struct {
	EncryptedSignature []byte
}

func (m *NotifyEncryptedSignature) String() string {
	return fmt.Sprintf("NotifyEncryptedSignature len=%d", len(m.EncryptedSignature))
}
func (m *NotifyEncryptedSignature) Encode() ([]byte, error) {
	return encode(NotifyEncryptedSignatureType, m)
}
func (m *NotifyEncryptedSignature) Type() Type { return NotifyEncryptedSignatureType }

// NotifyReady is sent by either party to acknowledge receipt of a message
// requiring confirmation (e.g. the transfer proof).
type NotifyReady struct{}

func (m *NotifyReady) String() string          { return "NotifyReady" }
func (m *NotifyReady) Encode() ([]byte, error) { return encode(NotifyReadyType, m) }
func (m *NotifyReady) Type() Type              { return NotifyReadyType }

// NotifyRefund is sent by Bob to Alice once he has broadcast the BTC
// refund transaction, so Alice doesn't need to poll the chain to learn it.
type NotifyRefund struct {
	TxID string
}

func (m *NotifyRefund) String() string          { return fmt.Sprintf("NotifyRefund TxID=%s", m.TxID) }
func (m *NotifyRefund) Encode() ([]byte, error) { return encode(NotifyRefundType, m) }
func (m *NotifyRefund) Type() Type              { return NotifyRefundType }

// SwapSetupSignatures is exchanged by both parties once every derived BTC
// transaction's txid is known, cooperatively completing the cancel branch
// and pre-positioning the refund adaptor presignature before anyone locks
// value: CancelSig is each side's ordinary signature on the cancel tx's
// spend of the lock output; RefundEncryptedSig is set only on Alice's
// message, her adaptor-encrypted presignature on the refund tx under Bob's
// dual-curve-bound adaptor point.
type SwapSetupSignatures struct {
	CancelSig          []byte
	RefundEncryptedSig []byte
}

func (m *SwapSetupSignatures) String() string {
	return fmt.Sprintf("SwapSetupSignatures CancelSigLen=%d RefundEncSigLen=%d", len(m.CancelSig), len(m.RefundEncryptedSig))
}
func (m *SwapSetupSignatures) Encode() ([]byte, error) { return encode(SwapSetupSignaturesType, m) }
func (m *SwapSetupSignatures) Type() Type              { return SwapSetupSignaturesType }
