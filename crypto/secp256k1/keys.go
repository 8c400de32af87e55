// Package secp256k1 wraps btcec key types with the helpers the swap
// protocol needs: serialization used in handshake messages and point
// arithmetic used by the dual-curve binding proof.
package secp256k1

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PrivateKey is a secp256k1 scalar — one of the a/b half-keys this
// protocol binds to a JUDE spend-key scalar.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is a secp256k1 curve point.
type PublicKey struct {
	key *btcec.PublicKey
}

// GeneratePrivateKey returns a new random secp256k1 private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return &PrivateKey{key: k}, nil
}

// NewPrivateKeyFromScalar builds a PrivateKey from a raw 32-byte scalar.
func NewPrivateKeyFromScalar(b [32]byte) *PrivateKey {
	k, _ := btcec.PrivKeyFromBytes(b[:])
	return &PrivateKey{key: k}
}

// PublicKey returns the public key corresponding to this private key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// Scalar returns the private key's raw 32-byte big-endian scalar.
func (k *PrivateKey) Scalar() [32]byte {
	var out [32]byte
	b := k.key.Serialize()
	copy(out[:], b)
	return out
}

// BtcecPrivateKey exposes the underlying btcec key for transaction signing.
func (k *PrivateKey) BtcecPrivateKey() *btcec.PrivateKey {
	return k.key
}

// Add returns a new PrivateKey whose scalar is (k + other) mod n. Used to
// combine a and t-style secrets; not used for key derivation across roles
// since a and b are never shared directly.
func (k *PrivateKey) Add(other *PrivateKey) *PrivateKey {
	ks := new(btcec.ModNScalar)
	ks.SetByteSlice(k.key.Serialize())
	os := new(btcec.ModNScalar)
	os.SetByteSlice(other.key.Serialize())
	ks.Add(os)
	sum := ks.Bytes()
	nk, _ := btcec.PrivKeyFromBytes(sum[:])
	return &PrivateKey{key: nk}
}

// NewPublicKeyFromCompressed parses a 33-byte compressed public key.
func NewPublicKeyFromCompressed(b []byte) (*PublicKey, error) {
	k, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid compressed secp256k1 public key: %w", err)
	}
	return &PublicKey{key: k}, nil
}

// Compressed returns the 33-byte compressed serialization.
func (k *PublicKey) Compressed() []byte {
	return k.key.SerializeCompressed()
}

// String returns the hex-encoded compressed public key, used in handshake messages.
func (k *PublicKey) String() string {
	return hex.EncodeToString(k.Compressed())
}

// BtcecPublicKey exposes the underlying btcec point.
func (k *PublicKey) BtcecPublicKey() *btcec.PublicKey {
	return k.key
}

// Equal reports whether two public keys are the same curve point.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.key.IsEqual(other.key)
}

// Add returns the curve-point sum of the two public keys, i.e. the point
// corresponding to the sum of their discrete logs.
func (k *PublicKey) Add(other *PublicKey) *PublicKey {
	var p1, p2, sum btcec.JacobianPoint
	k.key.AsJacobian(&p1)
	other.key.AsJacobian(&p2)
	btcec.AddNonConst(&p1, &p2, &sum)
	sum.ToAffine()
	return &PublicKey{key: btcec.NewPublicKey(&sum.X, &sum.Y)}
}
