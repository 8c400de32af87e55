// Package jude implements the ed25519 scalar/point arithmetic needed for
// JUDE's dual-key (spend key, view key) scheme and the joint spend key
// S = s_a·G + s_b·G that the locked JUDE output is controlled by. The
// shape here is reconstructed from its call sites in
// protocol/bob/swap_state.go (mcrypto.SumPrivateSpendKeys, NewPrivateKeyPair,
// WriteKeysToFile, (*PrivateSpendKey).View()).
package jude

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"filippo.io/edwards25519"

	"github.com/jude-swap/swap/common"
)

// PrivateSpendKey is one half of a joint JUDE spend key (s_a or s_b).
type PrivateSpendKey struct {
	scalar *edwards25519.Scalar
}

// PrivateViewKey is a JUDE view key scalar.
type PrivateViewKey struct {
	scalar *edwards25519.Scalar
}

// PublicKey is an ed25519 curve point (a public spend or view key).
type PublicKey struct {
	point *edwards25519.Point
}

// GenerateSpendKey returns a new random private spend key.
func GenerateSpendKey() (*PrivateSpendKey, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to read randomness: %w", err)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(buf[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive spend key scalar: %w", err)
	}
	return &PrivateSpendKey{scalar: s}, nil
}

// NewPrivateSpendKeyFromScalar builds a PrivateSpendKey from a canonical
// 32-byte little-endian scalar, as found in the adaptor secret once revealed
// on-chain.
func NewPrivateSpendKeyFromScalar(b [32]byte) (*PrivateSpendKey, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		return nil, fmt.Errorf("invalid spend key scalar: %w", err)
	}
	return &PrivateSpendKey{scalar: s}, nil
}

// Bytes returns the canonical 32-byte little-endian scalar encoding.
func (k *PrivateSpendKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.scalar.Bytes())
	return out
}

// Public returns the public spend key s·G.
func (k *PrivateSpendKey) Public() *PublicKey {
	p := new(edwards25519.Point).ScalarBaseMult(k.scalar)
	return &PublicKey{point: p}
}

// View derives the deterministic view key associated with this spend key,
// the way a standalone JUDE recovery wallet would.
// JUDE derives the view key as Keccak(s) reduced mod l; we use SHA-512
// reduced via SetUniformBytes as the Go-ecosystem equivalent.
func (k *PrivateSpendKey) View() (*PrivateViewKey, error) {
	h := sha512.Sum512(k.scalar.Bytes())
	s, err := edwards25519.NewScalar().SetUniformBytes(h[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive view key: %w", err)
	}
	return &PrivateViewKey{scalar: s}, nil
}

// SumPrivateSpendKeys returns s_a + s_b mod l, the joint spend key scalar.
func SumPrivateSpendKeys(a, b *PrivateSpendKey) *PrivateSpendKey {
	sum := edwards25519.NewScalar().Add(a.scalar, b.scalar)
	return &PrivateSpendKey{scalar: sum}
}

// SumPrivateViewKeys returns v_a + v_b mod l, the joint view key scalar.
func SumPrivateViewKeys(a, b *PrivateViewKey) *PrivateViewKey {
	sum := edwards25519.NewScalar().Add(a.scalar, b.scalar)
	return &PrivateViewKey{scalar: sum}
}

// SumPublicKeys returns the curve-point sum of two public spend keys, i.e.
// S = A + B without either side learning the other's private scalar.
func SumPublicKeys(a, b *PublicKey) *PublicKey {
	sum := new(edwards25519.Point).Add(a.point, b.point)
	return &PublicKey{point: sum}
}

// NewPublicKeyFromBytes parses a canonical 32-byte compressed ed25519 point.
func NewPublicKeyFromBytes(b [32]byte) (*PublicKey, error) {
	p, err := new(edwards25519.Point).SetBytes(b[:])
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 point: %w", err)
	}
	return &PublicKey{point: p}, nil
}

// ScalarMultPublicKey returns c·P for a 32-byte scalar c and point P, used
// by the dual-curve binding proof verifier.
func ScalarMultPublicKey(c [32]byte, p *PublicKey) *PublicKey {
	cs, err := edwards25519.NewScalar().SetCanonicalBytes(c[:])
	if err != nil {
		// The challenge is a SHA-256 digest, which is not always a
		// canonical (fully reduced) scalar; reduce it first.
		var wide [64]byte
		copy(wide[:32], c[:])
		cs = edwards25519.NewScalar()
		cs, _ = cs.SetUniformBytes(wide[:])
	}
	res := new(edwards25519.Point).ScalarMult(cs, p.point)
	return &PublicKey{point: res}
}

// NewPrivateViewKeyFromScalar builds a PrivateViewKey from a canonical
// 32-byte little-endian scalar, the form a counterparty's view key
// contribution arrives in over SendKeysMessage.
func NewPrivateViewKeyFromScalar(b [32]byte) (*PrivateViewKey, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		return nil, fmt.Errorf("invalid view key scalar: %w", err)
	}
	return &PrivateViewKey{scalar: s}, nil
}

// Bytes returns the canonical 32-byte little-endian scalar encoding.
func (k *PrivateViewKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.scalar.Bytes())
	return out
}

// Bytes returns the canonical 32-byte compressed point encoding.
func (k *PublicKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.point.Bytes())
	return out
}

func (k *PublicKey) String() string {
	return hex.EncodeToString(k.point.Bytes())
}

// PrivateKeyPair bundles a spend and view key, the minimum needed to open or
// recover a JUDE wallet.
type PrivateKeyPair struct {
	spend *PrivateSpendKey
	view  *PrivateViewKey
}

// NewPrivateKeyPair constructs a PrivateKeyPair from its two halves.
func NewPrivateKeyPair(spend *PrivateSpendKey, view *PrivateViewKey) *PrivateKeyPair {
	return &PrivateKeyPair{spend: spend, view: view}
}

// SpendKey returns the pair's private spend key.
func (kp *PrivateKeyPair) SpendKey() *PrivateSpendKey { return kp.spend }

// ViewKey returns the pair's private view key.
func (kp *PrivateKeyPair) ViewKey() *PrivateViewKey { return kp.view }

// Address returns an env-prefixed string for this key pair under the given
// network environment: the environment number, the public spend key and the
// private view key scalar, hex-encoded and colon-separated. It is not a
// base58 address and carries no checksum.
func (kp *PrivateKeyPair) Address(env common.Environment) Address {
	pubSpend := kp.spend.Public().Bytes()
	pubView := kp.view.Bytes()
	return Address(fmt.Sprintf("%d:%x:%x", env, pubSpend, pubView))
}

// Address is an opaque JUDE address string, as returned by
// judecoin-wallet-rpc's get_address.
type Address string

// ErrInvalidAddress is returned by ParseAddressEnv when addr doesn't match
// the env-prefixed encoding Address produces.
var ErrInvalidAddress = fmt.Errorf("jude: invalid address")

// ParseAddressEnv extracts the network environment a JUDE address was
// generated for, the check the CLI's address-network-mismatch validation
// (buy-jude on mainnet given a stagenet receive address, and vice versa)
// runs before ever starting a swap.
func ParseAddressEnv(addr Address) (common.Environment, error) {
	prefix, _, ok := strings.Cut(string(addr), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.Environment(n), nil
}

// WriteKeysToFile persists a key pair to disk so a user can recover funds
// manually if automated sweep fails, mirroring the
// teacher's mcrypto.WriteKeysToFile.
func WriteKeysToFile(path string, kp *PrivateKeyPair, env common.Environment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key backup directory: %w", err)
	}

	sb := kp.spend.Bytes()
	vb := kp.view.Bytes()
	contents := fmt.Sprintf(
		"environment: %s\naddress: %s\nspend key: %x\nview key: %x\n",
		env, kp.Address(env), sb, vb,
	)

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("failed to write key backup: %w", err)
	}

	return nil
}
