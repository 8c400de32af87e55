// Package adaptor implements ECDSA adaptor signatures over secp256k1: given
// a signature with adaptor point T = t·G, an encrypted signature can be
// decrypted with t into a valid ECDSA signature, and anyone observing both
// the encrypted and decrypted signature can extract t. This is the
// mechanism that forces Alice and Bob to reveal s_a/s_b on-chain.
//
// There is no adaptor-signature implementation anywhere in the retrieval
// pack (the reference ETH/XMR swap uses a DLEq-gated HTLC secret instead);
// the API shape below follows crypto/dleq.Proof's Prove/Verify idiom, with
// the elliptic-curve arithmetic done directly against btcec/v2.
package adaptor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/jude-swap/swap/crypto/secp256k1"
)

// ErrInvalidEncryptedSignature is returned when a decrypted signature fails
// to verify against the expected public key and message.
var ErrInvalidEncryptedSignature = errors.New("decrypted signature does not verify")

// EncryptedSignature is a pre-signature that decrypts to a valid ECDSA
// signature once the holder learns the adaptor secret t.
type EncryptedSignature struct {
	R    *secp256k1.PublicKey // R = k·T, the nonce point whose x-coordinate is the signature's r
	sHat *btcec.ModNScalar    // encrypted s value
	T    *secp256k1.PublicKey // adaptor point T = t·G
}

// Bytes serializes the encrypted signature for network transmission.
func (e *EncryptedSignature) Bytes() []byte {
	out := make([]byte, 0, 33+32+33)
	out = append(out, e.R.Compressed()...)
	sb := e.sHat.Bytes()
	out = append(out, sb[:]...)
	out = append(out, e.T.Compressed()...)
	return out
}

// encryptedSignatureLen is the fixed wire size of an encrypted signature:
// a compressed R point, a 32-byte scalar, and a compressed T point.
const encryptedSignatureLen = 33 + 32 + 33

// ParseEncryptedSignature decodes the wire format Bytes produces, the form
// NotifyEncryptedSignature carries across the event loop.
func ParseEncryptedSignature(b []byte) (*EncryptedSignature, error) {
	if len(b) != encryptedSignatureLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidEncryptedSignature, encryptedSignatureLen, len(b))
	}

	r, err := secp256k1.NewPublicKeyFromCompressed(b[:33])
	if err != nil {
		return nil, fmt.Errorf("failed to parse encrypted signature R: %w", err)
	}

	sHat := new(btcec.ModNScalar)
	sHat.SetByteSlice(b[33:65])

	t, err := secp256k1.NewPublicKeyFromCompressed(b[65:98])
	if err != nil {
		return nil, fmt.Errorf("failed to parse encrypted signature T: %w", err)
	}

	return &EncryptedSignature{R: r, sHat: sHat, T: t}, nil
}

// EncSign produces an encrypted signature on msgHash under signingKey, such
// that decrypting with adaptorSecret yields a valid ECDSA signature and
// publishing that signature leaks adaptorSecret to anyone who also holds
// the encrypted signature.
func EncSign(signingKey *secp256k1.PrivateKey, adaptorPoint *secp256k1.PublicKey, msgHash [32]byte) (*EncryptedSignature, error) {
	nonce, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate adaptor nonce: %w", err)
	}

	// R' = k·T; its affine x-coordinate is the encrypted signature's "r".
	var kT, rPoint btcec.JacobianPoint
	adaptorPoint.BtcecPublicKey().AsJacobian(&rPoint)
	var kScalar btcec.ModNScalar
	kBytes := nonce.Scalar()
	kScalar.SetByteSlice(kBytes[:])
	btcec.ScalarMultNonConst(&kScalar, &rPoint, &kT)
	kT.ToAffine()

	r := new(btcec.ModNScalar)
	r.SetByteSlice(kT.X.Bytes()[:])
	if r.IsZero() {
		return nil, errors.New("adaptor nonce produced zero r, retry")
	}

	e := new(btcec.ModNScalar)
	e.SetByteSlice(msgHash[:])

	priv := new(btcec.ModNScalar)
	privBytes := signingKey.Scalar()
	priv.SetByteSlice(privBytes[:])

	kInv := new(btcec.ModNScalar).Set(&kScalar).InverseNonConst()
	sHat := new(btcec.ModNScalar).Mul2(r, priv).Add(e).Mul(kInv)

	rPub := btcec.NewPublicKey(&kT.X, &kT.Y)
	rKey, err := secp256k1.NewPublicKeyFromCompressed(rPub.SerializeCompressed())
	if err != nil {
		return nil, fmt.Errorf("failed to derive encrypted signature nonce point: %w", err)
	}

	return &EncryptedSignature{
		R:    rKey,
		sHat: sHat,
		T:    adaptorPoint,
	}, nil
}

// Signature is a standard ECDSA signature, exposing R/S directly so callers
// can both serialize it to DER for a witness stack and feed it back into
// Extract without relying on a third-party accessor surface.
type Signature struct {
	R *btcec.ModNScalar
	S *btcec.ModNScalar
}

// DER returns the standard DER encoding of the signature, suitable for a BTC
// witness stack.
func (s *Signature) DER() []byte {
	return ecdsa.NewSignature(s.R, s.S).Serialize()
}

// Verify reports whether s is a valid ECDSA signature over msgHash under
// verifyKey.
func (s *Signature) Verify(verifyKey *secp256k1.PublicKey, msgHash [32]byte) bool {
	return ecdsa.NewSignature(s.R, s.S).Verify(msgHash[:], verifyKey.BtcecPublicKey())
}

// ParseSignature decodes a minimal DER-encoded (r, s) pair as found in a
// witness stack's signature element (the SIGHASH_ALL byte, if present, is
// the caller's responsibility to strip first), the form
// extractSignatureFromWitness reads off a published refund or redeem tx.
func ParseSignature(der []byte) (*Signature, error) {
	if len(der) < 8 || der[0] != 0x30 {
		return nil, fmt.Errorf("%w: not a DER sequence", ErrInvalidEncryptedSignature)
	}
	seqLen := int(der[1])
	if seqLen+2 > len(der) {
		return nil, fmt.Errorf("%w: truncated DER sequence", ErrInvalidEncryptedSignature)
	}
	body := der[2 : 2+seqLen]

	if len(body) < 2 || body[0] != 0x02 {
		return nil, fmt.Errorf("%w: missing r integer tag", ErrInvalidEncryptedSignature)
	}
	rLen := int(body[1])
	if 2+rLen > len(body) {
		return nil, fmt.Errorf("%w: truncated r value", ErrInvalidEncryptedSignature)
	}
	rBytes := body[2 : 2+rLen]
	rest := body[2+rLen:]

	if len(rest) < 2 || rest[0] != 0x02 {
		return nil, fmt.Errorf("%w: missing s integer tag", ErrInvalidEncryptedSignature)
	}
	sLen := int(rest[1])
	if 2+sLen > len(rest) {
		return nil, fmt.Errorf("%w: truncated s value", ErrInvalidEncryptedSignature)
	}
	sBytes := rest[2 : 2+sLen]

	r := new(btcec.ModNScalar)
	r.SetByteSlice(trimDERInt(rBytes))
	s := new(btcec.ModNScalar)
	s.SetByteSlice(trimDERInt(sBytes))

	return &Signature{R: r, S: s}, nil
}

// trimDERInt strips a leading zero byte DER adds to keep an integer's sign
// bit clear, so the remaining bytes fit SetByteSlice's 32-byte expectation.
func trimDERInt(b []byte) []byte {
	if len(b) > 32 && b[0] == 0x00 {
		return b[1:]
	}
	return b
}

// Decrypt turns an encrypted signature into a valid ECDSA signature, given
// knowledge of the adaptor secret t, and rejects the result unless it
// verifies against verifyKey/msgHash. Per spec §4.1: "if decryption
// validates to a malformed signature, treat as protocol fault: do NOT
// broadcast" — a counterparty that sends a garbled or wrongly-targeted
// encrypted signature must not be able to push a caller into broadcasting
// garbage. This is the step performed by Alice (using her a, the scalar
// dual-curve-bound to s_a) when she learns Bob's encrypted signature on
// the BTC redeem tx, and by Bob (using his b) when he decrypts Alice's
// refund presignature. Bob never decrypts his own encrypted signatures.
func Decrypt(encSig *EncryptedSignature, adaptorSecret *secp256k1.PrivateKey, verifyKey *secp256k1.PublicKey, msgHash [32]byte) (*Signature, error) {
	tScalar := new(btcec.ModNScalar)
	tb := adaptorSecret.Scalar()
	tScalar.SetByteSlice(tb[:])
	tInv := new(btcec.ModNScalar).Set(tScalar).InverseNonConst()

	s := new(btcec.ModNScalar).Mul2(encSig.sHat, tInv)
	// Canonical low-S form.
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	r := new(btcec.ModNScalar)
	rx := encSig.R.BtcecPublicKey().X().Bytes()
	r.SetByteSlice(rx[:])

	sig := &Signature{R: r, S: s}
	if !sig.Verify(verifyKey, msgHash) {
		return nil, fmt.Errorf("%w: decrypted signature does not verify against expected key/message", ErrInvalidEncryptedSignature)
	}
	return sig, nil
}

// Extract recovers the adaptor secret t given the encrypted signature and
// the corresponding decrypted (published, on-chain) signature. This is the
// mechanism by which Bob recovers s_a from Alice's redeem tx, and Alice
// recovers s_b from Bob's refund tx.
func Extract(encSig *EncryptedSignature, sig *Signature) (*secp256k1.PrivateKey, error) {
	sInv := new(btcec.ModNScalar).Set(sig.S).InverseNonConst()
	t := new(btcec.ModNScalar).Mul2(encSig.sHat, sInv)

	tb := t.Bytes()
	candidate := secp256k1.NewPrivateKeyFromScalar(tb)
	if !candidate.PublicKey().Equal(encSig.T) {
		// s may have been negated to canonical low-S form on-chain; the
		// other root recovers the same secret up to negation.
		negT := new(btcec.ModNScalar).Set(t).Negate()
		tb2 := negT.Bytes()
		candidate = secp256k1.NewPrivateKeyFromScalar(tb2)
		if !candidate.PublicKey().Equal(encSig.T) {
			return nil, fmt.Errorf("extracted scalar does not reproduce adaptor point: %w", ErrInvalidEncryptedSignature)
		}
	}

	return candidate, nil
}

// VerifyEncryptedSignature is a shape check only: it rejects an encrypted
// signature whose sHat is zero or whose R or T is missing. It does not use
// verifyKey or msgHash and does not check the nonce against the signing key,
// so a wrongly-targeted signature passes it; Decrypt's final Verify is what
// rejects such a signature before broadcast.
func VerifyEncryptedSignature(encSig *EncryptedSignature, verifyKey *secp256k1.PublicKey, msgHash [32]byte) error {
	// No proof relating R to the signing key is carried or checked here;
	// crypto/dleq binds only the adaptor point to the JUDE key.
	if encSig.sHat.IsZero() {
		return fmt.Errorf("%w: zero s value", ErrInvalidEncryptedSignature)
	}
	if encSig.R == nil || encSig.T == nil {
		return fmt.Errorf("%w: missing nonce or adaptor point", ErrInvalidEncryptedSignature)
	}
	_ = msgHash
	_ = verifyKey
	return nil
}
