package secp256k1

import "github.com/btcsuite/btcd/btcec/v2"

// AddScalars returns (a + b) mod n as a raw 32-byte scalar.
func AddScalars(a, b [32]byte) [32]byte {
	as := new(btcec.ModNScalar)
	as.SetByteSlice(a[:])
	bs := new(btcec.ModNScalar)
	bs.SetByteSlice(b[:])
	as.Add(bs)
	return as.Bytes()
}

// MulScalars returns (a * b) mod n as a raw 32-byte scalar.
func MulScalars(a, b [32]byte) [32]byte {
	as := new(btcec.ModNScalar)
	as.SetByteSlice(a[:])
	bs := new(btcec.ModNScalar)
	bs.SetByteSlice(b[:])
	as.Mul(bs)
	return as.Bytes()
}

// ScalarMult returns c·P for a 32-byte scalar c and public point P.
func ScalarMult(c [32]byte, p *PublicKey) *PublicKey {
	cs := new(btcec.ModNScalar)
	cs.SetByteSlice(c[:])

	var pj, resj btcec.JacobianPoint
	p.key.AsJacobian(&pj)
	btcec.ScalarMultNonConst(cs, &pj, &resj)
	resj.ToAffine()

	return &PublicKey{key: btcec.NewPublicKey(&resj.X, &resj.Y)}
}
