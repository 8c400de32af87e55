package dleq

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/crypto/jude"
	"github.com/jude-swap/swap/crypto/secp256k1"
)

func TestProveVerify(t *testing.T) {
	secpKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	scalar := secpKey.Scalar()
	judeKey, err := jude.NewPrivateSpendKeyFromScalar(scalar)
	require.NoError(t, err)

	prover := &Prover{Secp256k1Secret: secpKey, JudeSecret: judeKey}
	proof, err := prover.Prove()
	require.NoError(t, err)

	result, err := Verify(secpKey.PublicKey(), judeKey.Public(), proof)
	require.NoError(t, err)
	require.Equal(t, secpKey.PublicKey().Compressed(), result.Secp256k1PublicKey.Compressed())
}

func TestVerifyRejectsMismatchedPoint(t *testing.T) {
	secpKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	judeKey, err := jude.NewPrivateSpendKeyFromScalar(secpKey.Scalar())
	require.NoError(t, err)

	prover := &Prover{Secp256k1Secret: secpKey, JudeSecret: judeKey}
	proof, err := prover.Prove()
	require.NoError(t, err)

	other, err := jude.GenerateSpendKey()
	require.NoError(t, err)

	_, err = Verify(secpKey.PublicKey(), other.Public(), proof)
	require.Error(t, err)
}
