package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func TestGenLockScript(t *testing.T) {
	aPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	bPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	redeemScript, out, err := genLockScript(aPriv.PubKey(), bPriv.PubKey(), 100_000)
	require.NoError(t, err)
	require.NotEmpty(t, redeemScript)
	require.Equal(t, int64(100_000), out.Value)
	require.Equal(t, byte(0), out.PkScript[0]) // OP_0 witness version
}

func TestGenLockScriptRejectsZeroAmount(t *testing.T) {
	aPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	bPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	_, _, err = genLockScript(aPriv.PubKey(), bPriv.PubKey(), 0)
	require.Error(t, err)
}

func TestGenCancelScriptDeterministicOrdering(t *testing.T) {
	aPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	bPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	alicePunish, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	s1, err := genCancelScript(aPriv.PubKey(), bPriv.PubKey(), alicePunish.PubKey(), 144)
	require.NoError(t, err)
	s2, err := genCancelScript(bPriv.PubKey(), aPriv.PubKey(), alicePunish.PubKey(), 144)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}
