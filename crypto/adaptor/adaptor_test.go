package adaptor

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jude-swap/swap/crypto/secp256k1"
)

func TestEncSignDecryptExtract(t *testing.T) {
	signingKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	adaptorSecret, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	adaptorPoint := adaptorSecret.PublicKey()

	msgHash := sha256.Sum256([]byte("redeem tx sighash"))

	encSig, err := EncSign(signingKey, adaptorPoint, msgHash)
	require.NoError(t, err)
	require.NoError(t, VerifyEncryptedSignature(encSig, signingKey.PublicKey(), msgHash))

	sig, err := Decrypt(encSig, adaptorSecret, signingKey.PublicKey(), msgHash)
	require.NoError(t, err)
	require.NotNil(t, sig.R)
	require.NotNil(t, sig.S)
	require.True(t, sig.Verify(signingKey.PublicKey(), msgHash))

	extracted, err := Extract(encSig, sig)
	require.NoError(t, err)
	require.True(t, extracted.PublicKey().Equal(adaptorPoint))
}

func TestDecrypt_RejectsWrongVerifyKey(t *testing.T) {
	signingKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	adaptorSecret, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	wrongKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	msgHash := sha256.Sum256([]byte("redeem tx sighash"))
	encSig, err := EncSign(signingKey, adaptorSecret.PublicKey(), msgHash)
	require.NoError(t, err)

	_, err = Decrypt(encSig, adaptorSecret, wrongKey.PublicKey(), msgHash)
	require.ErrorIs(t, err, ErrInvalidEncryptedSignature)
}

func TestDecrypt_RejectsWrongMessage(t *testing.T) {
	signingKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	adaptorSecret, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	msgHash := sha256.Sum256([]byte("redeem tx sighash"))
	wrongHash := sha256.Sum256([]byte("a different message entirely"))
	encSig, err := EncSign(signingKey, adaptorSecret.PublicKey(), msgHash)
	require.NoError(t, err)

	_, err = Decrypt(encSig, adaptorSecret, signingKey.PublicKey(), wrongHash)
	require.ErrorIs(t, err, ErrInvalidEncryptedSignature)
}

func TestEncryptedSignatureBytesRoundTrip(t *testing.T) {
	signingKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	adaptorSecret, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	msgHash := sha256.Sum256([]byte("cancel tx sighash"))
	encSig, err := EncSign(signingKey, adaptorSecret.PublicKey(), msgHash)
	require.NoError(t, err)

	b := encSig.Bytes()
	require.Len(t, b, 33+32+33)

	parsed, err := ParseEncryptedSignature(b)
	require.NoError(t, err)
	require.Equal(t, b, parsed.Bytes())
}
