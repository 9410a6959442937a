package lnutil

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)

	digest := MsgDigest([]byte("fee update"))
	sig, err := SignDigest(priv, digest)
	require.NoError(t, err)
	require.Len(t, sig, CompactSigLen)

	pkh, err := RecoverPKH(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, PubKeyToPKH(priv.PubKey()), pkh)

	// a different message recovers some other key
	other, err := RecoverPKH(MsgDigest([]byte("other")), sig)
	if err == nil {
		assert.NotEqual(t, pkh, other)
	}

	_, err = RecoverPKH(digest, sig[:64])
	assert.Error(t, err)
}

func TestIntBytes(t *testing.T) {
	assert.Equal(t, int64(-5), BtI64(I64tB(-5)))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 0}, U64tB(256))
	assert.Equal(t, int64(0x7fffffffffffffff), BtI64([]byte{1}))
}
