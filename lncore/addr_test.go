package lncore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mit-dci/pfs/fees"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressParse(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(i * 7)
	}

	s := a.String()
	assert.Contains(t, s, "ln1")

	back, err := ParseAddress(s)
	require.NoError(t, err)
	assert.Equal(t, a, back)

	back, err = ParseAddress("0x00070e151c232a31383f464d545b626970777e85")
	require.NoError(t, err)
	assert.Equal(t, a, back)

	for _, bad := range []string{"asdfasdfasdfasfdadfs", "0x1234", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"} {
		_, err := ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddressJSON(t *testing.T) {
	a := Address{1, 2, 3}
	tok := TokenID{9}
	raw, err := json.Marshal(struct {
		A Address
		T TokenID
	}{a, tok})
	require.NoError(t, err)

	var out struct {
		A Address
		T TokenID
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, a, out.A)
	assert.Equal(t, tok, out.T)
}

func TestStatusMerge(t *testing.T) {
	assert.Equal(t, StatusClosed, StatusOpened.Merge(StatusClosed))
	assert.Equal(t, StatusClosed, StatusClosed.Merge(StatusClosing))
	assert.Equal(t, StatusSettled, StatusSettled.Merge(StatusOpened))
	assert.True(t, StatusOpened.Routable())
	assert.False(t, StatusClosing.Routable())
}

func TestFeeUpdateSigner(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	me := AddressFromPubKey(priv.PubKey())

	fu := FeeUpdate{
		EventHeader: EventHeader{Token: TokenID{1}, Channel: 4},
		From:        me,
		To:          Address{2},
		Nonce:       1,
		Schedule:    fees.Flat{Base: 3},
		ValidFrom:   time.Unix(100, 0),
		ValidUntil:  time.Unix(200, 0),
	}
	require.NoError(t, fu.Sign(priv))

	signer, err := fu.Signer()
	require.NoError(t, err)
	assert.Equal(t, me, signer)

	// tampering with the schedule changes the signer
	fu.Schedule = fees.Flat{Base: 0}
	signer, err = fu.Signer()
	if err == nil {
		assert.NotEqual(t, me, signer)
	}
}

func TestBalanceUpdateSigner(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	me := AddressFromPubKey(priv.PubKey())

	bu := BalanceUpdate{
		EventHeader:       EventHeader{Token: TokenID{1}, Channel: 4},
		Updater:           me,
		Partner:           Address{2},
		Nonce:             3,
		TransferredAmount: 10,
	}
	require.NoError(t, bu.Sign(priv))
	signer, err := bu.Signer()
	require.NoError(t, err)
	assert.Equal(t, me, signer)
}
