package lnutil

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
)

// CompactSigLen is the length of a recoverable signature: one recovery byte
// followed by r and s.
const CompactSigLen = 65

// MsgDigest is the double sha256 of a serialized message; this is what gets
// signed.
func MsgDigest(msg []byte) chainhash.Hash {
	return chainhash.DoubleHashH(msg)
}

// PubKeyToPKH turns a public key into the 20 byte identifier used as an
// address everywhere in pfs.
func PubKeyToPKH(pub *btcec.PublicKey) [20]byte {
	var pkh [20]byte
	copy(pkh[:], btcutil.Hash160(pub.SerializeCompressed()))
	return pkh
}

// SignDigest makes a recoverable signature over digest.
func SignDigest(priv *btcec.PrivateKey, digest chainhash.Hash) ([]byte, error) {
	return btcec.SignCompact(btcec.S256(), priv, digest[:], true)
}

// RecoverPKH returns the pkh of whoever signed digest.  The signature has to
// be a compact, recoverable one.
func RecoverPKH(digest chainhash.Hash, sig []byte) ([20]byte, error) {
	var pkh [20]byte
	if len(sig) != CompactSigLen {
		return pkh, fmt.Errorf("signature is %d bytes, expect %d", len(sig), CompactSigLen)
	}
	pub, _, err := btcec.RecoverCompact(btcec.S256(), sig, digest[:])
	if err != nil {
		return pkh, err
	}
	return PubKeyToPKH(pub), nil
}
