package lncore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/mit-dci/pfs/lnutil"
)

/*
 * Participants are known by the pkh of their pubkey, like lit nodes are.  We
 * print them the way lit does, bech32 with the "ln" prefix.  Token networks
 * are identified the same way but print as plain hex since they are contract
 * addresses and not nodes.
 */

// PkhBech32Prefix is the human readable part of a participant address.
const PkhBech32Prefix = "ln"

// Address identifies a participant.
type Address [20]byte

// AddressFromPubKey hashes a pubkey into its Address.
func AddressFromPubKey(pub *btcec.PublicKey) Address {
	return Address(lnutil.PubKeyToPKH(pub))
}

// ParseAddress accepts either the bech32 form or 0x prefixed hex.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return a, err
		}
		if len(raw) != len(a) {
			return a, fmt.Errorf("address is %d bytes, expect %d", len(raw), len(a))
		}
		copy(a[:], raw)
		return a, nil
	}

	prefix, data, err := bech32.Decode(s)
	if err != nil {
		return a, err
	}
	if prefix != PkhBech32Prefix {
		return a, fmt.Errorf("prefix is not '%s'", PkhBech32Prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return a, err
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("address is %d bytes, expect %d", len(raw), len(a))
	}
	copy(a[:], raw)
	return a, nil
}

// String gives the bech32 form.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return hex.EncodeToString(a[:])
	}
	s, err := bech32.Encode(PkhBech32Prefix, conv)
	if err != nil {
		return hex.EncodeToString(a[:])
	}
	return s
}

// Less orders addresses bytewise.
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TokenID identifies a token network.  Channels of different tokens never
// share a graph.
type TokenID [20]byte

// ParseTokenID reads hex, with or without 0x.
func ParseTokenID(s string) (TokenID, error) {
	var t TokenID
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return t, err
	}
	if len(raw) != len(t) {
		return t, fmt.Errorf("token id is %d bytes, expect %d", len(raw), len(t))
	}
	copy(t[:], raw)
	return t, nil
}

func (t TokenID) String() string {
	return "0x" + hex.EncodeToString(t[:])
}

func (t TokenID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TokenID) UnmarshalText(b []byte) error {
	parsed, err := ParseTokenID(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
