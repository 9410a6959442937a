package lnutil

import (
	"encoding/binary"

	"github.com/mit-dci/pfs/logging"
)

// U64tB puts a nonce or channel id in 8 big endian bytes.
func U64tB(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}

// I64tB does the same for token amounts.
func I64tB(i int64) []byte {
	return U64tB(uint64(i))
}

// BtI64 reads an amount back.  Anything but 8 bytes gives 7fff..., which
// no ledger or channel amount can reach.
func BtI64(b []byte) int64 {
	if len(b) != 8 {
		logging.Errorf("Got %x to BtI64 (%d bytes)", b, len(b))
		return 0x7fffffffffffffff
	}
	return int64(binary.BigEndian.Uint64(b))
}
