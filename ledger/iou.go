package ledger

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/lnutil"
)

// IOU is a participant's signed promise to pay the service.  Amount is the
// running total over all IOUs the sender gave, so a newer IOU replaces the
// older ones.
type IOU struct {
	Sender    lncore.Address `json:"sender"`
	Receiver  lncore.Address `json:"receiver"`
	Amount    int64          `json:"amount"`
	Expiry    time.Time      `json:"expiry"`
	Signature []byte         `json:"signature"`
}

var iouTag = []byte("pfs-iou")

func (u IOU) SigBytes() []byte {
	var buf bytes.Buffer
	buf.Write(iouTag)
	buf.Write(u.Sender[:])
	buf.Write(u.Receiver[:])
	buf.Write(lnutil.I64tB(u.Amount))
	buf.Write(lnutil.I64tB(u.Expiry.Unix()))
	return buf.Bytes()
}

func (u *IOU) Sign(priv *btcec.PrivateKey) error {
	sig, err := lnutil.SignDigest(priv, lnutil.MsgDigest(u.SigBytes()))
	if err != nil {
		return err
	}
	u.Signature = sig
	return nil
}

func (u IOU) Signer() (lncore.Address, error) {
	pkh, err := lnutil.RecoverPKH(lnutil.MsgDigest(u.SigBytes()), u.Signature)
	return lncore.Address(pkh), err
}

// InvalidIOUError is an IOU the ledger won't take.
type InvalidIOUError struct {
	Sender lncore.Address
	Reason string
}

func (err *InvalidIOUError) Error() string {
	return fmt.Sprintf("invalid IOU from %v: %s", err.Sender, err.Reason)
}

// InsufficientCreditError means the participant would owe more than the
// credit limit.
type InsufficientCreditError struct {
	Participant lncore.Address
	Owed        int64
	Paid        int64
	Reserved    int64
	Cost        int64
	Limit       int64
}

func (err *InsufficientCreditError) Error() string {
	return fmt.Sprintf("%v owes %d, paid %d, has %d reserved; %d more exceeds the credit limit of %d",
		err.Participant, err.Owed, err.Paid, err.Reserved, err.Cost, err.Limit)
}
