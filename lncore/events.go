package lncore

import (
	"bytes"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/lnutil"
)

// EventKind tags the events the graph understands.
type EventKind uint8

const (
	KindChannelOpened EventKind = iota + 1
	KindChannelDeposit
	KindChannelWithdraw
	KindChannelClosed
	KindChannelSettled
	KindFeeUpdate
	KindBalanceUpdate
)

func (k EventKind) String() string {
	switch k {
	case KindChannelOpened:
		return "ChannelOpened"
	case KindChannelDeposit:
		return "ChannelDeposit"
	case KindChannelWithdraw:
		return "ChannelWithdraw"
	case KindChannelClosed:
		return "ChannelClosed"
	case KindChannelSettled:
		return "ChannelSettled"
	case KindFeeUpdate:
		return "FeeUpdate"
	case KindBalanceUpdate:
		return "BalanceUpdate"
	}
	return "Unknown"
}

// EventHeader is what every event carries.  Block and LogIndex are
// informational; the merge rules, not the position, make replays harmless.
type EventHeader struct {
	Token    TokenID   `json:"token"`
	Channel  ChannelID `json:"channel"`
	Block    uint64    `json:"block"`
	LogIndex uint32    `json:"logindex"`
}

// An Event is anything that changes the view of one channel.
type Event interface {
	Header() EventHeader
	Kind() EventKind
}

type ChannelOpened struct {
	EventHeader
	Participant1  Address `json:"participant1"`
	Participant2  Address `json:"participant2"`
	SettleTimeout uint64  `json:"settletimeout"`
}

type ChannelDeposit struct {
	EventHeader
	Participant  Address `json:"participant"`
	TotalDeposit int64   `json:"totaldeposit"`
}

type ChannelWithdraw struct {
	EventHeader
	Participant   Address `json:"participant"`
	TotalWithdraw int64   `json:"totalwithdraw"`
}

type ChannelClosed struct {
	EventHeader
	ClosingParticipant Address `json:"closingparticipant"`
}

type ChannelSettled struct {
	EventHeader
}

// FeeUpdate is signed by From, the participant that forwards on the From->To
// direction and so gets paid the fee.
type FeeUpdate struct {
	EventHeader
	From       Address
	To         Address
	Nonce      uint64
	Schedule   fees.Schedule
	ValidFrom  time.Time
	ValidUntil time.Time
	Signature  []byte
}

// BalanceUpdate is an off-chain capacity update signed by Updater.  The
// amounts are what Updater has sent to Partner in total and what it has in
// flight right now.
type BalanceUpdate struct {
	EventHeader
	Updater           Address
	Partner           Address
	Nonce             uint64
	TransferredAmount int64
	LockedAmount      int64
	RevealTimeout     uint64
	Signature         []byte
}

func (e EventHeader) Header() EventHeader { return e }

func (ChannelOpened) Kind() EventKind   { return KindChannelOpened }
func (ChannelDeposit) Kind() EventKind  { return KindChannelDeposit }
func (ChannelWithdraw) Kind() EventKind { return KindChannelWithdraw }
func (ChannelClosed) Kind() EventKind   { return KindChannelClosed }
func (ChannelSettled) Kind() EventKind  { return KindChannelSettled }
func (FeeUpdate) Kind() EventKind       { return KindFeeUpdate }
func (BalanceUpdate) Kind() EventKind   { return KindBalanceUpdate }

func (e EventHeader) bytes(kind EventKind) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	buf.Write(e.Token[:])
	buf.Write(lnutil.U64tB(uint64(e.Channel)))
	return buf.Bytes()
}

// SigBytes is the part of the message covered by the signature.
func (f FeeUpdate) SigBytes() []byte {
	var buf bytes.Buffer
	buf.Write(f.EventHeader.bytes(KindFeeUpdate))
	buf.Write(f.From[:])
	buf.Write(f.To[:])
	buf.Write(lnutil.U64tB(f.Nonce))
	buf.Write(lnutil.I64tB(f.ValidFrom.Unix()))
	buf.Write(lnutil.I64tB(f.ValidUntil.Unix()))
	buf.Write(fees.Encode(f.Schedule))
	return buf.Bytes()
}

// Sign fills in the signature.  Used by participants and by tests.
func (f *FeeUpdate) Sign(priv *btcec.PrivateKey) error {
	sig, err := lnutil.SignDigest(priv, lnutil.MsgDigest(f.SigBytes()))
	if err != nil {
		return err
	}
	f.Signature = sig
	return nil
}

// Signer recovers who signed the update.
func (f FeeUpdate) Signer() (Address, error) {
	pkh, err := lnutil.RecoverPKH(lnutil.MsgDigest(f.SigBytes()), f.Signature)
	return Address(pkh), err
}

func (b BalanceUpdate) SigBytes() []byte {
	var buf bytes.Buffer
	buf.Write(b.EventHeader.bytes(KindBalanceUpdate))
	buf.Write(b.Updater[:])
	buf.Write(b.Partner[:])
	buf.Write(lnutil.U64tB(b.Nonce))
	buf.Write(lnutil.I64tB(b.TransferredAmount))
	buf.Write(lnutil.I64tB(b.LockedAmount))
	buf.Write(lnutil.U64tB(b.RevealTimeout))
	return buf.Bytes()
}

func (b *BalanceUpdate) Sign(priv *btcec.PrivateKey) error {
	sig, err := lnutil.SignDigest(priv, lnutil.MsgDigest(b.SigBytes()))
	if err != nil {
		return err
	}
	b.Signature = sig
	return nil
}

func (b BalanceUpdate) Signer() (Address, error) {
	pkh, err := lnutil.RecoverPKH(lnutil.MsgDigest(b.SigBytes()), b.Signature)
	return Address(pkh), err
}
