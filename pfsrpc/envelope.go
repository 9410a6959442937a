package pfsrpc

import (
	"encoding/hex"
	"time"

	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/lncore"
	"github.com/pkg/errors"
)

// EventEnvelope is an event on the wire.  Addresses are bech32 or hex,
// tokens hex, schedules and signatures hex, times unix seconds.  Only the
// fields of Kind are looked at.
type EventEnvelope struct {
	Kind     string
	Token    string
	Channel  uint64
	Block    uint64
	LogIndex uint32

	Participant1  string `json:",omitempty"`
	Participant2  string `json:",omitempty"`
	SettleTimeout uint64 `json:",omitempty"`

	Participant string `json:",omitempty"`
	Total       int64  `json:",omitempty"`

	From       string `json:",omitempty"`
	To         string `json:",omitempty"`
	Schedule   string `json:",omitempty"`
	ValidFrom  int64  `json:",omitempty"`
	ValidUntil int64  `json:",omitempty"`

	Updater       string `json:",omitempty"`
	Partner       string `json:",omitempty"`
	Transferred   int64  `json:",omitempty"`
	Locked        int64  `json:",omitempty"`
	RevealTimeout uint64 `json:",omitempty"`

	Nonce     uint64 `json:",omitempty"`
	Signature string `json:",omitempty"`
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

// Envelope wraps an event for sending.
func Envelope(ev lncore.Event) EventEnvelope {
	h := ev.Header()
	env := EventEnvelope{
		Kind:     ev.Kind().String(),
		Token:    h.Token.String(),
		Channel:  uint64(h.Channel),
		Block:    h.Block,
		LogIndex: h.LogIndex,
	}
	switch e := ev.(type) {
	case lncore.ChannelOpened:
		env.Participant1 = e.Participant1.String()
		env.Participant2 = e.Participant2.String()
		env.SettleTimeout = e.SettleTimeout
	case lncore.ChannelDeposit:
		env.Participant = e.Participant.String()
		env.Total = e.TotalDeposit
	case lncore.ChannelWithdraw:
		env.Participant = e.Participant.String()
		env.Total = e.TotalWithdraw
	case lncore.ChannelClosed:
		env.Participant = e.ClosingParticipant.String()
	case lncore.FeeUpdate:
		env.From = e.From.String()
		env.To = e.To.String()
		env.Nonce = e.Nonce
		env.Schedule = hex.EncodeToString(fees.Encode(e.Schedule))
		env.ValidFrom = unixOrZero(e.ValidFrom)
		env.ValidUntil = unixOrZero(e.ValidUntil)
		env.Signature = hex.EncodeToString(e.Signature)
	case lncore.BalanceUpdate:
		env.Updater = e.Updater.String()
		env.Partner = e.Partner.String()
		env.Nonce = e.Nonce
		env.Transferred = e.TransferredAmount
		env.Locked = e.LockedAmount
		env.RevealTimeout = e.RevealTimeout
		env.Signature = hex.EncodeToString(e.Signature)
	}
	return env
}

// envParser collects the first parse error so Event reads straight.
type envParser struct {
	err error
}

func (p *envParser) addr(field, s string) lncore.Address {
	a, err := lncore.ParseAddress(s)
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(err, "bad %s", field)
	}
	return a
}

func (p *envParser) hex(field, s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(err, "bad %s", field)
	}
	return b
}

// Event turns the envelope back into an event.
func (env EventEnvelope) Event() (lncore.Event, error) {
	token, err := lncore.ParseTokenID(env.Token)
	if err != nil {
		return nil, errors.Wrap(err, "bad token")
	}
	h := lncore.EventHeader{
		Token:    token,
		Channel:  lncore.ChannelID(env.Channel),
		Block:    env.Block,
		LogIndex: env.LogIndex,
	}

	var p envParser
	var ev lncore.Event
	switch env.Kind {
	case lncore.KindChannelOpened.String():
		ev = lncore.ChannelOpened{
			EventHeader:   h,
			Participant1:  p.addr("participant1", env.Participant1),
			Participant2:  p.addr("participant2", env.Participant2),
			SettleTimeout: env.SettleTimeout,
		}
	case lncore.KindChannelDeposit.String():
		ev = lncore.ChannelDeposit{EventHeader: h, Participant: p.addr("participant", env.Participant), TotalDeposit: env.Total}
	case lncore.KindChannelWithdraw.String():
		ev = lncore.ChannelWithdraw{EventHeader: h, Participant: p.addr("participant", env.Participant), TotalWithdraw: env.Total}
	case lncore.KindChannelClosed.String():
		ev = lncore.ChannelClosed{EventHeader: h, ClosingParticipant: p.addr("participant", env.Participant)}
	case lncore.KindChannelSettled.String():
		ev = lncore.ChannelSettled{EventHeader: h}
	case lncore.KindFeeUpdate.String():
		sched, err := fees.Decode(p.hex("schedule", env.Schedule))
		if err != nil && p.err == nil {
			p.err = err
		}
		ev = lncore.FeeUpdate{
			EventHeader: h,
			From:        p.addr("from", env.From),
			To:          p.addr("to", env.To),
			Nonce:       env.Nonce,
			Schedule:    sched,
			ValidFrom:   timeOrZero(env.ValidFrom),
			ValidUntil:  timeOrZero(env.ValidUntil),
			Signature:   p.hex("signature", env.Signature),
		}
	case lncore.KindBalanceUpdate.String():
		ev = lncore.BalanceUpdate{
			EventHeader:       h,
			Updater:           p.addr("updater", env.Updater),
			Partner:           p.addr("partner", env.Partner),
			Nonce:             env.Nonce,
			TransferredAmount: env.Transferred,
			LockedAmount:      env.Locked,
			RevealTimeout:     env.RevealTimeout,
			Signature:         p.hex("signature", env.Signature),
		}
	default:
		return nil, errors.Errorf("unknown event kind %q", env.Kind)
	}
	if p.err != nil {
		return nil, p.err
	}
	return ev, nil
}
