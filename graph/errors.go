package graph

import (
	"fmt"

	"github.com/mit-dci/pfs/lncore"
	"github.com/pkg/errors"
)

// ErrStoreCorrupted means an invariant broke in a way we can't pin on one
// channel.  Ingestion has to stop.
var ErrStoreCorrupted = errors.New("graph store corrupted")

// UnknownChannelError is returned for events about channels we haven't seen
// opened.  Usually the opened event is just late.
type UnknownChannelError struct {
	Token   lncore.TokenID
	Channel lncore.ChannelID
}

func (err *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %v in token network %v", err.Channel, err.Token)
}

// DataConsistencyError means the event would break a channel invariant,
// which points to a missed or duplicated upstream event.  The event is
// dropped and the channel flagged.
type DataConsistencyError struct {
	Token   lncore.TokenID
	Channel lncore.ChannelID
	Reason  string
}

func (err *DataConsistencyError) Error() string {
	return fmt.Sprintf("channel %v in token network %v: %s", err.Channel, err.Token, err.Reason)
}

// ParticipantMismatchError is returned when an update names someone who
// isn't in the channel.
type ParticipantMismatchError struct {
	Token   lncore.TokenID
	Channel lncore.ChannelID
	Address lncore.Address
}

func (err *ParticipantMismatchError) Error() string {
	return fmt.Sprintf("%v is not a participant of channel %v in token network %v",
		err.Address, err.Channel, err.Token)
}

// IsUnknownChannel tells if err, or what it wraps, is an UnknownChannelError.
func IsUnknownChannel(err error) bool {
	_, ok := errors.Cause(err).(*UnknownChannelError)
	return ok
}

// IsDataConsistency tells if err, or what it wraps, is a DataConsistencyError.
func IsDataConsistency(err error) bool {
	_, ok := errors.Cause(err).(*DataConsistencyError)
	return ok
}
