package ingest

import (
	"fmt"

	"github.com/mit-dci/pfs/lncore"
)

// InvalidFeeUpdateError is a fee update we refuse: bad signature, outside
// its validity window, or from someone who doesn't mediate the edge.  The
// update is dropped; ingestion goes on.
type InvalidFeeUpdateError struct {
	Channel lncore.ChannelID
	From    lncore.Address
	Reason  string
}

func (err *InvalidFeeUpdateError) Error() string {
	return fmt.Sprintf("invalid fee update from %v on channel %v: %s", err.From, err.Channel, err.Reason)
}

// InvalidBalanceUpdateError is a balance update whose signature doesn't
// come from its updater.
type InvalidBalanceUpdateError struct {
	Channel lncore.ChannelID
	Updater lncore.Address
	Reason  string
}

func (err *InvalidBalanceUpdateError) Error() string {
	return fmt.Sprintf("invalid balance update from %v on channel %v: %s", err.Updater, err.Channel, err.Reason)
}
