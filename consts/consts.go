package consts

import "time"

// commonly used constants that can be used anywhere, without ambiguity
const (
	MaxPathsPerRequest     = 25               // server side cap on K, whatever the request asks for
	DefaultMaxPaths        = 3                // K when the request leaves it at zero
	DefaultMaxHops         = 10               // longest route the search will consider
	SettleToRevealRatio    = 2                // minimum settle_timeout / reveal_timeout of a usable edge
	DefaultMaxRetries      = 5                // retry rounds for events on unknown channels
	DefaultMaxPending      = 10000            // buffered events across the unknown channels of one token
	DefaultRetryInterval   = 15 * time.Second // time between two retry rounds
	DefaultCreditLimit     = int64(1000000)   // owed - paid allowed before requests are refused
	DefaultRequestFee      = int64(0)         // fee charged per answered route request
	DefaultIOUExpiryLeeway = 5 * time.Minute  // IOUs expiring sooner than this are refused
	LedgerShards           = 64               // lock shards of the fee ledger
	SearchCheckInterval    = 64               // heap pops between two context checks
)
