package config

import (
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/mit-dci/pfs/consts"
)

type Config struct { // define a struct for usage with go-flags
	PfsHomeDir string `long:"dir" description:"Specify Home Directory of pfs as an absolute path."`
	ConfigFile string

	Verbose  bool `short:"v" long:"verbose" description:"Log to stdout as well as the log file."`
	LogLevel int  `long:"loglevel" description:"0 errors only, 1 warnings, 2 info, 3 debug."`

	Rpcport uint16 `short:"p" long:"rpcport" description:"Set RPC port to listen on"`
	Rpchost string `long:"rpchost" description:"Set RPC host to listen to"`
	Nat     string `long:"nat" choice:"upnp" choice:"pmp" description:"Forward the RPC port on the router"`

	Address     string `long:"address" description:"ln address IOUs have to be made out to"`
	RequestFee  int64  `long:"fee" description:"Fee charged per route request"`
	CreditLimit int64  `long:"creditlimit" description:"How much a participant may owe before paying"`
	LedgerFile  string `long:"ledger" description:"Ledger database file in the home dir, or 'none' to keep it in memory"`

	MaxPaths          int    `long:"maxpaths" description:"Default number of routes per request"`
	MaxHops           int    `long:"maxhops" description:"Default hop limit per route"`
	SettleRevealRatio uint64 `long:"ratio" description:"Minimum settle to reveal timeout ratio for an edge, 0 to disable"`

	MaxRetries    int           `long:"maxretries" description:"Retries for events of channels not opened yet"`
	MaxPending    int           `long:"maxpending" description:"Events kept per token for channels not opened yet"`
	RetryInterval time.Duration `long:"retryinterval" description:"Time between retries of held events"`

	Metrics         bool   `long:"metrics" description:"Serve prometheus metrics"`
	MetricsEndpoint string `long:"metricsaddr" description:"Multiaddr to serve metrics on"`
	MetricsInterval string `long:"metricsinterval" description:"Metrics reporting interval"`
}

var (
	DefaultHomeDir            = os.Getenv("HOME")
	DefaultPfsHomeDirName     = filepath.Join(DefaultHomeDir, ".pfs")
	DefaultConfigFilename     = "pfs.conf"
	DefaultLogFilename        = "pfs.log"
	DefaultLedgerFilename     = "ledger.db"
	DefaultRpcport            = uint16(8002)
	DefaultRpchost            = "localhost"
	DefaultLogLevel           = 2
	DefaultMetricsEndpoint    = "/ip4/127.0.0.1/tcp/9402"
	DefaultMetricsInterval    = "5s"
	DefaultNatDiscoverTimeout = 10 * time.Second
)

// Default returns a config with every default filled in.
func Default() Config {
	return Config{
		PfsHomeDir:        DefaultPfsHomeDirName,
		LogLevel:          DefaultLogLevel,
		Rpcport:           DefaultRpcport,
		Rpchost:           DefaultRpchost,
		RequestFee:        consts.DefaultRequestFee,
		CreditLimit:       consts.DefaultCreditLimit,
		LedgerFile:        DefaultLedgerFilename,
		MaxPaths:          consts.DefaultMaxPaths,
		MaxHops:           consts.DefaultMaxHops,
		SettleRevealRatio: consts.SettleToRevealRatio,
		MaxRetries:        consts.DefaultMaxRetries,
		MaxPending:        consts.DefaultMaxPending,
		RetryInterval:     consts.DefaultRetryInterval,
		MetricsEndpoint:   DefaultMetricsEndpoint,
		MetricsInterval:   DefaultMetricsInterval,
	}
}

// NewConfigParser returns a new command line flags parser.
func NewConfigParser(conf *Config, options flags.Options) *flags.Parser {
	return flags.NewParser(conf, options)
}
