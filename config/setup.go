package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/mit-dci/pfs/ledger"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/mit-dci/pfs/metrics"
	"github.com/mit-dci/pfs/pathfind"
	"github.com/mit-dci/pfs/pfs"
	"github.com/pkg/errors"
)

// createDefaultConfigFile creates a config file  -- only call this if the
// config file isn't already there
func createDefaultConfigFile(destinationPath string) error {
	dest, err := os.OpenFile(filepath.Join(destinationPath, DefaultConfigFilename),
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	writer := bufio.NewWriter(dest)
	if _, err := writer.WriteString("; pfs settings, same names as the command line flags\n; rpcport=8002\n"); err != nil {
		return err
	}
	return writer.Flush()
}

// PfsSetup reads the command line and the config file into conf, makes the
// home directory if needed and points logging at the log file.  Command line
// flags win over the file.  The returned file is the log, for the caller to
// close.
func PfsSetup(conf *Config, args []string) (io.Closer, error) {
	// pre-parse to find the home dir; the final parse below catches errors
	preconf := *conf
	preParser := NewConfigParser(&preconf, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if _, err := os.Stat(preconf.PfsHomeDir); os.IsNotExist(err) {
		if err := os.MkdirAll(preconf.PfsHomeDir, 0700); err != nil {
			return nil, errors.Wrap(err, "creating home dir")
		}
	}

	conf.ConfigFile = filepath.Join(preconf.PfsHomeDir, DefaultConfigFilename)
	if _, err := os.Stat(conf.ConfigFile); os.IsNotExist(err) {
		logging.Infof("Creating a new config file in %s", preconf.PfsHomeDir)
		if err := createDefaultConfigFile(preconf.PfsHomeDir); err != nil {
			return nil, errors.Wrap(err, "creating config file")
		}
	}

	parser := NewConfigParser(conf, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(conf.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, err
		}
	}

	// parse command line options again so they take precedence
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	logFilePath := filepath.Join(conf.PfsHomeDir, DefaultLogFilename)
	logfile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	if conf.Verbose {
		logging.SetLogFile(io.MultiWriter(os.Stdout, logfile))
	} else {
		logging.SetLogFile(logfile)
	}
	logging.SetLogLevel(conf.LogLevel)
	return logfile, nil
}

// ServiceAddress parses the configured service address.
func (c *Config) ServiceAddress() (lncore.Address, error) {
	if c.Address == "" {
		return lncore.Address{}, errors.New("no service address set, use --address")
	}
	a, err := lncore.ParseAddress(c.Address)
	return a, errors.Wrap(err, "bad service address")
}

// OpenLedger opens the ledger storage the config asks for.
func (c *Config) OpenLedger() (ledger.Storage, error) {
	if c.LedgerFile == "" || c.LedgerFile == "none" {
		return ledger.NewMemStorage(), nil
	}
	file := c.LedgerFile
	if !filepath.IsAbs(file) {
		file = filepath.Join(c.PfsHomeDir, file)
	}
	return ledger.OpenBolt(file)
}

// ServiceConfig builds the service config around the given ledger storage.
func (c *Config) ServiceConfig(st ledger.Storage) (pfs.Config, error) {
	addr, err := c.ServiceAddress()
	if err != nil {
		return pfs.Config{}, err
	}
	sc := pfs.Config{
		RequestFee: c.RequestFee,
		Engine: pathfind.Config{
			MaxPaths:          c.MaxPaths,
			MaxHops:           c.MaxHops,
			SettleRevealRatio: c.SettleRevealRatio,
		},
		Ledger: ledger.Config{
			Service:     addr,
			CreditLimit: c.CreditLimit,
			Storage:     st,
		},
	}
	sc.Ingest.MaxRetries = c.MaxRetries
	sc.Ingest.MaxPending = c.MaxPending
	sc.Ingest.RetryInterval = c.RetryInterval
	return sc, nil
}

// MetricsConfig is the metrics part of the config.
func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:            c.Metrics,
		ReportInterval:     c.MetricsInterval,
		PrometheusEndpoint: c.MetricsEndpoint,
	}
}
