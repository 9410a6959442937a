package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mit-dci/pfs/config"
	"github.com/mit-dci/pfs/lnutil"
	"github.com/mit-dci/pfs/logging"
	"github.com/mit-dci/pfs/pfsrpc"
)

/*
pfs-af

A text mode interface to a pfs daemon.  It connects over websocket jsonrpc
and lets an operator ask for routes, look at the channel graph and the IOU
ledger, and push channel events by hand.
*/

const historyFilename = "pfs-af.history"

type pfsAfClient struct {
	con        string
	requester  string
	verbosity  int
	pfsHomeDir string
	rpccon     *pfsrpc.Client
}

type Command struct {
	Format           string
	Description      string
	ShortDescription string
}

func setConfig(lc *pfsAfClient) {
	conptr := flag.String("con", fmt.Sprintf("%s:%d", config.DefaultRpchost, config.DefaultRpcport),
		"daemon to connect to in the form of [<host>][:<port>]")
	reqptr := flag.String("req", "", "address to charge route requests to")
	vptr := flag.Int("v", 2, "verbosity level")
	dirptr := flag.String("dir", config.DefaultPfsHomeDirName, "directory to save settings")

	flag.Parse()
	lc.verbosity = *vptr
	lc.con = *conptr
	lc.requester = *reqptr
	lc.pfsHomeDir = *dirptr
}

// parseHostPort fills in the default host or port when either is left out.
func parseHostPort(s string) (string, uint16, error) {
	host, port := config.DefaultRpchost, config.DefaultRpcport
	if s == "" {
		return host, port, nil
	}
	if !strings.Contains(s, ":") {
		// a bare number is a port, anything else a host
		if p, err := strconv.ParseUint(s, 10, 16); err == nil {
			return host, uint16(p), nil
		}
		return s, port, nil
	}
	h, ps, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	if h != "" {
		host = h
	}
	if ps != "" {
		p, err := strconv.ParseUint(ps, 10, 16)
		if err != nil {
			return "", 0, fmt.Errorf("bad port %s", ps)
		}
		port = uint16(p)
	}
	return host, port, nil
}

func main() {
	var err error

	lc := new(pfsAfClient)
	setConfig(lc)

	logging.SetLogLevel(lc.verbosity)

	// create home directory if it does not exist
	_, err = os.Stat(lc.pfsHomeDir)
	if os.IsNotExist(err) {
		os.Mkdir(lc.pfsHomeDir, 0700)
	}

	host, port, err := parseHostPort(lc.con)
	if err != nil {
		logging.Fatal(err)
	}
	logging.Infof("Host: %s, Port: %d", host, port)

	lc.rpccon, err = pfsrpc.Dial(host, port)
	if err != nil {
		logging.Fatal(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       lnutil.Prompt("pfs-af") + lnutil.White("# "),
		HistoryFile:  filepath.Join(lc.pfsHomeDir, historyFilename),
		AutoComplete: lc.NewAutoCompleter(),
	})
	if err != nil {
		logging.Fatal(err)
	}
	defer rl.Close()

	// main shell loop
	for {
		msg, err := rl.Readline()
		if err != nil {
			break
		}
		msg = strings.TrimSpace(msg)
		if len(msg) == 0 {
			continue
		}
		rl.SaveHistory(msg)

		cmdslice := strings.Fields(msg)
		fmt.Fprintf(color.Output, "entered command: %s\n", msg)

		err = lc.Shellparse(cmdslice)
		if err != nil { // only error should be user exit
			logging.Info(err)
			return
		}
	}
}
