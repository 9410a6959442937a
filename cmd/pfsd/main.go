package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/mit-dci/pfs/config"
	"github.com/mit-dci/pfs/logging"
	"github.com/mit-dci/pfs/metrics"
	"github.com/mit-dci/pfs/nat"
	"github.com/mit-dci/pfs/pfs"
	"github.com/mit-dci/pfs/pfsrpc"
)

func main() {
	fmt.Printf("pfs node v0.1\n")
	fmt.Printf("-h for list of options.\n")

	conf := config.Default()
	logfile, err := config.PfsSetup(&conf, os.Args[1:])
	if err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			fmt.Println(ferr.Message)
			os.Exit(0)
		}
		logging.Fatal(err)
	}
	defer logfile.Close()

	if err := run(conf); err != nil {
		logging.Errorf("pfsd: %s", err.Error())
		os.Exit(1)
	}
	logging.Infof("pfsd: stopped")
}

func run(conf config.Config) error {
	st, err := conf.OpenLedger()
	if err != nil {
		return err
	}
	sc, err := conf.ServiceConfig(st)
	if err != nil {
		st.Close()
		return err
	}
	svc, err := pfs.New(sc)
	if err != nil {
		st.Close()
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	rpcl := &pfsrpc.PfsRPC{Service: svc, OffButton: make(chan bool, 1)}

	// stop on a signal or when a client presses the off button
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			logging.Infof("pfsd: got %v, shutting down", s)
		case <-rpcl.OffButton:
			logging.Infof("pfsd: stop requested over rpc")
		case <-ctx.Done():
		}
		cancel()
		return nil
	})

	// events come in over rpc; there's no in-process feed
	g.Go(func() error {
		return svc.Run(ctx, nil)
	})

	g.Go(func() error {
		return pfsrpc.RPCListen(ctx, rpcl, conf.Rpchost, conf.Rpcport)
	})

	if conf.Nat != "" {
		if _, err := nat.Map(ctx, nat.Method(conf.Nat), conf.Rpcport, config.DefaultNatDiscoverTimeout); err != nil {
			logging.Warnf("pfsd: port forwarding failed: %s", err.Error())
		}
	}

	msrv, err := metrics.SetupMetrics(conf.MetricsConfig())
	if err != nil {
		return err
	}
	if msrv != nil {
		g.Go(func() error {
			go func() {
				<-ctx.Done()
				msrv.Close()
			}()
			if err := msrv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
