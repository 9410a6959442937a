// Package metrics records what the service does with opencensus and
// serves it to prometheus.
package metrics

import (
	"net/http"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr-net"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/zpages"

	"github.com/mit-dci/pfs/logging"
)

// Config says whether and where metrics are served.
type Config struct {
	Enabled            bool
	ReportInterval     string
	PrometheusEndpoint string // multiaddr, like /ip4/127.0.0.1/tcp/9400
}

// RegisterViews registers the views.  Safe to call more than once.
func RegisterViews() error {
	return view.Register(Views...)
}

// SetupMetrics registers the views and returns the server for /metrics
// and /debug.  The caller runs ListenAndServe.  A nil server means metrics
// are off.
func SetupMetrics(cfg Config) (*http.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	interval, err := time.ParseDuration(cfg.ReportInterval)
	if err != nil {
		logging.Errorf("invalid metrics interval: %s", err)
		return nil, err
	}

	promma, err := ma.NewMultiaddr(cfg.PrometheusEndpoint)
	if err != nil {
		return nil, err
	}

	_, promAddr, err := manet.DialArgs(promma)
	if err != nil {
		return nil, err
	}

	registry := prom.NewRegistry()
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: "pfs",
		Registry:  registry,
	})
	if err != nil {
		return nil, err
	}

	view.RegisterExporter(pe)
	view.SetReportingPeriod(interval)
	if err := RegisterViews(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	zpages.Handle(mux, "/debug")
	mux.Handle("/metrics", pe)
	logging.Infof("metrics: serving prometheus on %s", promAddr)
	return &http.Server{Addr: promAddr, Handler: mux}, nil
}
