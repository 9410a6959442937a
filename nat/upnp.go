// Package nat opens the RPC port on the local router so clients outside the
// LAN can reach the service.
package nat

import (
	"context"
	"net"
	"time"

	UpnP "github.com/NebulousLabs/go-UpnP"
	"github.com/mit-dci/pfs/logging"
	"github.com/pkg/errors"
)

// Method is how the port gets mapped.
type Method string

const (
	None Method = ""
	Upnp Method = "upnp"
	Pmp  Method = "pmp"
)

func setupUpnp(ctx context.Context, port uint16) (net.IP, error) {
	router, err := UpnP.DiscoverCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discovering router")
	}
	ipStr, err := router.ExternalIP()
	if err != nil {
		return nil, errors.Wrap(err, "getting external ip")
	}
	if err := router.Forward(port, "pfs rpc port"); err != nil {
		return nil, errors.Wrapf(err, "forwarding port %d", port)
	}
	return net.ParseIP(ipStr), nil
}

// Map forwards port with the given method and returns our external
// address.  None does nothing and returns a nil address.
func Map(ctx context.Context, m Method, port uint16, timeout time.Duration) (net.IP, error) {
	var ip net.IP
	var err error
	switch m {
	case None:
		return nil, nil
	case Upnp:
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ip, err = setupUpnp(ctx, port)
	case Pmp:
		ip, err = setupPmp(timeout, port)
	default:
		return nil, errors.Errorf("unknown nat method %q", string(m))
	}
	if err != nil {
		return nil, err
	}
	logging.Infof("nat: forwarded port %d with %s, external ip %s", port, m, ip)
	return ip, nil
}
