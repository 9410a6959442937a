package nat

import (
	"net"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/pkg/errors"
)

// ErrMultipleNAT means the gateway itself sits behind another NAT.
var ErrMultipleNAT = errors.New("multiple NATs detected")

var privateBlocks []*net.IPNet

func init() {
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		_, block, _ := net.ParseCIDR(cidr)
		privateBlocks = append(privateBlocks, block)
	}
}

func isPrivateIP(ip net.IP) bool {
	for _, b := range privateBlocks {
		if b.Contains(ip) {
			return true
		}
	}
	return false
}

// pmpExternalIP asks the NAT-PMP gateway for our address.  A private answer
// means there's another NAT in front of it.
func pmpExternalIP(p *natpmp.Client) (net.IP, error) {
	res, err := p.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	ip := net.IP(res.ExternalIPAddress[:])
	if isPrivateIP(ip) {
		return nil, ErrMultipleNAT
	}
	return ip, nil
}

// setupPmp forwards port on the gateway with NAT-PMP.
func setupPmp(timeout time.Duration, port uint16) (net.IP, error) {
	gatewayIP, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, errors.Wrap(err, "discovering gateway")
	}

	pmp := natpmp.NewClientWithTimeout(gatewayIP, timeout)
	ip, err := pmpExternalIP(pmp)
	if err != nil {
		return nil, err
	}
	if _, err := pmp.AddPortMapping("tcp", int(port), int(port), 0); err != nil {
		return nil, errors.Wrapf(err, "mapping port %d", port)
	}
	return ip, nil
}
