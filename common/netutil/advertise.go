package netutil

import (
	"net"

	"github.com/pkg/errors"
)

var ErrNoValidNetworkInterfaceFound = errors.New("no valid network interface found")

// AdvertiseHost returns host unless it is a wildcard listen address, in which
// case the first IPv4 address of an up non-loopback interface is used.
func AdvertiseHost(host string) (string, error) {
	if ip := net.ParseIP(host); host != "" && (ip == nil || !ip.IsUnspecified()) {
		return host, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", errors.Wrap(err, "list network interfaces")
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return "", errors.Wrapf(err, "addresses of %s", iface.Name)
		}
		if ip, ok := firstIPv4(addrs); ok {
			return ip, nil
		}
	}
	return "", ErrNoValidNetworkInterfaceFound
}

func firstIPv4(addrs []net.Addr) (string, bool) {
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4.String(), true
			}
		}
	}
	return "", false
}
