// Package platform abstracts the router OS: gateway enumeration, monitoring
// samples, interface addressing, and the dyndns cache files. One concrete
// implementation exists per target OS, selected at startup via configuration.
package platform

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/user/gwdns/internal/model"
	"github.com/user/gwdns/internal/util"
)

// Probe is the capability interface every platform implements.
type Probe interface {
	// Gateways enumerates the monitored WAN gateways from router config.
	Gateways() ([]model.Gateway, error)

	// ReadGatewayThresholds returns the current loss/latency thresholds
	// for one gateway, re-read from router config.
	ReadGatewayThresholds(gatewayID string) (model.Thresholds, error)

	// ReadGatewaySample returns the latest monitoring sample for one
	// gateway. An error means no sample could be obtained; callers treat
	// that gateway as unknown, not down.
	ReadGatewaySample(gatewayID string) (model.RawSample, error)

	// ListInterfaceAddresses returns the public addresses currently bound
	// to a physical interface.
	ListInterfaceAddresses(iface string) (model.InterfaceAddrs, error)

	// WriteCacheEntry updates the status-presentation cache file for one
	// gateway address. Healthy addresses are written without a trailing
	// newline, unhealthy ones with it; the presentation widget renders
	// the two differently. Fixed wire contract, byte for byte.
	WriteCacheEntry(gw model.Gateway, addr netip.Addr, healthy bool) error

	// Notify posts a notice to the router's notification system.
	// Best effort; failures are logged by callers, never fatal.
	Notify(subject, message string) error
}

// New returns the platform implementation named by the configuration.
func New(cfg *util.Config) (Probe, error) {
	switch cfg.Platform {
	case "pfsense":
		return NewPfSense(), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
	}
}

// listPublicAddrs enumerates the public addresses of a named interface
// using the OS interface table.
func listPublicAddrs(iface string) (model.InterfaceAddrs, error) {
	var out model.InterfaceAddrs

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return out, fmt.Errorf("interface %s: %w", iface, err)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return out, fmt.Errorf("addresses of %s: %w", iface, err)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !isPublic(addr) {
			continue
		}
		if addr.Is4() {
			out.V4 = append(out.V4, addr)
		} else {
			out.V6 = append(out.V6, addr)
		}
	}

	return out, nil
}

// isPublic filters out loopback, link-local, multicast, RFC1918 and ULA
// addresses, which must never end up in a public record.
func isPublic(a netip.Addr) bool {
	if !a.IsValid() || a.IsUnspecified() || a.IsLoopback() {
		return false
	}
	if a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() || a.IsMulticast() {
		return false
	}
	if a.IsPrivate() {
		return false
	}
	return true
}
