package socket

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

func sockaddr(ap netip.AddrPort) unix.Sockaddr {
	if ap.Addr().Is6() && !ap.Addr().Is4In6() {
		sa := &unix.SockaddrInet6{Port: int(ap.Port())}
		sa.Addr = ap.Addr().As16()
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(ap.Port())}
	sa.Addr = ap.Addr().As4()
	return sa
}

// bindAddr yields the local address to bind for the given family,
// falling back to the unspecified address when none is configured.
func bindAddr(local netip.AddrPort, family int) netip.Addr {
	if local.Addr().IsValid() {
		return local.Addr()
	}
	if family == unix.AF_INET6 {
		return netip.IPv6Unspecified()
	}
	return netip.AddrFrom4([4]byte{})
}
