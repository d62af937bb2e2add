package ratelimit

import "net"

// Bypass holds addresses exempt from rate limiting. Loopback and private
// ranges are always exempt; additional CIDRs or single addresses can be
// configured.
type Bypass struct {
	cidrs []*net.IPNet
}

// NewBypass creates a bypass list from the given allowlist entries. Each
// entry may be a CIDR or a single IP address; invalid entries are skipped.
func NewBypass(allowlist []string) *Bypass {
	cidrs := make([]*net.IPNet, 0, len(allowlist))
	for _, entry := range allowlist {
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &Bypass{cidrs: cidrs}
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Contains reports whether the identifier is an exempt address. Identifiers
// that do not parse as IP addresses are never exempt.
func (b *Bypass) Contains(id string) bool {
	ip := net.ParseIP(id)
	if ip == nil {
		return false
	}

	if ip.IsLoopback() || ip.IsPrivate() {
		return true
	}

	for _, cidr := range b.cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}

	return false
}
