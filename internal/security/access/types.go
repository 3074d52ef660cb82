package access

import "net"

// Allowlist represents a parsed set of permitted source addresses: a
// literal wildcard, literal IPs, or CIDR ranges.
type Allowlist struct {
	wildcard bool
	ips      map[string]struct{}
	nets     []*net.IPNet
}

// NewAllowlist parses the configured allowlist entries. Entries that fail
// to parse as either an IP or a CIDR are silently ignored; validation of
// the raw config happens in internal/config.
func NewAllowlist(entries []string) *Allowlist {
	al := &Allowlist{ips: make(map[string]struct{})}

	for _, entry := range entries {
		if entry == "*" {
			al.wildcard = true
			continue
		}

		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			al.nets = append(al.nets, ipnet)
			continue
		}

		if ip := net.ParseIP(entry); ip != nil {
			al.ips[ip.String()] = struct{}{}
		}
	}

	return al
}

// Allows reports whether the given address is permitted.
func (al *Allowlist) Allows(addr net.IP) bool {
	if al.wildcard {
		return true
	}

	addr = stripV4InV6(addr)

	if _, ok := al.ips[addr.String()]; ok {
		return true
	}

	for _, n := range al.nets {
		if n.Contains(addr) {
			return true
		}
	}

	return false
}

// stripV4InV6 strips the v4-mapped-v6 prefix from an address so that a
// v4-mapped client (e.g. "::ffff:192.168.1.5") matches an IPv4 allowlist
// entry.
func stripV4InV6(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}
