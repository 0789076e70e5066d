package models

import (
	"fmt"
	"net/netip"
	"strings"
)

// List names one of the two address lists consulted by the filter.
type List string

const (
	// ListDeny rejects every matching address.
	ListDeny List = "deny"
	// ListAllow, when non-empty, admits only matching addresses.
	ListAllow List = "allow"
)

// Entry is one prefix on a list.
type Entry struct {
	List   List
	Prefix netip.Prefix
}

// ParsePrefix accepts a CIDR ("10.0.0.0/8") or a bare address, which becomes a host prefix.
// The result is masked so equal networks compare equal.
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid ip prefix %q: %w", s, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid ip address %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ParsePrefixes parses every non-blank entry of values.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		prefix, err := ParsePrefix(v)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix)
	}
	return out, nil
}
