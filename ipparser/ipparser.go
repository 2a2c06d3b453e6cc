// Package ipparser converts the CIDR blocks published by bot operators into
// the inclusive "start-end" range strings consumed by the allow-list.
package ipparser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

var (
	// ErrNotIPv4 is returned for well-formed input of another address family.
	ErrNotIPv4 = errors.New("not an IPv4 prefix")
	// ErrBadMask is returned for a dotted mask that is neither a netmask
	// nor a hostmask.
	ErrBadMask = errors.New("invalid netmask")
)

// IsCIDR reports whether s is written in prefix notation.
func IsCIDR(s string) bool {
	return strings.Contains(s, "/")
}

// CIDRToRange converts an IPv4 CIDR such as "192.0.2.0/24" into
// "192.0.2.0-192.0.2.255". Host bits may be set and the length may be
// written as a dotted netmask or hostmask. A bare IPv4 address is treated
// as a /32.
func CIDRToRange(cidr string) (string, error) {
	p, err := parseIPv4Prefix(cidr)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	return netipx.RangeOfPrefix(p).String(), nil
}

func parseIPv4Prefix(s string) (netip.Prefix, error) {
	if !IsCIDR(s) {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if !ip.Is4() {
			return netip.Prefix{}, ErrNotIPv4
		}
		return netip.PrefixFrom(ip, 32), nil
	}

	addr, mask, _ := strings.Cut(s, "/")
	if strings.Contains(mask, ".") {
		return parseMaskedPrefix(addr, mask)
	}

	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	// IPv4-mapped IPv6 prefixes are IPv6 for our purposes
	if !p.Addr().Is4() {
		return netip.Prefix{}, ErrNotIPv4
	}
	return p.Masked(), nil
}

// parseMaskedPrefix handles the "addr/255.255.255.0" netmask and
// "addr/0.0.0.255" hostmask notations. A mask that reads as both is taken
// as a netmask.
func parseMaskedPrefix(addr, mask string) (netip.Prefix, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !ip.Is4() {
		return netip.Prefix{}, ErrNotIPv4
	}
	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrBadMask, mask)
	}
	b := m.As4()
	n, ok := netmaskBits(binary.BigEndian.Uint32(b[:]))
	if !ok {
		n, ok = netmaskBits(^binary.BigEndian.Uint32(b[:]))
	}
	if !ok {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrBadMask, mask)
	}
	return netip.PrefixFrom(ip, n).Masked(), nil
}

// netmaskBits returns the prefix length of a contiguous netmask.
func netmaskBits(m uint32) (int, bool) {
	ones := bits.OnesCount32(m)
	if ones == 0 {
		return 0, m == 0
	}
	return ones, m == ^uint32(0)<<(32-ones)
}

// Prefixes expands an allow-list entry back into the prefixes it covers.
// Entries may be "start-end" ranges, CIDRs or single addresses of either
// family, matching what the additional bots config is allowed to carry.
func Prefixes(entry string) ([]netip.Prefix, error) {
	switch {
	case strings.Contains(entry, "-"):
		r, err := netipx.ParseIPRange(entry)
		if err != nil {
			return nil, err
		}
		return r.Prefixes(), nil
	case IsCIDR(entry):
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, err
		}
		return []netip.Prefix{p.Masked()}, nil
	default:
		ip, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		ip = ip.Unmap()
		return []netip.Prefix{netip.PrefixFrom(ip, ip.BitLen())}, nil
	}
}
