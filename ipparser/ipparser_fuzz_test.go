package ipparser

import (
	"strings"
	"testing"

	"go4.org/netipx"
)

// FuzzCIDRToRange checks that arbitrary input never panics and that every
// accepted input yields a well-formed IPv4 range.
func FuzzCIDRToRange(f *testing.F) {
	seeds := []string{
		// Valid IPv4 - boundary and common cases
		"0.0.0.0/0",
		"255.255.255.255/32",
		"192.0.2.0/24",
		"192.0.2.1/32",
		"10.0.0.1/8",
		"66.249.64.0/19",
		"203.0.113.9",
		// Dotted masks
		"192.0.2.0/255.255.255.0",
		"192.0.2.0/0.0.0.255",
		"192.0.2.0/255.0.255.0",
		"192.0.2.0/255.255.255.0/8",
		// Other families
		"2001:db8::/32",
		"::ffff:192.0.2.0/120",
		"::/0",
		// Malformed
		"",
		"/",
		"/24",
		"192.0.2.0/",
		"192.0.2.0/-1",
		"192.0.2.0/33",
		"192.0.2.0/24/24",
		"0x7f.0.0.1/8",
		"192.168.001.1/24",
		"192.0.2.0%eth0/24",
		"192.0.2.0/24\x00",
		"../192.0.2.0/24",
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, cidr string) {
		r, err := CIDRToRange(cidr)
		if err != nil {
			if err.Error() == "" {
				t.Errorf("Error has empty message")
			}
			if r != "" {
				t.Errorf("CIDRToRange(%q) returned %q alongside an error", cidr, r)
			}
			return
		}

		parsed, err := netipx.ParseIPRange(r)
		if err != nil {
			t.Fatalf("CIDRToRange(%q) = %q, which does not parse back: %v", cidr, r, err)
		}
		if !parsed.From().Is4() || !parsed.To().Is4() {
			t.Errorf("CIDRToRange(%q) = %q is not IPv4", cidr, r)
		}
		if parsed.To().Less(parsed.From()) {
			t.Errorf("CIDRToRange(%q) = %q has end before start", cidr, r)
		}
		if _, ok := parsed.Prefix(); !ok {
			t.Errorf("CIDRToRange(%q) = %q is not a single prefix", cidr, r)
		}
		if strings.Count(r, "-") != 1 {
			t.Errorf("CIDRToRange(%q) = %q should contain exactly one separator", cidr, r)
		}
	})
}
