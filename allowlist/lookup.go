package allowlist

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/gaissmai/bart"

	"github.com/bbusenius/good-bots/ipparser"
)

// Lookup answers which bot an address belongs to, using a longest-prefix
// match over every range in the allow-list.
type Lookup struct {
	table *bart.Table[string]
	size  int
}

// NewLookup indexes bots. Entries that cannot be expanded into prefixes are
// reported and left out. When ranges of different bots overlap exactly, the
// bot that sorts last wins.
func NewLookup(bots Bots) (*Lookup, []error) {
	l := &Lookup{table: new(bart.Table[string])}

	names := make([]string, 0, len(bots))
	for name := range bots {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []error
	for _, name := range names {
		for _, entry := range bots[name] {
			prefixes, err := ipparser.Prefixes(entry)
			if err != nil {
				problems = append(problems, fmt.Errorf("bot %q: range %q: %w", name, entry, err))
				continue
			}
			for _, p := range prefixes {
				l.table.Insert(p, name)
				l.size++
			}
		}
	}
	return l, problems
}

// Match returns the bot whose range contains ip.
// IPv4-mapped IPv6 addresses match IPv4 ranges.
func (l *Lookup) Match(ip netip.Addr) (string, bool) {
	if ip.Is4In6() {
		ip = ip.Unmap()
	}
	return l.table.Lookup(ip)
}

// Size is the number of prefixes inserted.
func (l *Lookup) Size() int {
	return l.size
}
