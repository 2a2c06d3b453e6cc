// Package botlist loads the user-maintained list of bots that are not
// published by the tracker, keyed by display name.
package botlist

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bbusenius/good-bots/ipparser"
)

var log = logging.Logger("good-bots/botlist")

// FileName is the name of the bundled resource and of the working directory fallback.
const FileName = "additional_bots.json"

const defaultBotName = "Unknown Bot"

//go:embed additional_bots.json
var bundled []byte

// Document is the on-disk shape of the additional bots config.
type Document struct {
	AdditionalBots []Bot `json:"additional_bots"`
}

// Bot is a single configured bot. Each range is either a CIDR, which is
// normalized, or a literal address or range kept as written.
type Bot struct {
	Name     *string  `json:"name"`
	IPRanges []string `json:"ip_ranges"`
}

// Candidate is one place the config may be read from.
type Candidate struct {
	Name string
	Read func() ([]byte, error)
}

// Bundled is the config compiled into the binary.
func Bundled() Candidate {
	return Candidate{
		Name: "bundled " + FileName,
		Read: func() ([]byte, error) { return bundled, nil },
	}
}

// File reads the config from path.
func File(path string) Candidate {
	return Candidate{
		Name: path,
		Read: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// DefaultCandidates is the lookup order used when no explicit path is given.
func DefaultCandidates() []Candidate {
	return []Candidate{Bundled(), File(FileName)}
}

// Load returns the additional bots from path, or from DefaultCandidates when
// path is empty. It never fails: problems are logged and yield an empty map.
func Load(path string) map[string][]string {
	if path != "" {
		return LoadFrom(File(path))
	}
	return LoadFrom(DefaultCandidates()...)
}

// LoadFrom tries each candidate in order and returns the bots of the first
// one that parses and defines at least one bot. Missing files are skipped
// without a diagnostic.
func LoadFrom(candidates ...Candidate) map[string][]string {
	for _, c := range candidates {
		data, err := c.Read()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warnf("Could not load additional bots config %s: %v", c.Name, err)
			}
			continue
		}
		bots, err := Parse(data)
		if err != nil {
			log.Warnf("Could not load additional bots config %s: %v", c.Name, err)
			continue
		}
		if len(bots) == 0 {
			log.Debugf("additional bots config %s defines no bots", c.Name)
			continue
		}
		log.Infof("loaded %d additional bots from %s", len(bots), c.Name)
		return bots
	}
	return map[string][]string{}
}

// Parse decodes a config document into a map of bot name to sorted, unique
// ranges. Bots left without any range are omitted. When a name appears more
// than once the last entry wins.
func Parse(data []byte) (map[string][]string, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", FileName, err)
	}

	bots := make(map[string][]string, len(doc.AdditionalBots))
	for _, b := range doc.AdditionalBots {
		name := defaultBotName
		if b.Name != nil {
			name = *b.Name
		}

		ranges := make([]string, 0, len(b.IPRanges))
		for _, r := range b.IPRanges {
			if !ipparser.IsCIDR(r) {
				ranges = append(ranges, r)
				continue
			}
			converted, err := ipparser.CIDRToRange(r)
			if err != nil {
				log.Warnf("additional bot %q: %v", name, err)
				continue
			}
			ranges = append(ranges, converted)
		}
		if len(ranges) == 0 {
			continue
		}

		if _, dup := bots[name]; dup {
			log.Warnf("additional bot %q is defined more than once, keeping the last definition", name)
		}
		bots[name] = Unique(ranges)
	}
	return bots, nil
}

// Unique returns the sorted set of ranges.
func Unique(ranges []string) []string {
	seen := make(map[string]struct{}, len(ranges))
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
