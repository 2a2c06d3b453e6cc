// Package allowlist builds the good bot allow-list: it walks the tracker
// index, merges the per-source ranges with the additional bots config and
// hands the result to the renderer.
package allowlist

import (
	"context"
	"errors"
)

// DefaultOutputFile is written when no output path is given.
const DefaultOutputFile = "bot_ips_config.py"

// ErrIndexUnavailable is returned when the index document cannot be used.
var ErrIndexUnavailable = errors.New("failed to fetch main endpoint list")

// Bots maps a bot display name to its sorted, unique ranges.
type Bots map[string][]string

// Result is the merged allow-list before rendering.
type Result struct {
	Bots Bots
	// Total is the running count of ranges added while merging, counted
	// before per-bot deduplication. A source replacing an earlier entry of
	// the same name does not reduce it.
	Total int
	// Additional holds the bots taken from the additional bots config.
	Additional Bots
}

// JSONFetcher retrieves and decodes a JSON document.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string) (any, error)
}
