package feed

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bbusenius/good-bots/ipparser"
)

const unknown = "unknown"

// Source is one entry of the index document.
type Source struct {
	URL  string // empty when the entry has no usable source.url
	ID   string
	Type string
}

// BotName derives the display name used as the allow-list key,
// e.g. type "search", id "google-bot" becomes "Search - Google Bot".
func (s Source) BotName() string {
	return titleWords(s.Type) + " - " + titleWords(strings.ReplaceAll(s.ID, "-", " "))
}

// titleWords upper-cases the first letter of every run of letters and
// lower-cases the rest, so any non-letter starts a new word: "gpt4bot"
// becomes "Gpt4Bot" and "google_bot" becomes "Google_Bot".
func titleWords(s string) string {
	title := cases.Title(language.Und)
	var b strings.Builder
	b.Grow(len(s))
	for s != "" {
		n := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
		if n == 0 {
			n = strings.IndexFunc(s, unicode.IsLetter)
			if n < 0 {
				n = len(s)
			}
			b.WriteString(s[:n])
		} else {
			if n < 0 {
				n = len(s)
			}
			b.WriteString(title.String(s[:n]))
		}
		s = s[n:]
	}
	return b.String()
}

// ParseIndex reads the index document. Entries without a source URL are
// returned with an empty URL so the caller can account for them.
func ParseIndex(doc any) ([]Source, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.New("index document is not a JSON object")
	}
	raw, ok := m["data"]
	if !ok {
		return nil, errors.New("index document missing 'data' field")
	}
	data, ok := raw.([]any)
	if !ok {
		return nil, errors.New("index document 'data' field is not a list")
	}

	sources := make([]Source, 0, len(data))
	for _, item := range data {
		src := Source{ID: unknown, Type: unknown}
		entry, _ := item.(map[string]any)
		if s, ok := entry["source"].(map[string]any); ok {
			src.URL = stringField(s, "url", "")
			src.ID = stringField(s, "id", unknown)
			src.Type = stringField(s, "type", unknown)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// ExtractRanges walks a prefix document and converts every ipv4Prefix into a
// range string, in document order. Duplicates are kept. Every rejected piece
// of input is reported in problems; entries that only carry other fields
// (such as ipv6Prefix) are skipped quietly.
func ExtractRanges(doc any) (ranges []string, problems []error) {
	ranges = make([]string, 0)

	m, ok := doc.(map[string]any)
	if !ok {
		return ranges, []error{errors.New("API response is not a valid JSON object")}
	}
	raw, ok := m["prefixes"]
	if !ok {
		return ranges, []error{errors.New("API response missing 'prefixes' field")}
	}
	prefixes, ok := raw.([]any)
	if !ok {
		return ranges, []error{errors.New("API response 'prefixes' field is not a list")}
	}

	for i, item := range prefixes {
		entry, ok := item.(map[string]any)
		if !ok {
			problems = append(problems, fmt.Errorf("invalid prefix entry %d in API response: %v", i, item))
			continue
		}

		v, ok := entry["ipv4Prefix"]
		if !ok {
			if _, v6 := entry["ipv6Prefix"]; !v6 {
				problems = append(problems, fmt.Errorf("prefix entry %d has no ipv4Prefix", i))
			}
			continue
		}
		cidr, ok := v.(string)
		if !ok {
			problems = append(problems, fmt.Errorf("invalid ipv4Prefix format: %v", v))
			continue
		}

		r, err := ipparser.CIDRToRange(cidr)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, problems
}
