package allowlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"

	"github.com/bbusenius/good-bots/botlist"
	"github.com/bbusenius/good-bots/feed"
	"github.com/bbusenius/good-bots/render"
)

// Generator runs the fetch, merge and render pipeline. Sources are processed
// one at a time, in index order.
type Generator struct {
	indexURL   string
	fetcher    JSONFetcher
	additional func() map[string][]string
	out        io.Writer
	log        *zap.SugaredLogger
	metrics    *Metrics
	now        func() time.Time
}

type generatorConfig struct {
	indexURL           string
	fetcher            JSONFetcher
	userAgent          string
	additional         map[string][]string
	additionalBotsPath string
	out                io.Writer
	log                *zap.SugaredLogger
	metrics            *Metrics
	now                func() time.Time
}

// Option configures a Generator.
type Option func(*generatorConfig) error

// WithIndexURL overrides feed.DefaultIndexURL.
func WithIndexURL(url string) Option {
	return func(c *generatorConfig) error {
		if url == "" {
			return fmt.Errorf("index URL must not be empty")
		}
		c.indexURL = url
		return nil
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f JSONFetcher) Option {
	return func(c *generatorConfig) error {
		c.fetcher = f
		return nil
	}
}

// WithUserAgent sets the User-Agent of the default fetcher.
// It has no effect together with WithFetcher.
func WithUserAgent(ua string) Option {
	return func(c *generatorConfig) error {
		c.userAgent = ua
		return nil
	}
}

// WithAdditionalBots uses bots instead of reading the additional bots config.
func WithAdditionalBots(bots map[string][]string) Option {
	return func(c *generatorConfig) error {
		c.additional = bots
		return nil
	}
}

// WithAdditionalBotsPath reads the additional bots config from path only.
func WithAdditionalBotsPath(path string) Option {
	return func(c *generatorConfig) error {
		c.additionalBotsPath = path
		return nil
	}
}

// WithOutput sets where progress messages go. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *generatorConfig) error {
		c.out = w
		return nil
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *generatorConfig) error {
		c.log = log
		return nil
	}
}

// WithMetrics records run statistics in m.
func WithMetrics(m *Metrics) Option {
	return func(c *generatorConfig) error {
		c.metrics = m
		return nil
	}
}

// WithClock sets the time source for the generation timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *generatorConfig) error {
		c.now = now
		return nil
	}
}

// NewGenerator returns a Generator reading from the public tracker by default.
func NewGenerator(opts ...Option) (*Generator, error) {
	cfg := &generatorConfig{
		indexURL: feed.DefaultIndexURL,
		out:      os.Stdout,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.fetcher == nil {
		cfg.fetcher = feed.NewFetcher(nil, cfg.userAgent)
	}
	if cfg.log == nil {
		cfg.log = logging.Logger("good-bots/allowlist").Desugar().Sugar()
	}

	additional := func() map[string][]string { return botlist.Load(cfg.additionalBotsPath) }
	if cfg.additional != nil {
		static := cfg.additional
		additional = func() map[string][]string { return static }
	}

	return &Generator{
		indexURL:   cfg.indexURL,
		fetcher:    cfg.fetcher,
		additional: additional,
		out:        cfg.out,
		log:        cfg.log,
		metrics:    cfg.metrics,
		now:        cfg.now,
	}, nil
}

// Collect fetches the index and every source it lists and merges them with
// the additional bots. Only a failure to use the index is returned as an
// error; individual sources that fail are logged and left out.
func (g *Generator) Collect(ctx context.Context) (*Result, error) {
	fmt.Fprintf(g.out, "Fetching endpoint list from %s...\n", g.indexURL)

	doc, err := g.fetcher.FetchJSON(ctx, g.indexURL)
	if err != nil {
		g.log.Errorf("Error fetching %s: %v", g.indexURL, err)
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}
	sources, err := feed.ParseIndex(doc)
	if err != nil {
		g.log.Errorf("Unusable endpoint list from %s: %v", g.indexURL, err)
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	additional := g.additional()
	res := &Result{
		Bots:       make(Bots, len(additional)+len(sources)),
		Additional: Bots(additional),
	}
	for name, ranges := range additional {
		res.Bots[name] = ranges
		res.Total += len(ranges)
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if src.URL == "" {
			g.log.Debugf("skipping index entry %s/%s without source url", src.Type, src.ID)
			g.metrics.sourceProcessed(outcomeSkipped)
			continue
		}

		fmt.Fprintf(g.out, "Processing %s/%s: %s\n", src.Type, src.ID, src.URL)

		doc, err := g.fetcher.FetchJSON(ctx, src.URL)
		if err != nil {
			g.log.Warnf("Error fetching %s: %v", src.URL, err)
			fmt.Fprintln(g.out, "  Failed to fetch data")
			g.metrics.sourceProcessed(outcomeFailed)
			continue
		}

		ranges, problems := feed.ExtractRanges(doc)
		for _, p := range problems {
			g.log.Warnf("%s: %v", src.URL, p)
		}
		if len(ranges) == 0 {
			fmt.Fprintln(g.out, "  No IPv4 ranges found")
			g.metrics.sourceProcessed(outcomeEmpty)
			continue
		}

		name := src.BotName()
		if _, exists := res.Bots[name]; exists {
			g.log.Warnf("bot %q from %s replaces an existing entry of the same name", name, src.URL)
		}
		unique := botlist.Unique(ranges)
		res.Bots[name] = unique
		res.Total += len(ranges)
		g.metrics.sourceProcessed(outcomeOK)
		fmt.Fprintf(g.out, "  Found %d IPv4 ranges\n", len(ranges))
	}

	if len(additional) > 0 {
		fmt.Fprintln(g.out, "\nAdditional bots loaded from config:")
		names := make([]string, 0, len(additional))
		for name := range additional {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(g.out, "  %s: %d ranges\n", name, len(additional[name]))
		}
	}

	return res, nil
}

// Generate builds the allow-list and writes it to outputPath, returning 0 on
// success and 1 on any fatal failure.
func (g *Generator) Generate(ctx context.Context, outputPath string) int {
	if outputPath == "" {
		outputPath = DefaultOutputFile
	}

	res, err := g.Collect(ctx)
	if err != nil {
		// Collect has already reported index failures
		if !errors.Is(err, ErrIndexUnavailable) {
			g.log.Errorf("Generation aborted: %v", err)
		}
		return 1
	}

	doc := render.Document{
		Bots:      res.Bots,
		Total:     res.Total,
		Source:    g.indexURL,
		Generated: g.now(),
	}
	if err := render.WriteFile(outputPath, doc); err != nil {
		g.log.Errorf("Error writing to %s: %v", outputPath, err)
		return 1
	}
	g.metrics.recordRun(res, doc.Generated)

	module := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	fmt.Fprintf(g.out, "\nGenerated %s with %d IP ranges\n", outputPath, res.Total)
	fmt.Fprintln(g.out, "You can now import this in your Django settings:")
	fmt.Fprintf(g.out, "from .%s import %s\n", module, render.ListName)
	fmt.Fprintln(g.out, "Then concatenate to your existing TURNSTILE_EXCLUDED_IPS:")
	fmt.Fprintf(g.out, "TURNSTILE_EXCLUDED_IPS = TURNSTILE_EXCLUDED_IPS + %s\n", render.ListName)
	return 0
}
