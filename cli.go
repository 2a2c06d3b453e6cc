package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/bbusenius/good-bots/allowlist"
	"github.com/bbusenius/good-bots/config"
)

var log = logging.Logger("good-bots")

var errPathTraversal = errors.New("path traversal detected: use of '..' in paths is not allowed")

// errSilent marks failures that were already reported to the user.
var errSilent = errors.New("failed")

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   name,
		Short: "Fetch bot IP addresses and generate django-turnstile-site-protect configuration",
		Long: `Fetch the IP ranges of well known bots from the search engine IP tracker,
merge them with the additional bots config and write a GOOD_BOTS list that can
be added to TURNSTILE_EXCLUDED_IPS.

Every flag can also be set with a GOOD_BOTS_* environment variable, for
example GOOD_BOTS_INDEX_URL. A .env file in the working directory is loaded
first.`,
		Example: `  good-bots
  good-bots --path ~/mysite/settings
  good-bots -o /tmp/bot_ips_config.py --metrics-file /var/lib/node_exporter/good_bots.prom
  good-bots lookup 66.249.66.1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), cmd, stdout, stderr)
		},
	}
	config.RegisterFlags(root.PersistentFlags())
	config.RegisterOutputFlags(root.Flags())

	root.AddCommand(newLookupCmd(stdout, stderr), newVersionCmd(stdout))
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	// GOLOG_LOG_LEVEL keeps working unless a level was asked for explicitly.
	if os.Getenv("GOLOG_LOG_LEVEL") == "" || cmd.Flags().Changed(config.KeyLogLevel) {
		lvl, err := logging.LevelFromString(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logging.SetAllLoggers(lvl)
	}
	return cfg, nil
}

func newGenerator(cfg *config.Config, out io.Writer, opts ...allowlist.Option) (*allowlist.Generator, error) {
	base := []allowlist.Option{
		allowlist.WithIndexURL(cfg.IndexURL),
		allowlist.WithOutput(out),
		allowlist.WithUserAgent(name + "/" + version),
	}
	if cfg.AdditionalBots != "" {
		base = append(base, allowlist.WithAdditionalBotsPath(cfg.AdditionalBots))
	}
	return allowlist.NewGenerator(append(base, opts...)...)
}

func runGenerate(ctx context.Context, cmd *cobra.Command, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	outputPath, err := resolveOutputPath(cfg.Path, cfg.Output)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errSilent
	}

	var metrics *allowlist.Metrics
	var opts []allowlist.Option
	if cfg.MetricsFile != "" {
		metrics = allowlist.NewMetrics()
		registerVersionMetric(metrics.Registry())
		opts = append(opts, allowlist.WithMetrics(metrics))
	}
	gen, err := newGenerator(cfg, stdout, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Generating bot IP configuration...")
	if gen.Generate(ctx, outputPath) != 0 {
		fmt.Fprintln(stderr, "Failed to generate configuration")
		return errSilent
	}

	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Errorf("writing metrics to %s: %v", cfg.MetricsFile, err)
			return errSilent
		}
		log.Debugf("metrics written to %s", cfg.MetricsFile)
	}
	fmt.Fprintln(stdout, "Configuration generated successfully")
	return nil
}

// resolveOutputPath picks the file to write. dir wins over output; with
// neither, the default file in the working directory is used. dir is created
// when missing.
func resolveOutputPath(dir, output string) (string, error) {
	if dir == "" {
		if output == "" {
			return allowlist.DefaultOutputFile, nil
		}
		return output, nil
	}

	if strings.Contains(dir, "..") {
		return "", errPathTraversal
	}
	dir, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.Join(dir, allowlist.DefaultOutputFile), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

func newLookupCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup IP...",
		Short: "Report which bot each IP address belongs to",
		Long: `Fetch the current allow-list and report, for every IP address given, the
bot whose range contains it. Progress messages go to stderr so that stdout
only carries one "<ip> <bot>" line per address; unknown addresses are shown
with "-".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ips := make([]netip.Addr, 0, len(args))
			for _, arg := range args {
				ip, err := netip.ParseAddr(arg)
				if err != nil {
					return fmt.Errorf("invalid IP address %q", arg)
				}
				ips = append(ips, ip)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			gen, err := newGenerator(cfg, stderr)
			if err != nil {
				return err
			}
			res, err := gen.Collect(cmd.Context())
			if err != nil {
				return err
			}

			table, problems := allowlist.NewLookup(res.Bots)
			for _, p := range problems {
				log.Warn(p)
			}
			log.Infof("lookup table holds %d prefixes for %d bots", table.Size(), len(res.Bots))
			for _, ip := range ips {
				bot, ok := table.Match(ip)
				if !ok {
					bot = "-"
				}
				fmt.Fprintf(stdout, "%s\t%s\n", ip, bot)
			}
			return nil
		},
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(stdout, "%s %s\n", name, version)
		},
	}
}
