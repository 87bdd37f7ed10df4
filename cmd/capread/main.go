package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	capread "github.com/rawbytedev/capread"
	"github.com/rawbytedev/capread/internal/config"
	"github.com/rawbytedev/capread/pkg/arena"
	"github.com/rawbytedev/capread/pkg/metrics"
	"github.com/rawbytedev/capread/pkg/transport"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalOptions struct {
	ConfigPath string
	LogLevel   string
	MaxBytes   int
	MaxDepth   int
	Unlimited  bool
	Packed     bool
	Framed     bool
	Base64     bool
	Stats      bool
}

var globals globalOptions

func main() {
	rootCmd := newRootCmd(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "capread",
		Short: "Inspect and copy segmented binary messages under a read budget",
		Long: `capread decodes untrusted segmented messages without validating them
up front. Every pointer it follows is bounds-checked and charged against a
byte budget and a pointer depth budget.

Input is a framed stream read from a file or "-" for stdin. It may be
packed, wrapped in a checksummed envelope, or base64 text.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "YAML file with limits and transport settings")
	flags.StringVar(&globals.LogLevel, "log-level", "warn", "Log messages above specified level: debug, info, warn, error")
	flags.IntVar(&globals.MaxBytes, "max-bytes", 0, "Byte budget (default from config)")
	flags.IntVar(&globals.MaxDepth, "max-depth", 0, "Pointer depth budget (default from config)")
	flags.BoolVar(&globals.Unlimited, "unlimited", false, "Read without a budget; only for trusted input")
	flags.BoolVar(&globals.Packed, "packed", false, "Input stream is packed")
	flags.BoolVar(&globals.Framed, "framed", false, "Input is a checksummed envelope")
	flags.BoolVar(&globals.Base64, "base64", false, "Input is base64 text")
	flags.BoolVar(&globals.Stats, "stats", false, "Print budget counters to stderr when done")

	rootCmd.AddCommand(
		rootLayoutCmd(),
		treeCmd(),
		copyCmd(),
		versionCmd(),
	)
	return rootCmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(globals.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.Debugf("%s filtering at log level %s", cmd.Root().Name(), logrus.GetLevel())
	return nil
}

// options merges the config file with flags set on the command line.
func options(cmd *cobra.Command) (capread.Options, error) {
	cfg := config.Default()
	if globals.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(globals.ConfigPath); err != nil {
			return capread.Options{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("max-bytes") {
		cfg.Limits.MaxBytes = globals.MaxBytes
	}
	if flags.Changed("max-depth") {
		cfg.Limits.MaxDepth = globals.MaxDepth
	}
	if flags.Changed("unlimited") {
		cfg.Limits.Unlimited = globals.Unlimited
	}
	if flags.Changed("packed") {
		cfg.Transport.Packed = globals.Packed
	}
	if flags.Changed("framed") {
		cfg.Transport.Framed = globals.Framed
	}
	if err := cfg.Validate(); err != nil {
		return capread.Options{}, err
	}
	return cfg.Options(), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if globals.Base64 {
		return transport.DecodeBase64(strings.TrimSpace(string(data)))
	}
	return data, nil
}

// session is one decoded message plus the counters its budget feeds.
type session struct {
	reader   *capread.Reader
	registry *prometheus.Registry
}

// open decodes the message at path. With --stats its budget feeds counters
// built with stats.
func open(cmd *cobra.Command, path string, stats ...metrics.Option) (*session, error) {
	opts, err := options(cmd)
	if err != nil {
		return nil, err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	s := &session{}
	if globals.Stats {
		s.registry = prometheus.NewRegistry()
		collector := metrics.NewCollector(append(stats, metrics.WithRegistry(s.registry))...)
		opts.Wrap = func(l arena.Limiter) arena.Limiter { return collector.Instrument(l) }
	}
	if s.reader, err = capread.Deserialize(data, opts); err != nil {
		return nil, err
	}
	logrus.Debugf("Opened %s: %d segments", path, len(s.reader.Segments()))
	return s, nil
}

func (s *session) close(cmd *cobra.Command) {
	if s.registry == nil {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		logrus.Warnf("Gathering stats: %v", err)
		return
	}
	w := cmd.ErrOrStderr()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
			}
			fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
		}
	}
}
