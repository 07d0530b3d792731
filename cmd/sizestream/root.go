package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/containerd/log"
	"github.com/sadopc/sizestream/internal/config"
	"github.com/sadopc/sizestream/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// globalOptions holds the persistent flags and the settings resolved from
// them in PersistentPreRunE.
type globalOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	concurrency int
	batchSize   int
	maxDepth    int
	sshPort     int
	sshBatch    bool
	sshTimeout  time.Duration

	cfg     config.Config
	metrics *metrics.Metrics
	server  *http.Server
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "sizestream",
		Short:         "Stream disk usage of a directory tree and delete what you don't need",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.Context(), cmd.Flags())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.shutdown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/sizestream/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (text or json)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.IntVarP(&opts.concurrency, "concurrency", "j", 0, "Max concurrent directory reads (0 = auto)")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "Subtrees per streamed batch")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "Depth of the tree in streamed messages")
	flags.IntVar(&opts.sshPort, "ssh-port", 22, "SSH port for remote scans")
	flags.BoolVar(&opts.sshBatch, "ssh-batch", false, "Disable SSH password and host key prompts")
	flags.DurationVar(&opts.sshTimeout, "ssh-timeout", 0, "SSH connection timeout")

	cmd.AddCommand(
		newScanCommand(opts),
		newDeleteCommand(opts),
	)
	return cmd
}

// setup loads the config file, applies flag overrides and configures
// logging and the metrics endpoint.
func (opts *globalOptions) setup(ctx context.Context, flags *pflag.FlagSet) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("concurrency") {
		cfg.Scan.Concurrency = opts.concurrency
	}
	if flags.Changed("batch-size") {
		cfg.Scan.BatchSize = opts.batchSize
	}
	if flags.Changed("max-depth") {
		cfg.Scan.MaxDepth = opts.maxDepth
	}
	if flags.Changed("ssh-port") {
		cfg.Remote.Port = opts.sshPort
	}
	if flags.Changed("ssh-batch") {
		cfg.Remote.BatchMode = opts.sshBatch
	}
	if flags.Changed("ssh-timeout") {
		cfg.Remote.Timeout = opts.sshTimeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts.cfg = cfg

	if err := configureLogging(cfg.Log); err != nil {
		return err
	}

	opts.metrics = metrics.New()
	if cfg.MetricsAddr != "" {
		opts.serveMetrics(ctx, cfg.MetricsAddr)
	}
	return nil
}

func configureLogging(c config.LogConfig) error {
	logrus.SetOutput(os.Stderr)
	if err := log.SetLevel(c.Level); err != nil {
		return err
	}
	format := log.TextFormat
	if strings.EqualFold(c.Format, "json") {
		format = log.JSONFormat
	}
	return log.SetFormat(format)
}

func (opts *globalOptions) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", opts.metrics.Handler())
	opts.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.G(ctx).WithField("addr", addr).Info("serving metrics")
		if err := opts.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.G(ctx).WithError(err).Error("metrics server failed")
		}
	}()
}

func (opts *globalOptions) shutdown() error {
	if opts.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return opts.server.Shutdown(ctx)
}
