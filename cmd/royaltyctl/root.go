package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfsorg/royalty-go/config"
	"github.com/bitfsorg/royalty-go/telemetry"
)

const serviceName = "royaltyctl"

// cli carries state shared by every subcommand.
type cli struct {
	dataDir     string
	logLevel    string
	concurrency int
	timeout     time.Duration

	cfg      config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "royaltyctl",
		Short: "Distribute royalty payments to rights holders",
		Long: `royaltyctl records royalty distributions in a local ledger and pays
each recipient's share through an x402 payment facilitator.

Settings are read from <datadir>/config, then ROYALTY_* environment
variables, then the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}

	root.PersistentFlags().StringVarP(&c.dataDir, "datadir", "d", config.DefaultDataDir(), "Data directory")
	root.PersistentFlags().StringVar(&c.logLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&c.concurrency, "concurrency", 0, "Settlements in flight at once")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 0, "Facilitator request timeout")

	root.AddCommand(
		newInitCmd(c),
		newSubmitCmd(c),
		newRunCmd(c),
		newRetryCmd(c),
		newListCmd(c),
		newShowCmd(c),
	)
	return root
}

// setup loads configuration, applies flag overrides and starts logging
// and tracing.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.dataDir)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("loglevel") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = c.concurrency
	}
	if flags.Changed("timeout") {
		cfg.FacilitatorTimeout = c.timeout
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger

	shutdown, err := telemetry.SetupTracing(cmd.Context(), serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.shutdown = shutdown
	return nil
}

func (c *cli) teardown() {
	if c.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdown(ctx); err != nil {
			c.logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}
	_ = c.logger.Sync()
}
