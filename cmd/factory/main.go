package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolFactory/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "factory",
		Short:        "V3 pool factory registry",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the registry with the built-in fee tiers",
		RunE:  runInit,
	}

	addStateFlags(initCmd)
	initCmd.Flags().String("owner", "", "initial owner address")

	root.AddCommand(initCmd)

	createPoolCmd := &cobra.Command{
		Use:   "create-pool",
		Short: "Create the pool for a token pair and fee",
		RunE:  runCreatePool,
	}

	addStateFlags(createPoolCmd)
	createPoolCmd.Flags().String("caller", "", "caller address")
	createPoolCmd.Flags().String("token-a", "", "first token address")
	createPoolCmd.Flags().String("token-b", "", "second token address")
	createPoolCmd.Flags().Uint32("fee", 0, "fee in hundredths of a bip")

	root.AddCommand(createPoolCmd)

	enableFeeTierCmd := &cobra.Command{
		Use:   "enable-fee-tier",
		Short: "Enable a fee tier (owner only)",
		RunE:  runEnableFeeTier,
	}

	addStateFlags(enableFeeTierCmd)
	enableFeeTierCmd.Flags().String("caller", "", "caller address")
	enableFeeTierCmd.Flags().Uint32("fee", 0, "fee in hundredths of a bip")
	enableFeeTierCmd.Flags().Int32("tick-spacing", 0, "tick spacing for the fee")

	root.AddCommand(enableFeeTierCmd)

	transferOwnerCmd := &cobra.Command{
		Use:   "transfer-owner",
		Short: "Transfer registry ownership (owner only)",
		RunE:  runTransferOwner,
	}

	addStateFlags(transferOwnerCmd)
	transferOwnerCmd.Flags().String("caller", "", "caller address")
	transferOwnerCmd.Flags().String("new-owner", "", "new owner address")

	root.AddCommand(transferOwnerCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show registry state, or look up a pool or fee tier",
		RunE:  runShow,
	}

	addStateFlags(showCmd)
	showCmd.Flags().String("token-a", "", "first token address for pool lookup")
	showCmd.Flags().String("token-b", "", "second token address for pool lookup")
	showCmd.Flags().Uint32("fee", 0, "fee for pool or tier lookup")

	root.AddCommand(showCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode journal records into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/events.jsonl", "input journal JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the journal into Postgres",
		RunE:  runSync,
	}

	syncCmd.Flags().String("in", "./data/events.jsonl", "input journal JSONL")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	syncCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	syncCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	syncCmd.Flags().String("state-name", "factory-mirror", "state name for DB progress tracking")
	syncCmd.Flags().Uint64("from-seq", 0, "resync from sequence number, 0 means resume")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStateFlags(cmd *cobra.Command) {
	cmd.Flags().String("registry", config.DefaultRegistryAddress, "registry identity address")
	cmd.Flags().String("init-code-hash", config.DefaultInitCodeHash, "pool init code hash")
	cmd.Flags().String("snapshot", "./data/registry.json", "registry snapshot path")
	cmd.Flags().String("journal", "./data/events.jsonl", "event journal path")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	owner, err := config.ParseAddress(cfg.Owner)
	if err != nil {
		return err
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("init start",
		zap.String("registry", cfg.Registry),
		zap.String("owner", owner.Hex()),
		zap.String("snapshot", cfg.Snapshot),
		zap.String("journal", cfg.Journal),
	)

	return svc.Init(owner)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
