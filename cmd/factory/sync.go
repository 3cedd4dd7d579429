package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolFactory/internal/config"
	"poolFactory/internal/journal/postgres"
	"poolFactory/internal/mirror"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSync(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	var stateStore mirror.StateStore
	if cfg.StateFile != "" {
		stateStore = &mirror.FileStateStore{Path: cfg.StateFile}
	} else {
		stateStore = &mirror.DBStateStore{Store: store, Name: cfg.StateName}
	}

	m, err := mirror.NewMirror(mirror.Config{
		BatchSize:    cfg.BatchSize,
		FromSeq:      cfg.FromSeq,
		StateStore:   stateStore,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, logger)
	if err != nil {
		return err
	}

	logger.Info("sync start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("from_seq", cfg.FromSeq),
	)

	return m.Run(ctx, cfg.Input)
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
