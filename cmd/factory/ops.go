package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolFactory/internal/config"
	"poolFactory/internal/journal"
	"poolFactory/internal/service"
	"poolFactory/internal/snapshot"
)

func newService(cfg config.Config, logger *zap.Logger) (*service.Service, error) {
	registry, err := config.ParseAddress(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	initCodeHash, err := config.ParseHash(cfg.InitCodeHash)
	if err != nil {
		return nil, fmt.Errorf("init code hash: %w", err)
	}
	if cfg.Snapshot == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if cfg.Journal == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	return service.NewService(
		service.Config{RegistryAddress: registry, InitCodeHash: initCodeHash},
		journal.NewJsonlJournal(cfg.Journal),
		snapshot.NewStore(cfg.Snapshot),
		logger,
	)
}

func runCreatePool(cmd *cobra.Command, _ []string) error {
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

	if cfg.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	caller, err := config.ParseAddress(cfg.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}
	if cfg.TokenA == "" || cfg.TokenB == "" {
		return fmt.Errorf("token-a and token-b are required")
	}
	tokenA, err := config.ParseAddress(cfg.TokenA)
	if err != nil {
		return fmt.Errorf("token-a: %w", err)
	}
	tokenB, err := config.ParseAddress(cfg.TokenB)
	if err != nil {
		return fmt.Errorf("token-b: %w", err)
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := svc.CreatePool(ctx, caller, tokenA, tokenB, cfg.Fee)
	if err != nil {
		return err
	}

	fmt.Println(pool.Hex())
	return nil
}

func runEnableFeeTier(cmd *cobra.Command, _ []string) error {
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

	if cfg.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	caller, err := config.ParseAddress(cfg.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.EnableFeeTier(ctx, caller, cfg.Fee, cfg.TickSpacing)
}

func runTransferOwner(cmd *cobra.Command, _ []string) error {
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

	if cfg.Caller == "" {
		return fmt.Errorf("caller is required")
	}
	caller, err := config.ParseAddress(cfg.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}
	if cfg.NewOwner == "" {
		return fmt.Errorf("new-owner is required")
	}
	newOwner, err := config.ParseAddress(cfg.NewOwner)
	if err != nil {
		return fmt.Errorf("new-owner: %w", err)
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.TransferOwner(ctx, caller, newOwner)
}

func runShow(cmd *cobra.Command, _ []string) error {
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

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	switch {
	case cfg.TokenA != "" || cfg.TokenB != "":
		if cfg.TokenA == "" || cfg.TokenB == "" {
			return fmt.Errorf("pool lookup needs both token-a and token-b")
		}
		tokenA, err := config.ParseAddress(cfg.TokenA)
		if err != nil {
			return fmt.Errorf("token-a: %w", err)
		}
		tokenB, err := config.ParseAddress(cfg.TokenB)
		if err != nil {
			return fmt.Errorf("token-b: %w", err)
		}

		pool, ok, err := svc.LookupPool(tokenA, tokenB, cfg.Fee)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no pool for pair at fee %d", cfg.Fee)
		}
		fmt.Println(pool.Hex())
		return nil

	case cmd.Flags().Changed("fee"):
		tickSpacing, ok, err := svc.LookupFeeTier(cfg.Fee)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("fee tier %d is not enabled", cfg.Fee)
		}
		fmt.Println(tickSpacing)
		return nil

	default:
		state, err := svc.State()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
}
