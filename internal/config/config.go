package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultRegistryAddress is the canonical v3 factory deployment address.
const DefaultRegistryAddress = "0x1F98431c8aD98523631AE4a59f267346ea31F984"

// DefaultInitCodeHash is the canonical v3 pool init code hash.
const DefaultInitCodeHash = "0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Registry     string
	InitCodeHash string
	Snapshot     string
	Journal      string
	Owner        string
	Caller       string
	TokenA       string
	TokenB       string
	Fee          uint32
	TickSpacing  int32
	NewOwner     string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("registry", DefaultRegistryAddress)
	v.SetDefault("init-code-hash", DefaultInitCodeHash)
	v.SetDefault("snapshot", "./data/registry.json")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Registry:     v.GetString("registry"),
		InitCodeHash: v.GetString("init-code-hash"),
		Snapshot:     v.GetString("snapshot"),
		Journal:      v.GetString("journal"),
		Owner:        v.GetString("owner"),
		Caller:       v.GetString("caller"),
		TokenA:       v.GetString("token-a"),
		TokenB:       v.GetString("token-b"),
		Fee:          v.GetUint32("fee"),
		TickSpacing:  v.GetInt32("tick-spacing"),
		NewOwner:     v.GetString("new-owner"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
