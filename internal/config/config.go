package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds provider and quoting settings loaded from flags, env, or
// config file.
type Config struct {
	RPCURL        string
	Factory       string
	PoolsFile     string
	PGDSN         string
	FeeSource     string
	StaticFeeBps  uint32
	SlippageBps   uint32
	Deadline      time.Duration
	TWAPCapacity  int
	Intermediates []string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v), nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee-source", "contract")
	v.SetDefault("static-fee-bps", uint32(30))
	v.SetDefault("slippage-bps", uint32(50))
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("twap-capacity", 100)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	v.SetDefault("interval", 15*time.Second)
	v.SetDefault("nats-subject", "ammquote.twap")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		RPCURL:        v.GetString("rpc"),
		Factory:       v.GetString("factory"),
		PoolsFile:     v.GetString("pools-file"),
		PGDSN:         v.GetString("pg-dsn"),
		FeeSource:     v.GetString("fee-source"),
		StaticFeeBps:  v.GetUint32("static-fee-bps"),
		SlippageBps:   v.GetUint32("slippage-bps"),
		Deadline:      v.GetDuration("deadline"),
		TWAPCapacity:  v.GetInt("twap-capacity"),
		Intermediates: getStringSlice(v, "via"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
