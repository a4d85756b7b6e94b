package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the TWAP watch loop.
type WatchConfig struct {
	Config
	Interval    time.Duration
	Samples     int
	Out         string
	NATSURL     string
	NATSSubject string
	MetricsAddr string
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return WatchConfig{}, err
	}
	return WatchConfig{
		Config:      fromViper(v),
		Interval:    v.GetDuration("interval"),
		Samples:     v.GetInt("samples"),
		Out:         v.GetString("out"),
		NATSURL:     v.GetString("nats-url"),
		NATSSubject: v.GetString("nats-subject"),
		MetricsAddr: v.GetString("metrics-addr"),
	}, nil
}
