package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load
const EnvPrefix = "PLAYROUND"

// BindFlags registers a flag for each configuration field on flags,
// defaulting to the values in c
func BindFlags(flags *pflag.FlagSet, c *Config) {
	// Network architecture
	flags.String("network", c.Network, "Network to build (policy, actor, critic)")
	flags.Int("state-dim", c.StateDim, "Number of state features")
	flags.Int("action-dim", c.ActionDim, "Number of actions (policy) or action dimensions (actor, critic)")
	flags.Int("hidden-units", c.HiddenUnits, "Units per hidden layer")
	flags.Float64("dropout-rate", c.DropoutRate, "Dropout rate of the policy network")
	flags.String("mode", c.Mode, "Network mode (train, eval)")

	// Weight initialization
	flags.String("init", c.Init, "Weight initializer (default, truncnormal, glorotu, heu, uniform, gaussian) or a JSON initializer")
	flags.Float64("init-mean", c.InitMean, "Mean of normal initializers")
	flags.Float64("init-std", c.InitStd, "Standard deviation of normal initializers")
	flags.Float64("init-low", c.InitLow, "Lower bound of the uniform initializer")
	flags.Float64("init-high", c.InitHigh, "Upper bound of the uniform initializer")
	flags.Float64("init-gain", c.InitGain, "Gain of the Glorot and He initializers")

	// Run settings
	flags.Uint64("seed", c.Seed, "Seed for all random number generators")
	flags.Int("batch-size", c.BatchSize, "Number of states per batch")
	flags.Int("batches", c.Batches, "Number of batches to run")
	flags.String("checkpoint", c.Checkpoint, "File to save the network to")
	flags.Int("checkpoint-every", c.CheckpointEvery, "Save the network every n batches (0 disables)")
	flags.Bool("progress", c.Progress, "Display a progress bar over the batches")

	// Logging
	flags.String("log-level", c.LogLevel, "Log level (debug, info, warn, error)")
}

// Load returns the configuration given by flags, PLAYROUND_* environment
// variables, and the config file at path, in decreasing order of
// precedence. Unset values keep the flag defaults. If path is empty, no
// config file is read.
func Load(flags *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
	}

	c := Default()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return c, nil
}
