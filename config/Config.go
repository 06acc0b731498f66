// Package config holds the configuration of the playround command and
// loads it from flags, environment variables, and config files.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/playround/initwfn"
	"github.com/samuelfneumann/playround/network"
	"github.com/samuelfneumann/playround/utils/seedutils"
)

// Network kinds
const (
	Policy = "policy"
	Actor  = "actor"
	Critic = "critic"
)

// Weight initializer kinds
const (
	InitDefault     = "default"
	InitTruncNormal = "truncnormal"
	InitGlorotU     = "glorotu"
	InitHeU         = "heu"
	InitUniform     = "uniform"
	InitGaussian    = "gaussian"
)

// Config holds all playround configuration
type Config struct {
	// Network architecture
	Network     string  `mapstructure:"network"`
	StateDim    int     `mapstructure:"state_dim"`
	ActionDim   int     `mapstructure:"action_dim"`
	HiddenUnits int     `mapstructure:"hidden_units"`
	DropoutRate float64 `mapstructure:"dropout_rate"`
	Mode        string  `mapstructure:"mode"`

	// Weight initialization
	Init     string  `mapstructure:"init"`
	InitMean float64 `mapstructure:"init_mean"`
	InitStd  float64 `mapstructure:"init_std"`
	InitLow  float64 `mapstructure:"init_low"`
	InitHigh float64 `mapstructure:"init_high"`
	InitGain float64 `mapstructure:"init_gain"`

	// Run settings
	Seed      uint64 `mapstructure:"seed"`
	BatchSize int    `mapstructure:"batch_size"`
	Batches   int    `mapstructure:"batches"`

	// Checkpoint is the file the network is saved to after the run. If
	// empty, no final checkpoint is written.
	Checkpoint string `mapstructure:"checkpoint"`

	// CheckpointEvery saves the network after every n batches to
	// enumerated files next to Checkpoint, or to time-stamped files in
	// the working directory if Checkpoint is empty. Zero disables
	// periodic checkpoints.
	CheckpointEvery int `mapstructure:"checkpoint_every"`

	// Progress displays a progress bar over the batches
	Progress bool `mapstructure:"progress"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Network:     Policy,
		StateDim:    4,
		ActionDim:   2,
		HiddenUnits: network.DefaultHiddenUnits,
		DropoutRate: network.DefaultDropoutRate,
		Mode:        network.Eval.String(),
		Init:        InitDefault,
		InitMean:    0,
		InitStd:     0.1,
		InitLow:     -0.1,
		InitHigh:    0.1,
		InitGain:    1,
		Seed:        seedutils.DefaultSeed,
		BatchSize:   32,
		Batches:     1,
		LogLevel:    "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Network {
	case Policy, Actor, Critic:
	default:
		return fmt.Errorf("network must be one of %v, %v, or %v but got %q",
			Policy, Actor, Critic, c.Network)
	}
	if c.StateDim <= 0 {
		return fmt.Errorf("state_dim must be positive")
	}
	if c.ActionDim <= 0 {
		return fmt.Errorf("action_dim must be positive")
	}
	if c.HiddenUnits <= 0 {
		return fmt.Errorf("hidden_units must be positive")
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("dropout_rate must be in [0, 1)")
	}
	if _, err := network.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if _, err := c.WeightInit(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.Batches <= 0 {
		return fmt.Errorf("batches must be positive")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must be non-negative")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// WeightInit returns the configured weight initializer. The default
// initializer is nil, which networks take to mean FanInUniform.
//
// Init is either one of the Init* kinds, parameterized by the Init*
// fields, or a JSON initializer such as
// {"Type": "GlorotN", "Config": {"Gain": 1}}.
func (c *Config) WeightInit() (*initwfn.InitWFn, error) {
	if init := strings.TrimSpace(c.Init); strings.HasPrefix(init, "{") {
		var w initwfn.InitWFn
		if err := json.Unmarshal([]byte(init), &w); err != nil {
			return nil, err
		}
		return &w, nil
	}

	switch strings.ToLower(c.Init) {
	case InitDefault, "":
		return nil, nil
	case InitTruncNormal:
		return initwfn.NewTruncatedNormal(c.InitMean, c.InitStd)
	case InitGlorotU:
		return initwfn.NewGlorotU(c.InitGain)
	case InitHeU:
		return initwfn.NewHeU(c.InitGain)
	case InitUniform:
		return initwfn.NewUniform(c.InitLow, c.InitHigh)
	case InitGaussian:
		return initwfn.NewGaussian(c.InitMean, c.InitStd)
	}
	return nil, fmt.Errorf("unknown initializer %q", c.Init)
}
