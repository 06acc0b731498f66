package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/playround/initwfn"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags, Default())
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())

	init, err := Default().WeightInit()
	require.NoError(t, err)
	assert.Nil(t, init)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"network":      func(c *Config) { c.Network = "transformer" },
		"state dim":    func(c *Config) { c.StateDim = 0 },
		"action dim":   func(c *Config) { c.ActionDim = -1 },
		"dropout":      func(c *Config) { c.DropoutRate = 1 },
		"mode":         func(c *Config) { c.Mode = "test" },
		"init":         func(c *Config) { c.Init = "orthogonal" },
		"init params":  func(c *Config) { c.Init, c.InitStd = InitGaussian, 0 },
		"batch size":   func(c *Config) { c.BatchSize = 0 },
		"batches":      func(c *Config) { c.Batches = 0 },
		"log level":    func(c *Config) { c.LogLevel = "loud" },
		"uniform init": func(c *Config) { c.Init, c.InitLow = InitUniform, 1 },
		"json init":    func(c *Config) { c.Init = `{"Type": "HeN", "Config": {"Gain": -1}}` },
		"checkpoints":  func(c *Config) { c.CheckpointEvery = -1 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWeightInit(t *testing.T) {
	c := Default()
	c.Init = InitTruncNormal

	init, err := c.WeightInit()
	require.NoError(t, err)
	assert.Equal(t, initwfn.TruncatedNormal, init.Type)
}

func TestWeightInitJSON(t *testing.T) {
	tests := map[string]initwfn.Type{
		`{"Type": "GlorotN", "Config": {"Gain": 1}}`:     initwfn.GlorotN,
		`{"Type": "HeN", "Config": {"Gain": 2}}`:         initwfn.HeN,
		` {"Type": "Zeroes"}`:                            initwfn.Zeroes,
		`{"Type": "Ones"}`:                               initwfn.Ones,
		`{"Type": "Constant", "Config": {"Value": 0.1}}`: initwfn.Constant,
	}

	for data, typ := range tests {
		c := Default()
		c.Init = data
		require.NoError(t, c.Validate(), data)

		init, err := c.WeightInit()
		require.NoError(t, err)
		assert.Equal(t, typ, init.Type)
	}
}

func TestLoadFlags(t *testing.T) {
	flags := newFlags(t, "--network", "critic", "--state-dim", "8",
		"--seed", "7", "--dropout-rate", "0.25", "--checkpoint-every", "3",
		"--progress")

	c, err := Load(flags, "")
	require.NoError(t, err)
	assert.Equal(t, Critic, c.Network)
	assert.Equal(t, 8, c.StateDim)
	assert.Equal(t, uint64(7), c.Seed)
	assert.Equal(t, 0.25, c.DropoutRate)
	assert.Equal(t, 3, c.CheckpointEvery)
	assert.True(t, c.Progress)
	assert.Equal(t, Default().HiddenUnits, c.HiddenUnits)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PLAYROUND_BATCH_SIZE", "5")
	t.Setenv("PLAYROUND_NETWORK", "actor")

	c, err := Load(newFlags(t, "--network", "policy"), "")
	require.NoError(t, err)
	assert.Equal(t, 5, c.BatchSize)

	// Flags take precedence over the environment
	assert.Equal(t, Policy, c.Network)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"network: actor\nhidden_units: 64\ninit: heu\ninit_gain: 2\n"), 0o644))

	c, err := Load(newFlags(t), path)
	require.NoError(t, err)
	assert.Equal(t, Actor, c.Network)
	assert.Equal(t, 64, c.HiddenUnits)
	assert.Equal(t, InitHeU, c.Init)
	assert.Equal(t, 2.0, c.InitGain)
	require.NoError(t, c.Validate())

	_, err = Load(newFlags(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
