package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samuelfneumann/playround/config"
	"github.com/samuelfneumann/playround/experiment/checkpointer"
	"github.com/samuelfneumann/playround/network"
	"github.com/samuelfneumann/playround/utils/progressbar"
	"github.com/samuelfneumann/playround/utils/seedutils"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "playround",
	Short: "Run policy, actor, and critic networks on random states",
	Long: `playround builds a PolicyHead, Actor, or Critic network, feeds it
seeded uniform random batches of states (and actions, for the critic),
and logs summary statistics of the outputs.

Every flag can also be given as a PLAYROUND_* environment variable (for
example PLAYROUND_STATE_DIM) or in a YAML, JSON, or TOML config file.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (YAML, JSON, or TOML)")
	config.BindFlags(rootCmd.Flags(), config.Default())
}

// forward runs a batch through a network and returns its output
type forward func(states, actions *mat.Dense) (*mat.Dense, error)

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	runID := uuid.New()
	logger := log.With().Str("run_id", runID.String()).Logger()
	logger.Info().
		Str("network", cfg.Network).
		Int("state_dim", cfg.StateDim).
		Int("action_dim", cfg.ActionDim).
		Int("batch_size", cfg.BatchSize).
		Uint64("seed", cfg.Seed).
		Msg("starting run")

	seedutils.SeedAll(cfg.Seed)

	fwd, net, err := build(cfg)
	if err != nil {
		return err
	}

	var ckpt checkpointer.Checkpointer
	if cfg.CheckpointEvery > 0 {
		ckpt, err = checkpointer.NewNStep(cfg.CheckpointEvery, net,
			checkpointNames(cfg, runID))
		if err != nil {
			return err
		}
	}

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		if bar, err = progressbar.New(cmd.ErrOrStderr(), 40, cfg.Batches); err != nil {
			return err
		}
		defer bar.Close()
	}

	rng := rand.New(seedutils.NewSource(cfg.Seed, seedutils.InputStream))
	for i := 0; i < cfg.Batches; i++ {
		states := uniform(rng, cfg.BatchSize, cfg.StateDim)
		actions := uniform(rng, cfg.BatchSize, cfg.ActionDim)

		out, err := fwd(states, actions)
		if err != nil {
			return fmt.Errorf("batch %v: %w", i, err)
		}

		data := out.RawMatrix().Data
		mean, std := stat.MeanStdDev(data, nil)
		logger.Info().
			Int("batch", i).
			Float64("mean", mean).
			Float64("std", std).
			Float64("min", floats.Min(data)).
			Float64("max", floats.Max(data)).
			Msg("forward pass")
		logger.Debug().Msgf("output\n%v", mat.Formatted(out))

		if ckpt != nil {
			if err := ckpt.Checkpoint(i + 1); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Increment()
			bar.Display()
		}
	}

	if cfg.Checkpoint != "" {
		if err := checkpointer.Save(cfg.Checkpoint, net); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.Checkpoint).Msg("saved checkpoint")
	}
	return nil
}

// checkpointNames returns the filenames of periodic checkpoints. They
// are enumerated next to the final checkpoint when there is one, and
// are stamped with the time in the working directory otherwise.
func checkpointNames(cfg *config.Config, runID uuid.UUID) func() string {
	if cfg.Checkpoint == "" {
		return checkpointer.FileTimer(cfg.Network+"-"+runID.String(), ".bin")
	}

	ext := filepath.Ext(cfg.Checkpoint)
	base := strings.TrimSuffix(cfg.Checkpoint, ext)
	return checkpointer.FilenameEnumerator(1, base+"-", ext)
}

// build constructs the configured network
func build(cfg *config.Config) (forward, checkpointer.Serializable, error) {
	weights, err := cfg.WeightInit()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Network {
	case config.Policy:
		c := network.DefaultPolicyHeadConfig(cfg.StateDim, cfg.ActionDim,
			cfg.HiddenUnits)
		c.DropoutRate = cfg.DropoutRate
		c.BatchSize = cfg.BatchSize
		c.Seed = cfg.Seed
		c.InitWFn = weights

		net, err := network.NewPolicyHead(c)
		if err != nil {
			return nil, nil, err
		}
		mode, err := network.ParseMode(cfg.Mode)
		if err != nil {
			return nil, nil, err
		}
		if err := net.SetMode(mode); err != nil {
			return nil, nil, err
		}
		return func(states, _ *mat.Dense) (*mat.Dense, error) {
			return net.Forward(states)
		}, net, nil

	case config.Actor:
		c := network.DefaultActorConfig(cfg.StateDim, cfg.ActionDim)
		c.FC1Units, c.FC2Units = cfg.HiddenUnits, cfg.HiddenUnits
		c.BatchSize = cfg.BatchSize
		c.Seed = cfg.Seed
		c.InitWFn = weights

		net, err := network.NewActor(c)
		if err != nil {
			return nil, nil, err
		}
		return func(states, _ *mat.Dense) (*mat.Dense, error) {
			return net.Forward(states)
		}, net, nil

	case config.Critic:
		c := network.DefaultCriticConfig(cfg.StateDim, cfg.ActionDim)
		c.FCS1Units, c.FC2Units = cfg.HiddenUnits, cfg.HiddenUnits
		c.BatchSize = cfg.BatchSize
		c.Seed = cfg.Seed
		c.InitWFn = weights

		net, err := network.NewCritic(c)
		if err != nil {
			return nil, nil, err
		}
		return net.Forward, net, nil
	}

	return nil, nil, fmt.Errorf("build: unknown network %q", cfg.Network)
}

// uniform returns a (rows × cols) matrix of samples from U[-1, 1)
func uniform(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return mat.NewDense(rows, cols, data)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
