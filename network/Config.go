package network

import (
	"fmt"

	"github.com/samuelfneumann/playround/initwfn"
	"github.com/samuelfneumann/playround/utils/seedutils"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
)

// Architecture constants shared by the networks
const (
	DefaultHiddenUnits = 256
	DefaultDropoutRate = 0.5

	// BiasValue is the constant every Actor and Critic bias is
	// initialized to
	BiasValue = 0.03
)

// PolicyHeadConfig describes a PolicyHead
type PolicyHeadConfig struct {
	StateDim    int
	ActionNum   int
	HiddenDim   int
	DropoutRate float64
	BatchSize   int
	Seed        uint64

	// InitWFn initializes the weights of each layer. If nil, weights are
	// drawn from FanInUniform.
	InitWFn *initwfn.InitWFn `json:",omitempty"`
}

// DefaultPolicyHeadConfig returns a PolicyHeadConfig with a dropout rate
// of 0.5, a batch size of 1, and the default seed.
func DefaultPolicyHeadConfig(stateDim, actionNum,
	hiddenDim int) PolicyHeadConfig {
	return PolicyHeadConfig{
		StateDim:    stateDim,
		ActionNum:   actionNum,
		HiddenDim:   hiddenDim,
		DropoutRate: DefaultDropoutRate,
		BatchSize:   1,
		Seed:        seedutils.DefaultSeed,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid.
func (c PolicyHeadConfig) Validate() error {
	if err := positive([]dim{
		{"state dimension", c.StateDim},
		{"number of actions", c.ActionNum},
		{"hidden dimension", c.HiddenDim},
		{"batch size", c.BatchSize},
	}); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("validate: dropout rate must be in [0, 1)"+
			"\n\thave(%v)", c.DropoutRate)
	}
	return nil
}

// ActorConfig describes an Actor
type ActorConfig struct {
	StateDim   int
	ActionSize int
	FC1Units   int
	FC2Units   int
	BatchSize  int
	Seed       uint64

	// InitWFn initializes the weights of each layer. If nil, weights are
	// drawn from FanInUniform. Biases are always set to BiasValue.
	InitWFn *initwfn.InitWFn `json:",omitempty"`
}

// DefaultActorConfig returns an ActorConfig with two hidden layers of
// 256 units, a batch size of 1, and the default seed.
func DefaultActorConfig(stateDim, actionSize int) ActorConfig {
	return ActorConfig{
		StateDim:   stateDim,
		ActionSize: actionSize,
		FC1Units:   DefaultHiddenUnits,
		FC2Units:   DefaultHiddenUnits,
		BatchSize:  1,
		Seed:       seedutils.DefaultSeed,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid.
func (c ActorConfig) Validate() error {
	if err := positive([]dim{
		{"state dimension", c.StateDim},
		{"action size", c.ActionSize},
		{"fc1 units", c.FC1Units},
		{"fc2 units", c.FC2Units},
		{"batch size", c.BatchSize},
	}); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// CriticConfig describes a Critic
type CriticConfig struct {
	StateSize  int
	ActionSize int
	FCS1Units  int
	FC2Units   int
	BatchSize  int
	Seed       uint64

	// InitWFn initializes the weights of each layer. If nil, weights are
	// drawn from FanInUniform. Biases are always set to BiasValue.
	InitWFn *initwfn.InitWFn `json:",omitempty"`
}

// DefaultCriticConfig returns a CriticConfig with hidden layers of 256
// units, a batch size of 1, and the default seed.
func DefaultCriticConfig(stateSize, actionSize int) CriticConfig {
	return CriticConfig{
		StateSize:  stateSize,
		ActionSize: actionSize,
		FCS1Units:  DefaultHiddenUnits,
		FC2Units:   DefaultHiddenUnits,
		BatchSize:  1,
		Seed:       seedutils.DefaultSeed,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid.
func (c CriticConfig) Validate() error {
	if err := positive([]dim{
		{"state size", c.StateSize},
		{"action size", c.ActionSize},
		{"fcs1 units", c.FCS1Units},
		{"fc2 units", c.FC2Units},
		{"batch size", c.BatchSize},
	}); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// dim is a named dimension of a network
type dim struct {
	name  string
	value int
}

// positive returns an error naming the first non-positive dimension
func positive(dims []dim) error {
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("%v must be positive\n\thave(%v)", d.name,
				d.value)
		}
	}
	return nil
}

// layerInit returns the weight and bias initializers of a layer with
// fanIn inputs
type layerInit func(fanIn int) (weights, bias G.InitWFn)

// weightInit returns the configured weight initializer, or FanInUniform
// if none is configured
func weightInit(init *initwfn.InitWFn, src rand.Source) G.InitWFn {
	if init == nil {
		return initwfn.FanInUniformConfig{}.Create(src)
	}
	return init.InitWFn(src)
}

// defaultLayerInit initializes both weights and biases uniformly in
// (-1/√fanIn, 1/√fanIn) unless a weight initializer is configured.
func defaultLayerInit(init *initwfn.InitWFn, seed uint64) layerInit {
	src := seedutils.NewSource(seed, seedutils.InitStream)
	weights := weightInit(init, src)

	return func(fanIn int) (G.InitWFn, G.InitWFn) {
		bound := initwfn.FanInBound(fanIn)
		bias := initwfn.UniformConfig{Low: -bound, High: bound}.Create(src)
		return weights, bias
	}
}

// constantBiasLayerInit initializes weights as defaultLayerInit does
// but sets every bias to BiasValue.
func constantBiasLayerInit(init *initwfn.InitWFn, seed uint64) layerInit {
	src := seedutils.NewSource(seed, seedutils.InitStream)
	weights := weightInit(init, src)
	bias := initwfn.ConstantConfig{Value: BiasValue}.Create(nil)

	return func(int) (G.InitWFn, G.InitWFn) {
		return weights, bias
	}
}

// zeroLayerInit initializes all parameters to zero. It is used when the
// parameters will be overwritten immediately, such as when cloning.
func zeroLayerInit(int) (G.InitWFn, G.InitWFn) {
	return G.Zeroes(), G.Zeroes()
}
