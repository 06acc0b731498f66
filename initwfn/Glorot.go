package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// glorotStdDev returns gain·√(2 / (fanIn + fanOut)) for a tensor of
// shape s. Vectors are treated as (1 × n) and trailing dimensions beyond
// the second multiply both fans.
func glorotStdDev(gain float64, s []int) float64 {
	var fanIn, fanOut int
	receptive := 1
	switch len(s) {
	case 0:
		panic("initwfn: glorot initialization needs at least one dimension")
	case 1:
		fanIn, fanOut = 1, s[0]
	default:
		fanIn, fanOut = s[0], s[1]
		for _, v := range s[2:] {
			receptive *= v
		}
	}
	return gain * math.Sqrt(2.0/float64((fanIn+fanOut)*receptive))
}

// GlorotUConfig implements a configuration of the Glorot uniform
// initialization algorithm: weights are drawn from U(-a, a) with
// a = gain·√(6 / (fanIn + fanOut)).
type GlorotUConfig struct {
	Gain float64
}

// NewGlorotU returns a new Glorot uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Validate implements the Config interface
func (g GlorotUConfig) Validate() error {
	if g.Gain <= 0 {
		return fmt.Errorf("gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn drawing from src
func (g GlorotUConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		bound := math.Sqrt(3.0) * glorotStdDev(g.Gain, s)
		dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
		return fill(dt, s, dist.Rand)
	}
}

// GlorotNConfig implements a configuration of the Glorot normal
// initialization algorithm: weights are drawn from N(0, σ²) with
// σ = gain·√(2 / (fanIn + fanOut)).
type GlorotNConfig struct {
	Gain float64
}

// NewGlorotN returns a new Glorot normal weight initializer.
func NewGlorotN(gain float64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Validate implements the Config interface
func (g GlorotNConfig) Validate() error {
	if g.Gain <= 0 {
		return fmt.Errorf("gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn drawing from src
func (g GlorotNConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		dist := distuv.Normal{Mu: 0, Sigma: glorotStdDev(g.Gain, s), Src: src}
		return fill(dt, s, dist.Rand)
	}
}
