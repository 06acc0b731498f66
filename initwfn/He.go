package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// heStdDev returns gain·√(1 / fanIn) for a tensor of shape s. Weights
// are laid out (fanIn × fanOut), so the fan in of a matrix is its first
// dimension; higher rank tensors use the product of all but the first.
// Vectors use their only dimension.
func heStdDev(gain float64, s []int) float64 {
	fanIn := 1
	switch len(s) {
	case 0:
		panic("initwfn: he initialization needs at least one dimension")
	case 1, 2:
		fanIn = s[0]
	default:
		for _, v := range s[1:] {
			fanIn *= v
		}
	}
	return gain * math.Sqrt(1.0/float64(fanIn))
}

// HeUConfig implements a configuration of the He uniform
// initialization algorithm: weights are drawn from U(-a, a) with
// a = gain·√(3 / fanIn).
type HeUConfig struct {
	Gain float64
}

// NewHeU returns a new He uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	return newInitWFn(HeUConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeUConfig) Type() Type {
	return HeU
}

// Validate implements the Config interface
func (h HeUConfig) Validate() error {
	if h.Gain <= 0 {
		return fmt.Errorf("gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn drawing from src
func (h HeUConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		bound := math.Sqrt(3.0) * heStdDev(h.Gain, s)
		dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
		return fill(dt, s, dist.Rand)
	}
}

// HeNConfig implements a configuration of the He normal
// initialization algorithm: weights are drawn from N(0, σ²) with
// σ = gain·√(1 / fanIn).
type HeNConfig struct {
	Gain float64
}

// NewHeN returns a new He normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	return newInitWFn(HeNConfig{Gain: gain})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeNConfig) Type() Type {
	return HeN
}

// Validate implements the Config interface
func (h HeNConfig) Validate() error {
	if h.Gain <= 0 {
		return fmt.Errorf("gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn drawing from src
func (h HeNConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		dist := distuv.Normal{Mu: 0, Sigma: heStdDev(h.Gain, s), Src: src}
		return fill(dt, s, dist.Rand)
	}
}
