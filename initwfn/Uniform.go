package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// UniformConfig implements a configuration of a weight initializer that
// draws weights from a uniform distribution
type UniformConfig struct {
	Low, High float64
}

// NewUniform returns a new uniform weight initializer
func NewUniform(low, high float64) (*InitWFn, error) {
	return newInitWFn(UniformConfig{Low: low, High: high})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (u UniformConfig) Type() Type {
	return Uniform
}

// Validate implements the Config interface
func (u UniformConfig) Validate() error {
	if u.Low >= u.High {
		return fmt.Errorf("low (%v) must be smaller than high (%v)", u.Low,
			u.High)
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (u UniformConfig) Create(src rand.Source) G.InitWFn {
	dist := distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	return func(dt tensor.Dtype, s ...int) interface{} {
		return fill(dt, s, dist.Rand)
	}
}

// FanInUniformConfig implements a configuration of the default
// initializer of linear layers: each weight is drawn uniformly from
// (-1/√fanIn, 1/√fanIn), where fanIn is the number of inputs to the
// layer.
//
// Weights are laid out as (fanIn × fanOut), so the first dimension of
// the initialized shape is taken to be the fan in. One-dimensional
// shapes use their only dimension.
type FanInUniformConfig struct{}

// NewFanInUniform returns a new fan-in uniform weight initializer
func NewFanInUniform() (*InitWFn, error) {
	return newInitWFn(FanInUniformConfig{})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (f FanInUniformConfig) Type() Type {
	return FanInUniform
}

// Validate implements the Config interface
func (f FanInUniformConfig) Validate() error {
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (f FanInUniformConfig) Create(src rand.Source) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		if len(s) == 0 || s[0] <= 0 {
			panic(fmt.Sprintf("faninuniform: cannot compute fan in of "+
				"shape %v", s))
		}
		bound := FanInBound(s[0])
		dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
		return fill(dt, s, dist.Rand)
	}
}

// FanInBound returns the bound 1/√fanIn of the symmetric uniform range
// used to initialize layers with fanIn inputs.
func FanInBound(fanIn int) float64 {
	return 1.0 / math.Sqrt(float64(fanIn))
}
