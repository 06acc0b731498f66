package initwfn

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// truncBound is the bound, in standard deviations, outside of which
	// samples are rejected
	truncBound = 2.0

	// candidates is the number of standard normal samples drawn per
	// element at a time
	candidates = 4
)

// TruncatedNormalConfig implements a configuration of a weight
// initializer that draws weights from a normal distribution truncated to
// (Mean - 2*StdDev, Mean + 2*StdDev).
type TruncatedNormalConfig struct {
	Mean, StdDev float64
}

// NewTruncatedNormal returns a new truncated normal weight initializer
func NewTruncatedNormal(mean, stddev float64) (*InitWFn, error) {
	return newInitWFn(TruncatedNormalConfig{Mean: mean, StdDev: stddev})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (t TruncatedNormalConfig) Type() Type {
	return TruncatedNormal
}

// Validate implements the Config interface
func (t TruncatedNormalConfig) Validate() error {
	if t.StdDev <= 0 {
		return fmt.Errorf("standard deviation must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (t TruncatedNormalConfig) Create(src rand.Source) G.InitWFn {
	sampler := newTruncatedSampler(t.Mean, t.StdDev, src)
	return func(dt tensor.Dtype, s ...int) interface{} {
		return fill(dt, s, sampler.draw)
	}
}

// TruncatedNormalFill fills t in place with samples from a normal
// distribution with mean mean and standard deviation std, truncated to
// (mean - 2*std, mean + 2*std). The tensor may have any shape. The
// filled tensor is returned for convenience.
//
// For each element, four standard normal candidates are drawn and the
// first that falls within (-2, 2) is kept. If none of the four does, a
// fresh set of four is drawn. The kept value is then scaled by std and
// shifted by mean.
func TruncatedNormalFill(t tensor.Tensor, mean, std float64,
	src rand.Source) (tensor.Tensor, error) {
	if std <= 0 {
		return nil, fmt.Errorf("truncatednormalfill: standard deviation " +
			"must be positive")
	}
	sampler := newTruncatedSampler(mean, std, src)

	switch data := t.Data().(type) {
	case []float64:
		for i := range data {
			data[i] = sampler.draw()
		}

	case []float32:
		for i := range data {
			data[i] = float32(sampler.draw())
		}

	default:
		return nil, fmt.Errorf("truncatednormalfill: dtype %v not "+
			"supported", t.Dtype())
	}

	return t, nil
}

// truncatedSampler draws from a truncated normal distribution
type truncatedSampler struct {
	mean, std float64
	normal    distuv.Normal
	batch     [candidates]float64
}

func newTruncatedSampler(mean, std float64,
	src rand.Source) *truncatedSampler {
	return &truncatedSampler{
		mean:   mean,
		std:    std,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// draw returns a single truncated sample
func (t *truncatedSampler) draw() float64 {
	for {
		for i := range t.batch {
			t.batch[i] = t.normal.Rand()
		}
		for _, v := range t.batch {
			if v > -truncBound && v < truncBound {
				return v*t.std + t.mean
			}
		}
	}
}
