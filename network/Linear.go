package network

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Linear implements a fully connected layer of a feed forward neural
// network, computing act(x·W + b).
//
// Inputs are batches laid out as rows, so the weights are stored as an
// (in × out) matrix and the bias as a vector of length out.
type Linear struct {
	name    string
	in, out int
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// NewLinear adds a new Linear layer to the graph g. The weights and bias
// are created with the initializers weightInit and biasInit. If act is
// nil, the layer has no activation.
func NewLinear(g *G.ExprGraph, name string, in, out int, weightInit,
	biasInit G.InitWFn, act *Activation) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("newlinear: %v: dimensions must be positive "+
			"\n\thave(%v × %v)", name, in, out)
	}
	if act == nil {
		act = Identity()
	}

	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+"_W"),
		G.WithInit(weightInit),
	)
	bias := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(out),
		G.WithName(name+"_b"),
		G.WithInit(biasInit),
	)

	return &Linear{
		name:    name,
		in:      in,
		out:     out,
		weights: weights,
		bias:    bias,
		act:     act,
	}, nil
}

// fwd adds the forward pass of the Linear layer to the computational
// graph of x
func (l *Linear) fwd(x *G.Node) (*G.Node, error) {
	if !x.IsMatrix() {
		return nil, fmt.Errorf("fwd: %v: input must be a matrix but got "+
			"shape %v", l.name, x.Shape())
	}
	if features := x.Shape()[1]; features != l.in {
		return nil, newFeatureError(l.name, l.in, features)
	}

	x, err := G.Mul(x, l.weights)
	if err != nil {
		return nil, fmt.Errorf("fwd: %v: %w", l.name, err)
	}

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x, err = G.BroadcastAdd(x, l.bias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("fwd: %v: %w", l.name, err)
	}

	return l.act.fwd(x)
}

// Name returns the name of the layer
func (l *Linear) Name() string {
	return l.name
}

// In returns the number of input features of the layer
func (l *Linear) In() int {
	return l.in
}

// Out returns the number of outputs of the layer
func (l *Linear) Out() int {
	return l.out
}

// Weights returns the node holding the (in × out) weight matrix
func (l *Linear) Weights() *G.Node {
	return l.weights
}

// Bias returns the node holding the bias vector
func (l *Linear) Bias() *G.Node {
	return l.bias
}

// Activation returns the activation of the layer
func (l *Linear) Activation() *Activation {
	return l.act
}

// BiasValues returns a copy of the current bias of the layer
func (l *Linear) BiasValues() []float64 {
	return append([]float64(nil), valuesOf(l.bias)...)
}

// WeightValues returns a copy of the current weights of the layer in
// row-major (in × out) order
func (l *Linear) WeightValues() []float64 {
	return append([]float64(nil), valuesOf(l.weights)...)
}

// HiddenInit returns the symmetric range (-1/√n, 1/√n) for uniformly
// initializing the weights of layer l, where n is the length of the
// layer's bias.
func HiddenInit(l *Linear) (low, high float64) {
	fanIn := l.bias.Shape()[0]
	lim := 1.0 / math.Sqrt(float64(fanIn))
	return -lim, lim
}
