package network

import (
	"fmt"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// dropout implements inverted dropout through a mask input node. The
// mask is resampled by the owning network before each forward pass: in
// Train mode each unit is zeroed with probability rate and survivors
// are scaled by 1 / (1 - rate); in Eval mode the mask is all ones.
//
// Drawing the mask outside the graph, rather than with a random node,
// lets dropout be seeded per network.
type dropout struct {
	name  string
	rate  float64
	mask  *G.Node
	shape tensor.Shape
	rng   *rand.Rand
}

// newDropout adds a dropout mask of shape (batch × units) to g
func newDropout(g *G.ExprGraph, name string, batch, units int,
	rate float64, src rand.Source) *dropout {
	mask := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, units),
		G.WithName(name),
		G.WithInit(G.Ones()),
	)

	return &dropout{
		name:  name,
		rate:  rate,
		mask:  mask,
		shape: tensor.Shape{batch, units},
		rng:   rand.New(src),
	}
}

// fwd adds the dropout to the computational graph of x
func (d *dropout) fwd(x *G.Node) (*G.Node, error) {
	if !x.Shape().Eq(d.shape) {
		return nil, fmt.Errorf("fwd: %v: input shape %v does not match "+
			"mask shape %v", d.name, x.Shape(), d.shape)
	}
	return G.HadamardProd(x, d.mask)
}

// sample draws a new mask for the given mode
func (d *dropout) sample(mode Mode) error {
	backing := make([]float64, d.shape.TotalSize())

	if mode == Eval || d.rate == 0 {
		for i := range backing {
			backing[i] = 1.0
		}
	} else {
		scale := 1.0 / (1.0 - d.rate)
		for i := range backing {
			if d.rng.Float64() >= d.rate {
				backing[i] = scale
			}
		}
	}

	maskTensor := tensor.New(
		tensor.WithShape(d.shape...),
		tensor.WithBacking(backing),
	)
	return G.Let(d.mask, maskTensor)
}
