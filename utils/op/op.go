// Package op provides extended Gorgonia graph operations.
package op

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// LogSumExp calculates the log of the summation of exponentials of
// all logits along the given axis.
//
// The maximum logit is subtracted before exponentiating so that large
// logits do not overflow.
func LogSumExp(logits *G.Node, along int) (*G.Node, error) {
	max, err := G.Max(logits, along)
	if err != nil {
		return nil, fmt.Errorf("logsumexp: %w", err)
	}

	exponent, err := G.BroadcastSub(logits, max, nil, []byte{byte(along)})
	if err != nil {
		return nil, fmt.Errorf("logsumexp: %w", err)
	}
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Add(max, log)
}

// LogSoftmax normalizes a matrix of logits into log probabilities along
// the last axis, such that exponentiating each row gives a probability
// distribution.
func LogSoftmax(logits *G.Node) (*G.Node, error) {
	if !logits.IsMatrix() {
		return nil, fmt.Errorf("logsoftmax: logits must be a matrix but "+
			"got shape %v", logits.Shape())
	}

	lse, err := LogSumExp(logits, 1)
	if err != nil {
		return nil, fmt.Errorf("logsoftmax: %w", err)
	}

	return G.BroadcastSub(logits, lse, nil, []byte{1})
}

// Scale multiplies each element of x by the constant c
func Scale(x *G.Node, c float64) (*G.Node, error) {
	scale := G.NewConstant(c, G.WithName(fmt.Sprintf("scale_%v", c)))
	return G.HadamardProd(x, scale)
}
