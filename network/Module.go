// Package network implements the neural network function approximators
// used by reinforcement learning agents: a PolicyHead producing a
// categorical distribution over discrete actions, an Actor producing
// bounded continuous actions, and a Critic estimating the value of
// state-action pairs.
//
// Each network populates its own Gorgonia computational graph with a
// fixed batch size. Training code can compute gradients of the
// network's Prediction() with respect to its Learnables() and step them
// with any Gorgonia solver. For inference, each network has a Forward
// method taking gonum matrices of any batch size.
package network

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Module is a neural network that owns learnable parameters in a
// computational graph and computes a prediction from them.
type Module interface {
	// Graph returns the computational graph of the network
	Graph() *G.ExprGraph

	// BatchSize returns the number of samples per forward pass
	BatchSize() int

	// Features returns the number of state features per sample
	Features() int

	// Outputs returns the number of outputs per sample
	Outputs() int

	// Learnables returns the parameters on the forward path of the
	// network
	Learnables() G.Nodes

	// Model returns the learnables with their gradients
	Model() []G.ValueGrad

	// Prediction returns the node holding the output of the network
	Prediction() *G.Node

	// Output returns the value of Prediction() after the graph was
	// last run
	Output() G.Value

	// Set sets the parameters of the network to those of another
	// network of the same architecture
	Set(Module) error

	// Polyak sets the parameters of the network to a polyak average
	// between its own and another network's parameters
	Polyak(Module, float64) error

	// CloneWithBatch returns a copy of the network on a new
	// computational graph with a new batch size
	CloneWithBatch(int) (Module, error)
}

// valuesOf returns the backing data of the value of a node
func valuesOf(n *G.Node) []float64 {
	return n.Value().Data().([]float64)
}

// setParams copies the values of src into dst in place. Copying in
// place keeps any values already bound to a VM valid.
func setParams(dst, src G.Nodes) error {
	if len(dst) != len(src) {
		return fmt.Errorf("set: invalid number of parameters\n\twant(%v)"+
			"\n\thave(%v)", len(dst), len(src))
	}

	for i := range dst {
		if !dst[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("set: parameter %v has invalid shape "+
				"\n\twant(%v)\n\thave(%v)", dst[i].Name(), dst[i].Shape(),
				src[i].Shape())
		}
		copy(valuesOf(dst[i]), valuesOf(src[i]))
	}
	return nil
}

// polyakParams sets dst ← (1 - τ) dst + τ src in place
func polyakParams(dst, src G.Nodes, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: τ must be in [0, 1]\n\thave(%v)", tau)
	}
	if len(dst) != len(src) {
		return fmt.Errorf("polyak: invalid number of parameters"+
			"\n\twant(%v)\n\thave(%v)", len(dst), len(src))
	}

	for i := range dst {
		if !dst[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("polyak: parameter %v has invalid shape "+
				"\n\twant(%v)\n\thave(%v)", dst[i].Name(), dst[i].Shape(),
				src[i].Shape())
		}
		weights, sourceWeights := valuesOf(dst[i]), valuesOf(src[i])
		for j := range weights {
			weights[j] = (1-tau)*weights[j] + tau*sourceWeights[j]
		}
	}
	return nil
}

// layerParams returns the weights and bias of each layer, in order
func layerParams(layers []*Linear) G.Nodes {
	params := make(G.Nodes, 0, 2*len(layers))
	for _, l := range layers {
		params = append(params, l.Weights(), l.Bias())
	}
	return params
}

// parameterValues returns copies of the values of nodes
func parameterValues(nodes G.Nodes) [][]float64 {
	values := make([][]float64, len(nodes))
	for i, n := range nodes {
		values[i] = append([]float64(nil), valuesOf(n)...)
	}
	return values
}

// setParameterValues copies values into nodes in place
func setParameterValues(nodes G.Nodes, values [][]float64) error {
	if len(nodes) != len(values) {
		return fmt.Errorf("invalid number of parameters\n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(values))
	}
	for i, n := range nodes {
		data := valuesOf(n)
		if len(data) != len(values[i]) {
			return fmt.Errorf("parameter %v has invalid size\n\twant(%v)"+
				"\n\thave(%v)", n.Name(), len(data), len(values[i]))
		}
		copy(data, values[i])
	}
	return nil
}

// letInput sets the value of the (batch × features) input node to the
// flat row-major input
func letInput(input *G.Node, values []float64) error {
	shape := input.Shape()
	if len(values) != shape.TotalSize() {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", shape.TotalSize(), len(values))
	}

	inputTensor := tensor.New(
		tensor.WithBacking(append([]float64(nil), values...)),
		tensor.WithShape(shape...),
	)
	return G.Let(input, inputTensor)
}

// flatten returns the row-major data of m
func flatten(m *mat.Dense) []float64 {
	return mat.DenseCopyOf(m).RawMatrix().Data
}

// dims returns the dimensions of m, treating nil as an empty batch
func dims(m *mat.Dense) (rows, cols int) {
	if m == nil || m.IsEmpty() {
		return 0, 0
	}
	return m.Dims()
}

// toDense copies the value of a (rows × cols) node into a new matrix
func toDense(v G.Value, rows, cols int) (*mat.Dense, error) {
	if v == nil {
		return nil, fmt.Errorf("todense: graph has not been run")
	}
	data, ok := v.Data().([]float64)
	if !ok || len(data) != rows*cols {
		return nil, fmt.Errorf("todense: unexpected output %v", v.Shape())
	}
	return mat.NewDense(rows, cols, append([]float64(nil), data...)), nil
}

// machine lazily compiles a graph into a VM and runs it. Its mutex
// serializes every use of the graph's input nodes, VM, and parameters
// by the owning network.
type machine struct {
	mu sync.Mutex
	vm G.VM
}

func newMachine() *machine {
	return &machine{}
}

// run runs the graph g once, calling read before the VM is reset so
// that read sees the values of the run. The caller must hold mu.
func (m *machine) run(g *G.ExprGraph, read func() error) error {
	if m.vm == nil {
		m.vm = G.NewTapeMachine(g)
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return read()
}

// close releases the VM. The caller must hold mu.
func (m *machine) close() error {
	if m.vm == nil {
		return nil
	}
	err := m.vm.Close()
	m.vm = nil
	return err
}
