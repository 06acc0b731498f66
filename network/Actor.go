package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samuelfneumann/playround/utils/op"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ActionBound is the magnitude bounding each component of the actions
// predicted by an Actor
const ActionBound = 2.0

// Actor implements a deterministic policy network mapping states to
// continuous actions:
//
//	Input ─→ fc1 ─→ ReLU ─→ fc2 ─→ ReLU ─→ fc3 ─→ tanh ─→ ×2 ─→ Action
//
// Every component of a predicted action lies in [-2, 2].
type Actor struct {
	config ActorConfig
	g      *G.ExprGraph
	input  *G.Node

	fc1, fc2, fc3 *Linear

	actions    *G.Node
	actionsVal G.Value

	*machine
	clones map[int]*Actor
}

// NewActor creates and returns a new Actor on a new computational graph.
// All biases are initialized to BiasValue.
func NewActor(c ActorConfig) (*Actor, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newactor: %w", err)
	}

	net, err := newActor(c, constantBiasLayerInit(c.InitWFn, c.Seed))
	if err != nil {
		return nil, fmt.Errorf("newactor: %w", err)
	}

	log.Debug().
		Str("network", "actor").
		Int("state_dim", c.StateDim).
		Int("action_size", c.ActionSize).
		Int("fc1_units", c.FC1Units).
		Int("fc2_units", c.FC2Units).
		Int("batch", c.BatchSize).
		Uint64("seed", c.Seed).
		Msg("constructed network")

	return net, nil
}

func newActor(c ActorConfig, init layerInit) (*Actor, error) {
	g := G.NewGraph()

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.StateDim),
		G.WithName("state"),
		G.WithInit(G.Zeroes()),
	)

	w, b := init(c.StateDim)
	fc1, err := NewLinear(g, "fc1", c.StateDim, c.FC1Units, w, b, ReLU())
	if err != nil {
		return nil, err
	}

	w, b = init(c.FC1Units)
	fc2, err := NewLinear(g, "fc2", c.FC1Units, c.FC2Units, w, b, ReLU())
	if err != nil {
		return nil, err
	}

	w, b = init(c.FC2Units)
	fc3, err := NewLinear(g, "fc3", c.FC2Units, c.ActionSize, w, b, TanH())
	if err != nil {
		return nil, err
	}

	net := &Actor{
		config:  c,
		g:       g,
		input:   input,
		fc1:     fc1,
		fc2:     fc2,
		fc3:     fc3,
		machine: newMachine(),
		clones:  make(map[int]*Actor),
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("could not compute forward pass: %w", err)
	}

	return net, nil
}

// fwd adds the forward pass of the Actor to its graph
func (a *Actor) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for _, l := range a.Layers() {
		if pred, err = l.fwd(pred); err != nil {
			return nil, err
		}
	}

	if a.actions, err = op.Scale(pred, ActionBound); err != nil {
		return nil, fmt.Errorf("fwd: %w", err)
	}

	G.Read(a.actions, &a.actionsVal)
	return a.actions, nil
}

// Forward returns the action for each state, which are stored as rows
// of states. Any positive number of states may be given.
// Forward may be called from multiple goroutines; calls are serialized.
func (a *Actor) Forward(states *mat.Dense) (*mat.Dense, error) {
	rows, cols := dims(states)
	if rows == 0 {
		return nil, newBatchError("state", 1, 0)
	}
	if cols != a.config.StateDim {
		return nil, newFeatureError(a.fc1.Name(), a.config.StateDim, cols)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	net, err := a.forBatch(rows)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	if err := net.SetInput(flatten(states)); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	var out *mat.Dense
	err = net.run(net.g, func() error {
		out, err = toDense(net.actionsVal, rows, a.config.ActionSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return out, nil
}

// forBatch returns a network with the parameters of a for batches of
// the given size
func (a *Actor) forBatch(batch int) (*Actor, error) {
	if batch == a.BatchSize() {
		return a, nil
	}

	net, ok := a.clones[batch]
	if !ok {
		var err error
		if net, err = a.cloneWithBatch(batch); err != nil {
			return nil, err
		}
		a.clones[batch] = net

		log.Debug().
			Str("network", "actor").
			Int("batch", batch).
			Msg("created network for batch size")
	}

	if err := net.Set(a); err != nil {
		return nil, err
	}
	return net, nil
}

func (a *Actor) cloneWithBatch(batch int) (*Actor, error) {
	c := a.config
	c.BatchSize = batch
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}

	net, err := newActor(c, zeroLayerInit)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return net, nil
}

// CloneWithBatch returns a copy of the Actor on a new computational
// graph with a new batch size
func (a *Actor) CloneWithBatch(batch int) (Module, error) {
	net, err := a.cloneWithBatch(batch)
	if err != nil {
		return nil, err
	}
	if err := net.Set(a); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return net, nil
}

// Clone returns a copy of the Actor on a new computational graph
func (a *Actor) Clone() (Module, error) {
	return a.CloneWithBatch(a.BatchSize())
}

// SetInput sets the value of the input node before running the graph.
// The states are given in row-major order.
func (a *Actor) SetInput(states []float64) error {
	if err := letInput(a.input, states); err != nil {
		return fmt.Errorf("setinput: %w", err)
	}
	return nil
}

// Config returns the configuration of the network
func (a *Actor) Config() ActorConfig {
	return a.config
}

// Graph returns the computational graph of the network
func (a *Actor) Graph() *G.ExprGraph {
	return a.g
}

// BatchSize returns the batch size of inputs to the network
func (a *Actor) BatchSize() int {
	return a.config.BatchSize
}

// Features returns the number of features in a single state
func (a *Actor) Features() int {
	return a.config.StateDim
}

// Outputs returns the dimension of actions
func (a *Actor) Outputs() int {
	return a.config.ActionSize
}

// Layers returns the linear layers of the network in forward order
func (a *Actor) Layers() []*Linear {
	return []*Linear{a.fc1, a.fc2, a.fc3}
}

// Input returns the input node of the network
func (a *Actor) Input() *G.Node {
	return a.input
}

// Prediction returns the node holding the predicted actions
func (a *Actor) Prediction() *G.Node {
	return a.actions
}

// Output returns the actions computed on the last run of the graph
func (a *Actor) Output() G.Value {
	return a.actionsVal
}

// Learnables returns the learnable nodes of the network
func (a *Actor) Learnables() G.Nodes {
	return layerParams(a.Layers())
}

// Model returns the learnable nodes with their gradients
func (a *Actor) Model() []G.ValueGrad {
	return G.NodesToValueGrads(a.Learnables())
}

// Set sets the weights of the network to be equal to the weights of
// another Actor
func (a *Actor) Set(source Module) error {
	src, ok := source.(*Actor)
	if !ok {
		return fmt.Errorf("set: cannot set Actor from %T", source)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return setParams(a.Learnables(), src.Learnables())
}

// Polyak sets the weights of the network to be a polyak average
// between its existing weights and the weights of another Actor
func (a *Actor) Polyak(source Module, tau float64) error {
	src, ok := source.(*Actor)
	if !ok {
		return fmt.Errorf("polyak: cannot average Actor with %T", source)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return polyakParams(a.Learnables(), src.Learnables(), tau)
}

// Close releases the VMs used by Forward
func (a *Actor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, net := range a.clones {
		if err := net.close(); err != nil {
			return err
		}
	}
	return a.close()
}

// GobEncode implements the gob.GobEncoder interface
func (a *Actor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	c := a.config
	err := encodeFields(enc, []field{
		{"state dimension", c.StateDim},
		{"action size", c.ActionSize},
		{"fc1 units", c.FC1Units},
		{"fc2 units", c.FC2Units},
		{"batch size", c.BatchSize},
		{"seed", c.Seed},
		{"parameters", parameterValues(a.Learnables())},
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: %v", err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (a *Actor) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var c ActorConfig
	var params [][]float64
	err := decodeFields(dec, []field{
		{"state dimension", &c.StateDim},
		{"action size", &c.ActionSize},
		{"fc1 units", &c.FC1Units},
		{"fc2 units", &c.FC2Units},
		{"batch size", &c.BatchSize},
		{"seed", &c.Seed},
		{"parameters", &params},
	})
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	net, err := newActor(c, zeroLayerInit)
	if err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	if err := setParameterValues(net.Learnables(), params); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	*a = *net
	return nil
}
