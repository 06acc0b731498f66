package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Critic implements an action-value network mapping state-action pairs
// to scalar value estimates:
//
//	State ─→ fcs1 ─╮
//	               ├─→ Concat ─→ fc2 ─→ ReLU ─→ fc3 ─→ Value
//	Action ────────╯
//
// The state layer fcs1 has no activation.
//
// The Critic also owns an action layer fca2 (ActionSize → FC2Units).
// It is initialized like every other layer and is saved with the
// network, but it is not part of the forward pass and so is not
// included in Learnables().
type Critic struct {
	config CriticConfig
	g      *G.ExprGraph
	state  *G.Node
	action *G.Node

	fcs1, fca2, fc2, fc3 *Linear

	value    *G.Node
	valueVal G.Value

	*machine
	clones map[int]*Critic
}

// NewCritic creates and returns a new Critic on a new computational
// graph. All biases, including that of fca2, are initialized to
// BiasValue.
func NewCritic(c CriticConfig) (*Critic, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newcritic: %w", err)
	}

	net, err := newCritic(c, constantBiasLayerInit(c.InitWFn, c.Seed))
	if err != nil {
		return nil, fmt.Errorf("newcritic: %w", err)
	}

	log.Debug().
		Str("network", "critic").
		Int("state_size", c.StateSize).
		Int("action_size", c.ActionSize).
		Int("fcs1_units", c.FCS1Units).
		Int("fc2_units", c.FC2Units).
		Int("batch", c.BatchSize).
		Uint64("seed", c.Seed).
		Msg("constructed network")

	return net, nil
}

func newCritic(c CriticConfig, init layerInit) (*Critic, error) {
	g := G.NewGraph()

	state := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.StateSize),
		G.WithName("state"),
		G.WithInit(G.Zeroes()),
	)
	action := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.ActionSize),
		G.WithName("action"),
		G.WithInit(G.Zeroes()),
	)

	w, b := init(c.StateSize)
	fcs1, err := NewLinear(g, "fcs1", c.StateSize, c.FCS1Units, w, b, nil)
	if err != nil {
		return nil, err
	}

	w, b = init(c.ActionSize)
	fca2, err := NewLinear(g, "fca2", c.ActionSize, c.FC2Units, w, b, nil)
	if err != nil {
		return nil, err
	}

	concat := c.FCS1Units + c.ActionSize
	w, b = init(concat)
	fc2, err := NewLinear(g, "fc2", concat, c.FC2Units, w, b, ReLU())
	if err != nil {
		return nil, err
	}

	w, b = init(c.FC2Units)
	fc3, err := NewLinear(g, "fc3", c.FC2Units, 1, w, b, nil)
	if err != nil {
		return nil, err
	}

	net := &Critic{
		config:  c,
		g:       g,
		state:   state,
		action:  action,
		fcs1:    fcs1,
		fca2:    fca2,
		fc2:     fc2,
		fc3:     fc3,
		machine: newMachine(),
		clones:  make(map[int]*Critic),
	}

	if _, err := net.fwd(state, action); err != nil {
		return nil, fmt.Errorf("could not compute forward pass: %w", err)
	}

	return net, nil
}

// fwd adds the forward pass of the Critic to its graph
func (c *Critic) fwd(state, action *G.Node) (*G.Node, error) {
	s, err := c.fcs1.fwd(state)
	if err != nil {
		return nil, err
	}

	if s.Shape()[0] != action.Shape()[0] {
		return nil, newBatchError("concat", s.Shape()[0], action.Shape()[0])
	}
	x, err := G.Concat(1, s, action)
	if err != nil {
		return nil, fmt.Errorf("fwd: concat: %w", err)
	}

	if x, err = c.fc2.fwd(x); err != nil {
		return nil, err
	}
	if c.value, err = c.fc3.fwd(x); err != nil {
		return nil, err
	}

	G.Read(c.value, &c.valueVal)
	return c.value, nil
}

// Forward returns the value of each state-action pair. States and
// actions are stored as rows of states and actions respectively, and
// both must have the same number of rows. Any positive number of pairs
// may be given. The returned matrix has a single column.
// Forward may be called from multiple goroutines; calls are serialized.
func (c *Critic) Forward(states, actions *mat.Dense) (*mat.Dense, error) {
	rows, stateCols := dims(states)
	actionRows, actionCols := dims(actions)
	if rows == 0 {
		return nil, newBatchError("state", 1, 0)
	}
	if stateCols != c.config.StateSize {
		return nil, newFeatureError(c.fcs1.Name(), c.config.StateSize,
			stateCols)
	}
	if actionRows != rows {
		return nil, newBatchError("concat", rows, actionRows)
	}
	if actionCols != c.config.ActionSize {
		return nil, newFeatureError("concat", c.config.ActionSize,
			actionCols)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	net, err := c.forBatch(rows)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	if err := net.SetInput(flatten(states), flatten(actions)); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	var out *mat.Dense
	err = net.run(net.g, func() error {
		out, err = toDense(net.valueVal, rows, 1)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return out, nil
}

// forBatch returns a network with the parameters of c for batches of
// the given size
func (c *Critic) forBatch(batch int) (*Critic, error) {
	if batch == c.BatchSize() {
		return c, nil
	}

	net, ok := c.clones[batch]
	if !ok {
		var err error
		if net, err = c.cloneWithBatch(batch); err != nil {
			return nil, err
		}
		c.clones[batch] = net

		log.Debug().
			Str("network", "critic").
			Int("batch", batch).
			Msg("created network for batch size")
	}

	if err := net.Set(c); err != nil {
		return nil, err
	}
	return net, nil
}

func (c *Critic) cloneWithBatch(batch int) (*Critic, error) {
	config := c.config
	config.BatchSize = batch
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}

	net, err := newCritic(config, zeroLayerInit)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return net, nil
}

// CloneWithBatch returns a copy of the Critic on a new computational
// graph with a new batch size
func (c *Critic) CloneWithBatch(batch int) (Module, error) {
	net, err := c.cloneWithBatch(batch)
	if err != nil {
		return nil, err
	}
	if err := net.Set(c); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return net, nil
}

// Clone returns a copy of the Critic on a new computational graph
func (c *Critic) Clone() (Module, error) {
	return c.CloneWithBatch(c.BatchSize())
}

// SetInput sets the values of the state and action input nodes before
// running the graph. Both are given in row-major order.
func (c *Critic) SetInput(states, actions []float64) error {
	if err := letInput(c.state, states); err != nil {
		return fmt.Errorf("setinput: state: %w", err)
	}
	if err := letInput(c.action, actions); err != nil {
		return fmt.Errorf("setinput: action: %w", err)
	}
	return nil
}

// Config returns the configuration of the network
func (c *Critic) Config() CriticConfig {
	return c.config
}

// Graph returns the computational graph of the network
func (c *Critic) Graph() *G.ExprGraph {
	return c.g
}

// BatchSize returns the batch size of inputs to the network
func (c *Critic) BatchSize() int {
	return c.config.BatchSize
}

// Features returns the number of features in a single state
func (c *Critic) Features() int {
	return c.config.StateSize
}

// Outputs returns the number of outputs per state-action pair, which
// is always 1
func (c *Critic) Outputs() int {
	return 1
}

// Layers returns all linear layers owned by the network: fcs1, fca2,
// fc2, and fc3
func (c *Critic) Layers() []*Linear {
	return []*Linear{c.fcs1, c.fca2, c.fc2, c.fc3}
}

// StateInput returns the state input node of the network
func (c *Critic) StateInput() *G.Node {
	return c.state
}

// ActionInput returns the action input node of the network
func (c *Critic) ActionInput() *G.Node {
	return c.action
}

// Prediction returns the node holding the predicted values
func (c *Critic) Prediction() *G.Node {
	return c.value
}

// Output returns the values computed on the last run of the graph
func (c *Critic) Output() G.Value {
	return c.valueVal
}

// Learnables returns the learnable nodes on the forward path of the
// network. The unused fca2 layer is excluded.
func (c *Critic) Learnables() G.Nodes {
	return layerParams([]*Linear{c.fcs1, c.fc2, c.fc3})
}

// parameters returns all parameters owned by the network, including
// those of fca2
func (c *Critic) parameters() G.Nodes {
	return layerParams(c.Layers())
}

// Model returns the learnable nodes with their gradients
func (c *Critic) Model() []G.ValueGrad {
	return G.NodesToValueGrads(c.Learnables())
}

// Set sets the parameters of the network, including fca2, to be equal
// to those of another Critic
func (c *Critic) Set(source Module) error {
	src, ok := source.(*Critic)
	if !ok {
		return fmt.Errorf("set: cannot set Critic from %T", source)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return setParams(c.parameters(), src.parameters())
}

// Polyak sets the parameters of the network, including fca2, to be a
// polyak average between its existing parameters and those of another
// Critic
func (c *Critic) Polyak(source Module, tau float64) error {
	src, ok := source.(*Critic)
	if !ok {
		return fmt.Errorf("polyak: cannot average Critic with %T", source)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return polyakParams(c.parameters(), src.parameters(), tau)
}

// Close releases the VMs used by Forward
func (c *Critic) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, net := range c.clones {
		if err := net.close(); err != nil {
			return err
		}
	}
	return c.close()
}

// GobEncode implements the gob.GobEncoder interface
func (c *Critic) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	config := c.config
	err := encodeFields(enc, []field{
		{"state size", config.StateSize},
		{"action size", config.ActionSize},
		{"fcs1 units", config.FCS1Units},
		{"fc2 units", config.FC2Units},
		{"batch size", config.BatchSize},
		{"seed", config.Seed},
		{"parameters", parameterValues(c.parameters())},
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: %v", err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (c *Critic) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var config CriticConfig
	var params [][]float64
	err := decodeFields(dec, []field{
		{"state size", &config.StateSize},
		{"action size", &config.ActionSize},
		{"fcs1 units", &config.FCS1Units},
		{"fc2 units", &config.FC2Units},
		{"batch size", &config.BatchSize},
		{"seed", &config.Seed},
		{"parameters", &params},
	})
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	net, err := newCritic(config, zeroLayerInit)
	if err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	if err := setParameterValues(net.parameters(), params); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	*c = *net
	return nil
}
