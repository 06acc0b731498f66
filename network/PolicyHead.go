package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samuelfneumann/playround/utils/op"
	"github.com/samuelfneumann/playround/utils/seedutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// PolicyHead implements a classification network mapping states to a
// probability distribution over a discrete set of actions:
//
//	Input ─→ fc1 ─→ Dropout ─→ ReLU ─→ fc2 ─→ Dropout ─→ ReLU ─→ fc3
//	      ─→ LogSoftmax ─→ exp ─→ Probabilities
//
// Dropout is active only in Train mode. In Train mode the dropout masks
// must be resampled with SampleMasks() before each run of the graph;
// Forward() does this automatically.
//
// Each row of the output is a probability distribution: its entries are
// non-negative and sum to 1.
type PolicyHead struct {
	config PolicyHeadConfig
	g      *G.ExprGraph
	input  *G.Node

	fc1, fc2, fc3 *Linear
	drop1, drop2  *dropout
	mode          Mode

	logits   *G.Node
	logProbs *G.Node
	probs    *G.Node
	probsVal G.Value

	*machine
	clones map[int]*PolicyHead // Networks for other batch sizes
}

// NewPolicyHead creates and returns a new PolicyHead on a new
// computational graph. The network starts in Train mode.
//
// Weights are initialized with the configured initializer, or
// uniformly in (-1/√fanIn, 1/√fanIn) if none is configured. Biases are
// always initialized uniformly in (-1/√fanIn, 1/√fanIn).
func NewPolicyHead(c PolicyHeadConfig) (*PolicyHead, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newpolicyhead: %w", err)
	}

	init := defaultLayerInit(c.InitWFn, c.Seed)
	dropSrc := seedutils.NewSource(c.Seed, seedutils.DropoutStream)
	net, err := newPolicyHead(c, init, dropSrc)
	if err != nil {
		return nil, fmt.Errorf("newpolicyhead: %w", err)
	}

	log.Debug().
		Str("network", "policyhead").
		Int("state_dim", c.StateDim).
		Int("action_num", c.ActionNum).
		Int("hidden_dim", c.HiddenDim).
		Int("batch", c.BatchSize).
		Uint64("seed", c.Seed).
		Msg("constructed network")

	return net, nil
}

// newPolicyHead builds a PolicyHead, initializing its layers with init
// and drawing dropout masks from dropSrc
func newPolicyHead(c PolicyHeadConfig, init layerInit,
	dropSrc rand.Source) (*PolicyHead, error) {
	g := G.NewGraph()

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.StateDim),
		G.WithName("state"),
		G.WithInit(G.Zeroes()),
	)

	w, b := init(c.StateDim)
	fc1, err := NewLinear(g, "fc1", c.StateDim, c.HiddenDim, w, b, nil)
	if err != nil {
		return nil, err
	}

	w, b = init(c.HiddenDim)
	fc2, err := NewLinear(g, "fc2", c.HiddenDim, c.HiddenDim, w, b, nil)
	if err != nil {
		return nil, err
	}

	w, b = init(c.HiddenDim)
	fc3, err := NewLinear(g, "fc3", c.HiddenDim, c.ActionNum, w, b, nil)
	if err != nil {
		return nil, err
	}

	// Both masks draw from the same source so that masks are
	// reproducible given the seed
	drop1 := newDropout(g, "dropout1", c.BatchSize, c.HiddenDim,
		c.DropoutRate, dropSrc)
	drop2 := newDropout(g, "dropout2", c.BatchSize, c.HiddenDim,
		c.DropoutRate, dropSrc)

	net := &PolicyHead{
		config:  c,
		g:       g,
		input:   input,
		fc1:     fc1,
		fc2:     fc2,
		fc3:     fc3,
		drop1:   drop1,
		drop2:   drop2,
		mode:    Train,
		machine: newMachine(),
		clones:  make(map[int]*PolicyHead),
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("could not compute forward pass: %w", err)
	}

	return net, nil
}

// fwd adds the forward pass of the PolicyHead to its graph
func (p *PolicyHead) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error

	hidden := []struct {
		layer *Linear
		drop  *dropout
	}{{p.fc1, p.drop1}, {p.fc2, p.drop2}}

	for _, h := range hidden {
		if pred, err = h.layer.fwd(pred); err != nil {
			return nil, err
		}
		if pred, err = h.drop.fwd(pred); err != nil {
			return nil, err
		}
		if pred, err = G.Rectify(pred); err != nil {
			return nil, fmt.Errorf("fwd: %v: %w", h.layer.Name(), err)
		}
	}

	if p.logits, err = p.fc3.fwd(pred); err != nil {
		return nil, err
	}

	if p.logProbs, err = op.LogSoftmax(p.logits); err != nil {
		return nil, fmt.Errorf("fwd: %w", err)
	}

	if p.probs, err = G.Exp(p.logProbs); err != nil {
		return nil, fmt.Errorf("fwd: %w", err)
	}

	G.Read(p.probs, &p.probsVal)
	return p.probs, nil
}

// Forward returns the action probabilities of each state, which are
// stored as rows of states. Any positive number of states may be given.
// Forward may be called from multiple goroutines; calls are serialized.
//
// In Train mode, new dropout masks are drawn on each call.
func (p *PolicyHead) Forward(states *mat.Dense) (*mat.Dense, error) {
	rows, cols := dims(states)
	if rows == 0 {
		return nil, newBatchError("state", 1, 0)
	}
	if cols != p.config.StateDim {
		return nil, newFeatureError(p.fc1.Name(), p.config.StateDim, cols)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	net, err := p.forBatch(rows)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	if err := net.SetInput(flatten(states)); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	if err := net.SampleMasks(); err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}

	var out *mat.Dense
	err = net.run(net.g, func() error {
		out, err = toDense(net.probsVal, rows, p.config.ActionNum)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	return out, nil
}

// forBatch returns a network with the parameters of p for batches of
// the given size
func (p *PolicyHead) forBatch(batch int) (*PolicyHead, error) {
	if batch == p.BatchSize() {
		return p, nil
	}

	net, ok := p.clones[batch]
	if !ok {
		var err error
		if net, err = p.cloneWithBatch(batch); err != nil {
			return nil, err
		}
		p.clones[batch] = net

		log.Debug().
			Str("network", "policyhead").
			Int("batch", batch).
			Msg("created network for batch size")
	}

	if err := net.Set(p); err != nil {
		return nil, err
	}
	net.mode = p.mode
	return net, nil
}

// cloneWithBatch returns a PolicyHead with the architecture of p and
// zeroed parameters
func (p *PolicyHead) cloneWithBatch(batch int) (*PolicyHead, error) {
	c := p.config
	c.BatchSize = batch
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}

	dropSrc := seedutils.NewSource(c.Seed+uint64(batch),
		seedutils.DropoutStream)
	net, err := newPolicyHead(c, zeroLayerInit, dropSrc)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	net.mode = p.mode
	return net, nil
}

// CloneWithBatch returns a copy of the PolicyHead on a new
// computational graph with a new batch size
func (p *PolicyHead) CloneWithBatch(batch int) (Module, error) {
	net, err := p.cloneWithBatch(batch)
	if err != nil {
		return nil, err
	}
	if err := net.Set(p); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %w", err)
	}
	return net, nil
}

// Clone returns a copy of the PolicyHead on a new computational graph
func (p *PolicyHead) Clone() (Module, error) {
	return p.CloneWithBatch(p.BatchSize())
}

// SetInput sets the value of the input node before running the graph.
// The states are given in row-major order.
func (p *PolicyHead) SetInput(states []float64) error {
	if err := letInput(p.input, states); err != nil {
		return fmt.Errorf("setinput: %w", err)
	}
	return nil
}

// SampleMasks draws new dropout masks for the current mode. It must be
// called before each run of the graph in Train mode.
func (p *PolicyHead) SampleMasks() error {
	for _, d := range []*dropout{p.drop1, p.drop2} {
		if err := d.sample(p.mode); err != nil {
			return fmt.Errorf("samplemasks: %w", err)
		}
	}
	return nil
}

// SetMode sets the mode of the network and redraws the dropout masks
// accordingly
func (p *PolicyHead) SetMode(m Mode) error {
	if m != Train && m != Eval {
		return fmt.Errorf("setmode: invalid mode %v", m)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m

	log.Debug().
		Str("network", "policyhead").
		Stringer("mode", m).
		Msg("set mode")

	return p.SampleMasks()
}

// Mode returns the mode of the network
func (p *PolicyHead) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Config returns the configuration of the network
func (p *PolicyHead) Config() PolicyHeadConfig {
	return p.config
}

// Graph returns the computational graph of the network
func (p *PolicyHead) Graph() *G.ExprGraph {
	return p.g
}

// BatchSize returns the batch size of inputs to the network
func (p *PolicyHead) BatchSize() int {
	return p.config.BatchSize
}

// Features returns the number of features in a single state
func (p *PolicyHead) Features() int {
	return p.config.StateDim
}

// Outputs returns the number of actions
func (p *PolicyHead) Outputs() int {
	return p.config.ActionNum
}

// Layers returns the linear layers of the network in forward order
func (p *PolicyHead) Layers() []*Linear {
	return []*Linear{p.fc1, p.fc2, p.fc3}
}

// Input returns the input node of the network
func (p *PolicyHead) Input() *G.Node {
	return p.input
}

// Prediction returns the node holding the action probabilities
func (p *PolicyHead) Prediction() *G.Node {
	return p.probs
}

// LogProb returns the node holding the log probability of each action
func (p *PolicyHead) LogProb() *G.Node {
	return p.logProbs
}

// Logits returns the node holding the unnormalized action scores
func (p *PolicyHead) Logits() *G.Node {
	return p.logits
}

// Output returns the action probabilities computed on the last run of
// the graph
func (p *PolicyHead) Output() G.Value {
	return p.probsVal
}

// Learnables returns the learnable nodes of the network
func (p *PolicyHead) Learnables() G.Nodes {
	return layerParams(p.Layers())
}

// Model returns the learnable nodes with their gradients
func (p *PolicyHead) Model() []G.ValueGrad {
	return G.NodesToValueGrads(p.Learnables())
}

// Set sets the weights of the network to be equal to the weights of
// another PolicyHead
func (p *PolicyHead) Set(source Module) error {
	src, ok := source.(*PolicyHead)
	if !ok {
		return fmt.Errorf("set: cannot set PolicyHead from %T", source)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return setParams(p.Learnables(), src.Learnables())
}

// Polyak sets the weights of the network to be a polyak average
// between its existing weights and the weights of another PolicyHead
func (p *PolicyHead) Polyak(source Module, tau float64) error {
	src, ok := source.(*PolicyHead)
	if !ok {
		return fmt.Errorf("polyak: cannot average PolicyHead with %T",
			source)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return polyakParams(p.Learnables(), src.Learnables(), tau)
}

// Close releases the VMs used by Forward
func (p *PolicyHead) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, net := range p.clones {
		if err := net.close(); err != nil {
			return err
		}
	}
	return p.close()
}

// GobEncode implements the gob.GobEncoder interface
func (p *PolicyHead) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	c := p.config
	err := encodeFields(enc, []field{
		{"state dimension", c.StateDim},
		{"number of actions", c.ActionNum},
		{"hidden dimension", c.HiddenDim},
		{"dropout rate", c.DropoutRate},
		{"batch size", c.BatchSize},
		{"seed", c.Seed},
		{"mode", p.mode},
		{"parameters", parameterValues(p.Learnables())},
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: %v", err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (p *PolicyHead) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var c PolicyHeadConfig
	var mode Mode
	var params [][]float64
	err := decodeFields(dec, []field{
		{"state dimension", &c.StateDim},
		{"number of actions", &c.ActionNum},
		{"hidden dimension", &c.HiddenDim},
		{"dropout rate", &c.DropoutRate},
		{"batch size", &c.BatchSize},
		{"seed", &c.Seed},
		{"mode", &mode},
		{"parameters", &params},
	})
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	net, err := newPolicyHead(c, zeroLayerInit,
		seedutils.NewSource(c.Seed, seedutils.DropoutStream))
	if err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	if err := setParameterValues(net.Learnables(), params); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}
	net.mode = mode

	*p = *net
	return nil
}
