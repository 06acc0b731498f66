package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestCritic(t *testing.T, seed uint64) *Critic {
	t.Helper()
	c := DefaultCriticConfig(3, 2)
	c.FCS1Units, c.FC2Units = 16, 8
	c.Seed = seed

	net, err := NewCritic(c)
	require.NoError(t, err)
	t.Cleanup(func() { net.Close() })
	return net
}

func TestCriticForward(t *testing.T) {
	net := newTestCritic(t, 1)
	states, actions := randomStates(2, 6, 3), randomStates(3, 6, 2)

	values, err := net.Forward(states, actions)
	require.NoError(t, err)

	rows, cols := values.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 1, cols)

	for i := 0; i < rows; i++ {
		single, err := net.Forward(
			mat.NewDense(1, 3, states.RawRowView(i)),
			mat.NewDense(1, 2, actions.RawRowView(i)),
		)
		require.NoError(t, err)
		assert.InDelta(t, single.At(0, 0), values.At(i, 0), 1e-12)
	}
}

func TestCriticInitialization(t *testing.T) {
	net := newTestCritic(t, 1)

	require.Len(t, net.Layers(), 4)
	for _, l := range net.Layers() {
		for _, b := range l.BiasValues() {
			assert.Equal(t, BiasValue, b, l.Name())
		}
	}
}

func TestCriticLearnables(t *testing.T) {
	net := newTestCritic(t, 1)

	learnables := net.Learnables()
	require.Len(t, learnables, 6)
	for _, n := range learnables {
		assert.NotContains(t, n.Name(), "fca2")
	}
	assert.Len(t, net.parameters(), 8)

	assertGradients(t, newTestCritic(t, 2))
}

func TestCriticShapeErrors(t *testing.T) {
	net := newTestCritic(t, 1)

	_, err := net.Forward(randomStates(1, 4, 3), randomStates(2, 3, 2))
	requireShapeError(t, err, "concat", BatchDim)

	_, err = net.Forward(randomStates(1, 4, 2), randomStates(2, 4, 2))
	requireShapeError(t, err, "fcs1", FeatureDim)

	_, err = net.Forward(randomStates(1, 4, 3), randomStates(2, 4, 3))
	requireShapeError(t, err, "concat", FeatureDim)

	_, err = net.Forward(nil, nil)
	requireShapeError(t, err, "state", BatchDim)
}

func TestCriticSetIncludesUnusedLayer(t *testing.T) {
	net := newTestCritic(t, 1)
	target := newTestCritic(t, 2)

	require.NoError(t, target.Set(net))
	assertParamsEqual(t, net.parameters(), target.parameters())

	require.NoError(t, target.Polyak(newTestCritic(t, 3), 0))
	assertParamsEqual(t, net.parameters(), target.parameters())
}

func TestCriticGob(t *testing.T) {
	net := newTestCritic(t, 1)

	decoded := &Critic{}
	gobRoundTrip(t, net, decoded)
	defer decoded.Close()

	assertParamsEqual(t, net.parameters(), decoded.parameters())

	states, actions := randomStates(2, 3, 3), randomStates(3, 3, 2)
	want, err := net.Forward(states, actions)
	require.NoError(t, err)
	have, err := decoded.Forward(states, actions)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, have, 1e-12))
}

func TestCriticParallelForward(t *testing.T) {
	c := DefaultCriticConfig(3, 2)
	c.FCS1Units, c.FC2Units = 16, 8
	c.BatchSize = 4
	net, err := NewCritic(c)
	require.NoError(t, err)
	defer net.Close()

	actions := map[int]*mat.Dense{4: randomStates(9, 4, 2), 3: randomStates(10, 3, 2)}
	batches := []*mat.Dense{
		randomStates(1, 4, 3),
		randomStates(2, 4, 3),
		randomStates(3, 3, 3),
	}
	assertParallelForward(t, batches, func(states *mat.Dense) (*mat.Dense, error) {
		rows, _ := states.Dims()
		return net.Forward(states, actions[rows])
	})
}
