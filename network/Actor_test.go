package network

import (
	"math"
	"testing"

	"github.com/samuelfneumann/playround/initwfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestActor(t *testing.T, seed uint64) *Actor {
	t.Helper()
	c := DefaultActorConfig(3, 2)
	c.FC1Units, c.FC2Units = 16, 8
	c.Seed = seed

	net, err := NewActor(c)
	require.NoError(t, err)
	t.Cleanup(func() { net.Close() })
	return net
}

func TestActorBounded(t *testing.T) {
	net := newTestActor(t, 1)

	states := randomStates(2, 32, 3)
	states.Scale(100, states)

	actions, err := net.Forward(states)
	require.NoError(t, err)

	rows, cols := actions.Dims()
	require.Equal(t, 32, rows)
	require.Equal(t, 2, cols)
	for _, a := range actions.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(a), ActionBound)
	}
}

func TestActorInitialization(t *testing.T) {
	net := newTestActor(t, 1)

	for _, l := range net.Layers() {
		for _, b := range l.BiasValues() {
			assert.Equal(t, BiasValue, b, l.Name())
		}
		bound := initwfn.FanInBound(l.In())
		for _, w := range l.WeightValues() {
			assert.LessOrEqual(t, math.Abs(w), bound, l.Name())
		}
	}
}

func TestActorCustomInit(t *testing.T) {
	init, err := initwfn.NewTruncatedNormal(0, 0.1)
	require.NoError(t, err)

	c := DefaultActorConfig(3, 2)
	c.InitWFn = init
	net, err := NewActor(c)
	require.NoError(t, err)
	defer net.Close()

	for _, l := range net.Layers() {
		for _, w := range l.WeightValues() {
			assert.LessOrEqual(t, math.Abs(w), 0.2, l.Name())
		}
		for _, b := range l.BiasValues() {
			assert.Equal(t, BiasValue, b, l.Name())
		}
	}
}

func TestActorSeededInitReproducible(t *testing.T) {
	inits := map[string]func() (*initwfn.InitWFn, error){
		"GlorotU": func() (*initwfn.InitWFn, error) { return initwfn.NewGlorotU(1) },
		"GlorotN": func() (*initwfn.InitWFn, error) { return initwfn.NewGlorotN(1) },
		"HeU":     func() (*initwfn.InitWFn, error) { return initwfn.NewHeU(1) },
		"HeN":     func() (*initwfn.InitWFn, error) { return initwfn.NewHeN(1) },
	}

	for name, newInit := range inits {
		t.Run(name, func(t *testing.T) {
			build := func() *Actor {
				init, err := newInit()
				require.NoError(t, err)

				c := DefaultActorConfig(3, 2)
				c.FC1Units, c.FC2Units = 16, 8
				c.InitWFn = init
				net, err := NewActor(c)
				require.NoError(t, err)
				t.Cleanup(func() { net.Close() })
				return net
			}

			assertParamsEqual(t, build().Learnables(), build().Learnables())
		})
	}
}

func TestActorBatchSizes(t *testing.T) {
	net := newTestActor(t, 1)
	states := randomStates(3, 4, 3)

	batch, err := net.Forward(states)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		single, err := net.Forward(mat.NewDense(1, 3, states.RawRowView(i)))
		require.NoError(t, err)
		assert.InDeltaSlice(t, single.RawRowView(0), batch.RawRowView(i),
			1e-12)
	}

	// Clones used for other batch sizes follow updates to the network
	target := newTestActor(t, 2)
	require.NoError(t, net.Set(target))
	want, err := target.Forward(states)
	require.NoError(t, err)
	have, err := net.Forward(states)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, have, 1e-12))
}

func TestActorShapeErrors(t *testing.T) {
	net := newTestActor(t, 1)

	_, err := net.Forward(randomStates(1, 2, 4))
	requireShapeError(t, err, "fc1", FeatureDim)

	_, err = net.Forward(nil)
	requireShapeError(t, err, "state", BatchDim)
}

func TestActorGradients(t *testing.T) {
	assertGradients(t, newTestActor(t, 1))
}

func TestActorGob(t *testing.T) {
	net := newTestActor(t, 1)

	decoded := &Actor{}
	gobRoundTrip(t, net, decoded)
	defer decoded.Close()

	assert.Equal(t, net.Config().FC1Units, decoded.Config().FC1Units)
	assertParamsEqual(t, net.Learnables(), decoded.Learnables())
}

func TestActorParallelForward(t *testing.T) {
	c := DefaultActorConfig(3, 2)
	c.FC1Units, c.FC2Units = 16, 8
	c.BatchSize = 4
	net, err := NewActor(c)
	require.NoError(t, err)
	defer net.Close()

	batches := []*mat.Dense{
		randomStates(1, 4, 3),
		randomStates(2, 4, 3),
		randomStates(3, 3, 3),
	}
	assertParallelForward(t, batches, net.Forward)
}
