package network

import (
	"math"
	"testing"

	"github.com/samuelfneumann/playround/initwfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newTestPolicyHead(t *testing.T, seed uint64) *PolicyHead {
	t.Helper()
	c := DefaultPolicyHeadConfig(4, 3, 32)
	c.Seed = seed

	net, err := NewPolicyHead(c)
	require.NoError(t, err)
	t.Cleanup(func() { net.Close() })
	return net
}

func TestPolicyHeadProbabilities(t *testing.T) {
	net := newTestPolicyHead(t, 1)

	for _, mode := range []Mode{Train, Eval} {
		require.NoError(t, net.SetMode(mode))

		probs, err := net.Forward(randomStates(2, 16, 4))
		require.NoError(t, err)

		rows, cols := probs.Dims()
		require.Equal(t, 16, rows)
		require.Equal(t, 3, cols)

		for i := 0; i < rows; i++ {
			row := probs.RawRowView(i)
			assert.InDelta(t, 1.0, floats.Sum(row), 1e-5, "mode %v", mode)
			for _, p := range row {
				assert.GreaterOrEqual(t, p, 0.0)
			}
		}
	}
}

func TestPolicyHeadEvalDeterministic(t *testing.T) {
	net := newTestPolicyHead(t, 1)
	require.NoError(t, net.SetMode(Eval))
	states := randomStates(3, 8, 4)

	first, err := net.Forward(states)
	require.NoError(t, err)
	second, err := net.Forward(states)
	require.NoError(t, err)

	assert.True(t, mat.Equal(first, second))
}

func TestPolicyHeadTrainDropout(t *testing.T) {
	net := newTestPolicyHead(t, 1)
	require.Equal(t, Train, net.Mode())
	states := randomStates(3, 8, 4)

	first, err := net.Forward(states)
	require.NoError(t, err)
	second, err := net.Forward(states)
	require.NoError(t, err)
	assert.False(t, mat.Equal(first, second))

	// Networks with equal seeds draw equal masks
	other := newTestPolicyHead(t, 1)
	replay, err := other.Forward(states)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(first, replay, 1e-12))
}

func TestPolicyHeadBatchSizes(t *testing.T) {
	net := newTestPolicyHead(t, 5)
	require.NoError(t, net.SetMode(Eval))
	states := randomStates(6, 5, 4)

	batch, err := net.Forward(states)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		row := mat.NewDense(1, 4, states.RawRowView(i))
		single, err := net.Forward(row)
		require.NoError(t, err)
		assert.InDeltaSlice(t, single.RawRowView(0), batch.RawRowView(i),
			1e-12)
	}
}

func TestPolicyHeadShapeErrors(t *testing.T) {
	net := newTestPolicyHead(t, 1)

	_, err := net.Forward(randomStates(1, 2, 5))
	requireShapeError(t, err, "fc1", FeatureDim)

	_, err = net.Forward(nil)
	requireShapeError(t, err, "state", BatchDim)

	_, err = net.Forward(&mat.Dense{})
	requireShapeError(t, err, "state", BatchDim)
}

func TestPolicyHeadInitialization(t *testing.T) {
	net := newTestPolicyHead(t, 9)

	for _, l := range net.Layers() {
		bound := initwfn.FanInBound(l.In())
		for _, w := range l.WeightValues() {
			assert.LessOrEqual(t, math.Abs(w), bound, l.Name())
		}
		for _, b := range l.BiasValues() {
			assert.LessOrEqual(t, math.Abs(b), bound, l.Name())
		}
	}

	// Equal seeds give equal parameters
	other := newTestPolicyHead(t, 9)
	assertParamsEqual(t, net.Learnables(), other.Learnables())
}

func TestPolicyHeadSetAndPolyak(t *testing.T) {
	net := newTestPolicyHead(t, 1)
	target := newTestPolicyHead(t, 2)

	before := parameterValues(target.Learnables())
	require.NoError(t, target.Polyak(net, 0.25))
	for i, n := range target.Learnables() {
		source := valuesOf(net.Learnables()[i])
		for j, v := range valuesOf(n) {
			assert.InDelta(t, 0.75*before[i][j]+0.25*source[j], v, 1e-12)
		}
	}

	assert.Error(t, target.Polyak(net, 1.5))

	require.NoError(t, target.Set(net))
	assertParamsEqual(t, net.Learnables(), target.Learnables())

	actor, err := NewActor(DefaultActorConfig(4, 3))
	require.NoError(t, err)
	assert.Error(t, target.Set(actor))
}

func TestPolicyHeadCloneWithBatch(t *testing.T) {
	net := newTestPolicyHead(t, 1)

	clone, err := net.CloneWithBatch(7)
	require.NoError(t, err)
	assert.Equal(t, 7, clone.BatchSize())
	assert.Equal(t, 3, clone.Outputs())
	assertParamsEqual(t, net.Learnables(), clone.Learnables())
	assert.NotSame(t, net.Graph(), clone.Graph())
}

func TestPolicyHeadGob(t *testing.T) {
	net := newTestPolicyHead(t, 1)
	require.NoError(t, net.SetMode(Eval))

	decoded := &PolicyHead{}
	gobRoundTrip(t, net, decoded)
	defer decoded.Close()

	assert.Equal(t, Eval, decoded.Mode())
	assert.Equal(t, net.Config().StateDim, decoded.Config().StateDim)
	assertParamsEqual(t, net.Learnables(), decoded.Learnables())

	states := randomStates(4, 3, 4)
	want, err := net.Forward(states)
	require.NoError(t, err)
	have, err := decoded.Forward(states)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, have, 1e-12))
}

func TestPolicyHeadConfigValidate(t *testing.T) {
	c := DefaultPolicyHeadConfig(4, 3, 32)
	require.NoError(t, c.Validate())

	c.DropoutRate = 1
	assert.Error(t, c.Validate())

	c = DefaultPolicyHeadConfig(4, 0, 32)
	assert.Error(t, c.Validate())

	_, err := NewPolicyHead(c)
	assert.Error(t, err)
}

func TestPolicyHeadParallelForward(t *testing.T) {
	c := DefaultPolicyHeadConfig(4, 3, 16)
	c.BatchSize = 4
	net, err := NewPolicyHead(c)
	require.NoError(t, err)
	defer net.Close()
	require.NoError(t, net.SetMode(Eval))

	batches := []*mat.Dense{
		randomStates(1, 4, 4),
		randomStates(2, 4, 4),
		randomStates(3, 2, 4),
	}
	assertParallelForward(t, batches, net.Forward)
}

func BenchmarkPolicyHeadForward(b *testing.B) {
	c := DefaultPolicyHeadConfig(8, 4, DefaultHiddenUnits)
	c.BatchSize = 32
	net, err := NewPolicyHead(c)
	if err != nil {
		b.Fatal(err)
	}
	defer net.Close()
	states := randomStates(1, 32, 8)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := net.Forward(states); err != nil {
			b.Fatal(err)
		}
	}
}
