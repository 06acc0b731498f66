package initwfn

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

func TestUnmarshalJSON(t *testing.T) {
	var init InitWFn
	data := []byte(`{"Type": "TruncatedNormal", "Config": {"Mean": 1, "StdDev": 0.5}}`)
	require.NoError(t, json.Unmarshal(data, &init))

	assert.Equal(t, TruncatedNormal, init.Type)
	assert.Equal(t, TruncatedNormalConfig{Mean: 1, StdDev: 0.5}, init.Config)

	// Parameterless configs may omit their Config field
	require.NoError(t, json.Unmarshal([]byte(`{"Type": "FanInUniform"}`), &init))
	assert.Equal(t, FanInUniformConfig{}, init.Config)
}

func TestUnmarshalJSONErrors(t *testing.T) {
	var init InitWFn
	assert.Error(t, json.Unmarshal([]byte(`{"Type": "Bogus"}`), &init))
	assert.Error(t, json.Unmarshal([]byte(`{"Config": {}}`), &init))
	assert.Error(t, json.Unmarshal(
		[]byte(`{"Type": "Uniform", "Config": {"Low": 1, "High": 0}}`), &init))
}

func TestMarshalJSON(t *testing.T) {
	init, err := NewConstant(0.03)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	var decoded InitWFn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, init.Type, decoded.Type)
	assert.Equal(t, init.Config, decoded.Config)
}

func TestFanInUniform(t *testing.T) {
	init, err := NewFanInUniform()
	require.NoError(t, err)

	values := init.InitWFn(rand.NewSource(7))(tensor.Float64, 16, 4)
	data := values.([]float64)
	require.Len(t, data, 64)

	bound := FanInBound(16)
	assert.Equal(t, 0.25, bound)
	for _, v := range data {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
}

// seededInits returns one initializer of every Type
func seededInits(t *testing.T) map[Type]*InitWFn {
	t.Helper()
	inits := make(map[Type]*InitWFn)
	add := func(init *InitWFn, err error) {
		require.NoError(t, err)
		inits[init.Type] = init
	}

	add(NewGlorotU(1))
	add(NewGlorotN(1))
	add(NewHeU(math.Sqrt2))
	add(NewHeN(math.Sqrt2))
	add(NewZeroes())
	add(NewOnes())
	add(NewConstant(0.5))
	add(NewUniform(-1, 1))
	add(NewGaussian(0, 1))
	add(NewFanInUniform())
	add(NewTruncatedNormal(0, 1))
	require.Len(t, inits, len(configTypes))
	return inits
}

func TestSeededInitIsReproducible(t *testing.T) {
	for typ, init := range seededInits(t) {
		t.Run(string(typ), func(t *testing.T) {
			a := init.InitWFn(rand.NewSource(42))(tensor.Float64, 6, 5)
			b := init.InitWFn(rand.NewSource(42))(tensor.Float64, 6, 5)
			assert.Equal(t, a, b)

			f := init.InitWFn(rand.NewSource(42))(tensor.Float32, 6, 5)
			assert.Len(t, f.([]float32), 30)
		})
	}
}

func TestGlorotAndHeScale(t *testing.T) {
	const fanIn, fanOut = 40, 60

	tests := []struct {
		typ   Type
		bound float64
	}{
		{GlorotU, math.Sqrt(6.0 / (fanIn + fanOut))},
		{HeU, math.Sqrt2 * math.Sqrt(3.0/fanIn)},
	}

	inits := seededInits(t)
	for _, test := range tests {
		values := inits[test.typ].InitWFn(rand.NewSource(3))(tensor.Float64,
			fanIn, fanOut).([]float64)
		for _, v := range values {
			assert.LessOrEqual(t, math.Abs(v), test.bound, string(test.typ))
		}
	}

	normal := inits[GlorotN].InitWFn(rand.NewSource(3))(tensor.Float64,
		fanIn, fanOut).([]float64)
	assert.InDelta(t, math.Sqrt(2.0/(fanIn+fanOut)), stat.StdDev(normal, nil),
		0.01)
}

func TestConstant(t *testing.T) {
	init, err := NewConstant(0.03)
	require.NoError(t, err)

	values := init.InitWFn(nil)(tensor.Float64, 8)
	for _, v := range values.([]float64) {
		assert.Equal(t, 0.03, v)
	}
}

func TestValidate(t *testing.T) {
	_, err := NewGaussian(0, -1)
	assert.Error(t, err)

	_, err = NewGlorotU(0)
	assert.Error(t, err)

	_, err = NewUniform(-1, 1)
	assert.NoError(t, err)
}
