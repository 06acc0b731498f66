// Package initwfn implements functionality to wrap Gorgonia InitWFn
// so that they can be JSON serialized into configuraiton files.
//
// Every random InitWFn draws from the rand.Source it is created with, so
// that weight initialization is reproducible per network.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU         Type = "GlorotU"
	GlorotN         Type = "GlorotN"
	HeU             Type = "HeU"
	HeN             Type = "HeN"
	Zeroes          Type = "Zeroes"
	Ones            Type = "Ones"
	Constant        Type = "Constant"
	Uniform         Type = "Uniform"
	Gaussian        Type = "Gaussian"
	FanInUniform    Type = "FanInUniform"
	TruncatedNormal Type = "TruncatedNormal"
)

// configTypes maps each Type to the concrete Config it unmarshals into
var configTypes = map[string]reflect.Type{
	string(GlorotU):         reflect.TypeOf(GlorotUConfig{}),
	string(GlorotN):         reflect.TypeOf(GlorotNConfig{}),
	string(HeU):             reflect.TypeOf(HeUConfig{}),
	string(HeN):             reflect.TypeOf(HeNConfig{}),
	string(Zeroes):          reflect.TypeOf(ZeroesConfig{}),
	string(Ones):            reflect.TypeOf(OnesConfig{}),
	string(Constant):        reflect.TypeOf(ConstantConfig{}),
	string(Uniform):         reflect.TypeOf(UniformConfig{}),
	string(Gaussian):        reflect.TypeOf(GaussianConfig{}),
	string(FanInUniform):    reflect.TypeOf(FanInUniformConfig{}),
	string(TruncatedNormal): reflect.TypeOf(TruncatedNormalConfig{}),
}

// InitWFn wraps Gorgonia InitWFn so that they can be JSON marshalled and
// unmarshalled.
type InitWFn struct {
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newinitwfn: %v: %w", c.Type(), err)
	}
	return &InitWFn{Type: c.Type(), Config: c}, nil
}

// InitWFn returns the wrapped Gorgonia InitWFn, drawing random values
// from src.
func (w *InitWFn) InitWFn(src rand.Source) G.InitWFn {
	return w.Config.Create(src)
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (i *InitWFn) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(data, "Type", "Config",
		configTypes)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("unmarshaljson: %v: %w", typeName, err)
	}

	i.Type = typeName
	i.Config = config

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJsonField].(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalconfig: missing field %q",
			typeJsonField)
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalconfig: unknown type %q",
			typeName)
	}
	value := reflect.New(ty).Interface().(Config)

	// Configs without parameters may omit the value field
	if raw, ok := m[valueJsonField]; ok && raw != nil {
		valueBytes, err := json.Marshal(raw)
		if err != nil {
			return nil, "", err
		}

		if err = json.Unmarshal(valueBytes, &value); err != nil {
			return nil, "", err
		}
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Config)

	return concreteValue, Type(typeName), nil
}

// Config implements a Gorgonia InitWFn configuration and can be used to
// create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes,
	// drawing any random values from src
	Create(src rand.Source) G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type

	// Validate returns an error if the configuration is invalid
	Validate() error
}

// fill returns a backing slice of dtype dt for a tensor of shape s,
// with each element drawn from draw.
func fill(dt tensor.Dtype, s []int, draw func() float64) interface{} {
	size := tensor.Shape(s).TotalSize()
	switch dt {
	case tensor.Float64:
		retVal := make([]float64, size)
		for i := range retVal {
			retVal[i] = draw()
		}
		return retVal

	case tensor.Float32:
		retVal := make([]float32, size)
		for i := range retVal {
			retVal[i] = float32(draw())
		}
		return retVal

	default:
		panic(fmt.Sprintf("initwfn: dtype %v not supported", dt))
	}
}
