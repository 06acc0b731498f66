package network

import "fmt"

// Dimensions checked by ShapeError
const (
	FeatureDim = "features"
	BatchDim   = "batch"
)

// ShapeError is returned when a layer or concatenation receives an input
// whose dimension disagrees with what the layer expects.
type ShapeError struct {
	Layer string // Layer or operation that rejected the input
	Dim   string // FeatureDim or BatchDim
	Want  int
	Have  int
}

// Error implements the error interface
func (s *ShapeError) Error() string {
	return fmt.Sprintf("%v: shape mismatch on %v dimension\n\twant(%v)"+
		"\n\thave(%v)", s.Layer, s.Dim, s.Want, s.Have)
}

func newFeatureError(layer string, want, have int) *ShapeError {
	return &ShapeError{Layer: layer, Dim: FeatureDim, Want: want, Have: have}
}

func newBatchError(layer string, want, have int) *ShapeError {
	return &ShapeError{Layer: layer, Dim: BatchDim, Want: want, Have: have}
}
