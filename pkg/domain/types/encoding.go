package types

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Encoding is a face encoding vector produced by an external encoder model.
// The engine treats it as an opaque point in Euclidean space; it never
// inspects or recomputes the underlying features.
type Encoding []float64

// Dim returns the dimensionality of the encoding.
func (x Encoding) Dim() int {
	return len(x)
}

// Clone returns an independent copy of the encoding.
func (x Encoding) Clone() Encoding {
	if x == nil {
		return nil
	}
	dup := make(Encoding, len(x))
	copy(dup, x)
	return dup
}

// Validate checks that the encoding is non-empty and contains only finite
// values. NaN or Inf components would poison every distance computed
// against the gallery.
func (x Encoding) Validate() error {
	if len(x) == 0 {
		return goerr.New("encoding must not be empty")
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return goerr.New("encoding contains non-finite value",
				goerr.V("index", i), goerr.V("value", v))
		}
	}
	return nil
}

// Float32 converts the encoding for storage and index layers that operate
// on float32 vectors (Firestore vector fields, HNSW graphs).
func (x Encoding) Float32() []float32 {
	if x == nil {
		return nil
	}
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

// EncodingFromFloat32 converts a stored float32 vector back to an Encoding.
func EncodingFromFloat32(v []float32) Encoding {
	if v == nil {
		return nil
	}
	out := make(Encoding, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
