package facematch

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
)

// AverageEncoding returns the element-wise mean of the given encodings.
// Several reference samples of the same person average into a more robust
// representative than any single one; enrollment statistics report the
// spread of a person's samples around it.
func AverageEncoding(encodings []types.Encoding) (types.Encoding, error) {
	if len(encodings) == 0 {
		return nil, goerr.New("no encodings to average")
	}

	dim := len(encodings[0])
	avg := make(types.Encoding, dim)
	for i, encoding := range encodings {
		if err := encoding.Validate(); err != nil {
			return nil, goerr.Wrap(model.ErrInvalidEncoding, err.Error(), goerr.V("index", i))
		}
		if len(encoding) != dim {
			return nil, goerr.Wrap(model.ErrDimensionMismatch, "encodings differ in dimension",
				goerr.V("index", i),
				goerr.V("want", dim),
				goerr.V("got", len(encoding)),
			)
		}
		floats.Add(avg, encoding)
	}

	floats.Scale(1/float64(len(encodings)), avg)
	return avg, nil
}
