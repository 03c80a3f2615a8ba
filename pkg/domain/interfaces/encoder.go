package interfaces

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// Encoder turns a captured image into face encodings. The engine treats the
// encoder as an external black box; the only implementation in this repo is
// an HTTP client for a remote encoder service. One image may contain any
// number of faces, so the result is a slice.
type Encoder interface {
	Encode(ctx context.Context, image []byte) ([]types.Encoding, error)
}
