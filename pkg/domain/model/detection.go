package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
)

// Detection is a single face sighting delivered by an external capture
// device: the encoding computed from the detected face plus the capture
// timestamp. The engine never sees the image itself.
type Detection struct {
	Encoding   types.Encoding
	CapturedAt time.Time
	Source     string // capture device identifier, e.g. "entrance-cam-1"
}

// Validate checks the required fields of the detection
func (x *Detection) Validate() error {
	if err := x.Encoding.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidEncoding, err.Error())
	}
	if x.CapturedAt.IsZero() {
		return goerr.New("detection capture timestamp is required")
	}
	return nil
}
