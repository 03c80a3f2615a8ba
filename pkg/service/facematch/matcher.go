package facematch

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the acceptance distance for the dlib 128-dim face
// descriptor space. Probes farther than this from every enrolled encoding
// stay Unknown.
const DefaultThreshold = 0.6

// Matcher resolves a probe encoding to an enrolled person. Implementations
// may scan exhaustively or use an approximate index; the pipeline does not
// care which.
type Matcher interface {
	Match(ctx context.Context, probe types.Encoding) (model.MatchResult, error)
}

// Linear matches by exhaustive scan over the gallery snapshot. It is the
// default: exact, and fast enough for galleries up to a few thousand
// encodings.
type Linear struct {
	gallery   *Gallery
	threshold float64
}

var _ Matcher = &Linear{}

// NewLinear creates a Linear matcher. A threshold of 0 or below falls back
// to DefaultThreshold.
func NewLinear(gallery *Gallery, threshold float64) *Linear {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Linear{
		gallery:   gallery,
		threshold: threshold,
	}
}

// Match returns the enrolled person whose closest sample is nearest to the
// probe, provided that distance is within the threshold. The per-person
// score is the minimum over that person's samples; ties between people
// resolve to the lexicographically smaller PersonID regardless of
// registration order. An empty gallery yields Unknown at +Inf without error.
func (x *Linear) Match(ctx context.Context, probe types.Encoding) (model.MatchResult, error) {
	if err := probe.Validate(); err != nil {
		return model.MatchResult{}, goerr.Wrap(model.ErrInvalidEncoding, err.Error())
	}

	snap := x.gallery.load()
	if snap.live == 0 {
		return model.UnknownMatch(), nil
	}
	if probe.Dim() != snap.dim {
		return model.MatchResult{}, goerr.Wrap(model.ErrDimensionMismatch, "probe does not match gallery dimension",
			goerr.V("gallery_dim", snap.dim),
			goerr.V("probe_dim", probe.Dim()),
		)
	}

	best := bestOf(snap.entries, probe)
	return best.result(x.threshold), nil
}

// candidate accumulates the running best match during a scan.
type candidate struct {
	personID model.PersonID
	distance float64
	found    bool
}

// consider folds one (person, distance) observation into the candidate,
// applying the deterministic tie-break.
func (c *candidate) consider(personID model.PersonID, distance float64) {
	switch {
	case !c.found, distance < c.distance:
		c.personID, c.distance, c.found = personID, distance, true
	case distance == c.distance && personID < c.personID:
		c.personID = personID
	}
}

func (c *candidate) result(threshold float64) model.MatchResult {
	if !c.found {
		return model.UnknownMatch()
	}
	if c.distance > threshold {
		return model.UnknownMatchAt(c.distance)
	}
	return model.MatchResult{
		PersonID: c.personID,
		Distance: c.distance,
		Known:    true,
	}
}

func bestOf(entries []galleryEntry, probe types.Encoding) candidate {
	var best candidate
	for _, e := range entries {
		if e.dead {
			continue
		}
		best.consider(e.personID, floats.Distance(probe, e.encoding, 2))
	}
	return best
}
