package facematch

import (
	"context"
	"sync"

	"github.com/coder/hnsw"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gonum.org/v1/gonum/floats"
)

// DefaultCandidates is how many approximate neighbors the HNSW matcher
// fetches before the exact re-rank.
const DefaultCandidates = 16

// HNSW matches through a hierarchical navigable small world graph. Probes
// cost O(log n) graph hops instead of a full scan, at the price of
// approximate recall. Candidates returned by the graph are re-ranked with
// exact float64 distances, so threshold and tie-break behavior follow the
// Linear matcher.
//
// Gallery entry positions are stable (removal tombstones in place instead
// of compacting), so the graph is synced incrementally: each Match indexes
// whatever registrations happened since the last one. Entries tombstoned
// after indexing stay in the graph and are dropped at re-rank.
type HNSW struct {
	gallery    *Gallery
	threshold  float64
	candidates int

	mu      sync.RWMutex
	graph   *hnsw.Graph[int]
	indexed int
}

var _ Matcher = &HNSW{}

// HNSWOption adjusts the HNSW matcher.
type HNSWOption func(*HNSW)

// WithCandidates sets how many approximate neighbors are fetched per probe.
// Larger values trade speed for recall.
func WithCandidates(n int) HNSWOption {
	return func(x *HNSW) {
		if n > 0 {
			x.candidates = n
		}
	}
}

// NewHNSW creates an HNSW matcher over the gallery. A threshold of 0 or
// below falls back to DefaultThreshold.
func NewHNSW(gallery *Gallery, threshold float64, options ...HNSWOption) *HNSW {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.EuclideanDistance

	x := &HNSW{
		gallery:    gallery,
		threshold:  threshold,
		candidates: DefaultCandidates,
		graph:      graph,
	}
	for _, opt := range options {
		opt(x)
	}
	return x
}

// Match searches the graph for the nearest enrolled encodings and re-ranks
// them exactly. Semantics mirror Linear.Match except that recall is
// approximate: a neighbor missed by the graph cannot win.
func (x *HNSW) Match(ctx context.Context, probe types.Encoding) (model.MatchResult, error) {
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

	x.sync(snap)

	k := x.candidates
	if k > len(snap.entries) {
		k = len(snap.entries)
	}

	x.mu.RLock()
	neighbors := x.graph.Search(probe.Float32(), k)
	x.mu.RUnlock()

	// Graph distances are float32 approximations; recompute exactly so the
	// accept decision and tie-break match the Linear matcher.
	var best candidate
	for _, n := range neighbors {
		if n.Key >= len(snap.entries) {
			// Indexed from a newer snapshot than this probe observes.
			continue
		}
		e := snap.entries[n.Key]
		if e.dead {
			continue
		}
		best.consider(e.personID, floats.Distance(probe, e.encoding, 2))
	}

	return best.result(x.threshold), nil
}

// sync indexes gallery entries registered since the last probe. Node keys
// are entry positions, which stay stable across removals. Entries that died
// before ever being indexed are skipped outright.
func (x *HNSW) sync(snap *gallerySnapshot) {
	x.mu.RLock()
	indexed := x.indexed
	x.mu.RUnlock()
	if indexed >= len(snap.entries) {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i := x.indexed; i < len(snap.entries); i++ {
		if snap.entries[i].dead {
			continue
		}
		x.graph.Add(hnsw.MakeNode(i, snap.entries[i].encoding.Float32()))
	}
	x.indexed = len(snap.entries)
}
