package facematch

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
)

type galleryEntry struct {
	personID model.PersonID
	encoding types.Encoding
	dead     bool
}

// gallerySnapshot is immutable once published. Readers walk it without
// locks; writers build a fresh one under the gallery mutex. Removal marks
// entries dead in place instead of compacting the slice, so an entry's
// position identifies it for the lifetime of the gallery.
type gallerySnapshot struct {
	dim     int
	entries []galleryEntry
	live    int
	people  map[model.PersonID]struct{}
}

var emptySnapshot = &gallerySnapshot{people: map[model.PersonID]struct{}{}}

// Gallery holds the enrolled face encodings in memory. It is read-mostly:
// every probe walks the whole gallery, while registrations and removals
// happen only on enrollment changes. Writes copy the current snapshot and
// publish the copy, so readers never block and never observe a half-applied
// change.
type Gallery struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[gallerySnapshot]
}

// NewGallery returns an empty gallery. The encoding dimension is not fixed
// until the first successful Register.
func NewGallery() *Gallery {
	g := &Gallery{}
	g.snapshot.Store(emptySnapshot)
	return g
}

// Register adds a reference encoding for the given person. The first
// registration fixes the gallery dimension; later registrations of any
// other length fail with ErrInvalidEncoding. Registering an already known
// person appends another sample rather than replacing the existing ones.
func (x *Gallery) Register(personID model.PersonID, encoding types.Encoding) error {
	if err := personID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid person ID")
	}
	if err := encoding.Validate(); err != nil {
		return goerr.Wrap(model.ErrInvalidEncoding, err.Error(), goerr.V("person_id", personID))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snapshot.Load()
	if cur.dim != 0 && encoding.Dim() != cur.dim {
		return goerr.Wrap(model.ErrInvalidEncoding, "encoding dimension conflicts with gallery",
			goerr.V("person_id", personID),
			goerr.V("gallery_dim", cur.dim),
			goerr.V("encoding_dim", encoding.Dim()),
		)
	}

	next := &gallerySnapshot{
		dim:     encoding.Dim(),
		entries: make([]galleryEntry, len(cur.entries), len(cur.entries)+1),
		live:    cur.live + 1,
		people:  make(map[model.PersonID]struct{}, len(cur.people)+1),
	}
	copy(next.entries, cur.entries)
	next.entries = append(next.entries, galleryEntry{
		personID: personID,
		encoding: encoding.Clone(),
	})
	for id := range cur.people {
		next.people[id] = struct{}{}
	}
	next.people[personID] = struct{}{}

	x.snapshot.Store(next)
	return nil
}

// Remove withdraws every encoding registered for the given person and
// returns how many were withdrawn. Removal takes effect on the next probe;
// matchers already walking an older snapshot finish against it. The entries
// are tombstoned rather than compacted away, and the gallery dimension stays
// fixed even when the last live encoding is removed. Removing an unknown
// person is a no-op.
func (x *Gallery) Remove(personID model.PersonID) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snapshot.Load()
	if _, ok := cur.people[personID]; !ok {
		return 0
	}

	next := &gallerySnapshot{
		dim:     cur.dim,
		entries: make([]galleryEntry, len(cur.entries)),
		live:    cur.live,
		people:  make(map[model.PersonID]struct{}, len(cur.people)),
	}
	copy(next.entries, cur.entries)
	for id := range cur.people {
		if id != personID {
			next.people[id] = struct{}{}
		}
	}

	removed := 0
	for i := range next.entries {
		if next.entries[i].personID == personID && !next.entries[i].dead {
			next.entries[i].dead = true
			removed++
		}
	}
	next.live -= removed

	x.snapshot.Store(next)
	return removed
}

// Entries iterates over the live (person, encoding) pairs of the snapshot
// taken when Entries was called. The sequence is restartable: ranging over
// it twice walks the same snapshot, and registrations or removals made in
// between are not observed. Yielded encodings are shared with the snapshot
// and must not be modified.
func (x *Gallery) Entries() iter.Seq2[model.PersonID, types.Encoding] {
	snap := x.snapshot.Load()
	return func(yield func(model.PersonID, types.Encoding) bool) {
		for _, e := range snap.entries {
			if e.dead {
				continue
			}
			if !yield(e.personID, e.encoding) {
				return
			}
		}
	}
}

// Dim returns the fixed encoding dimension, or 0 while the gallery is empty.
func (x *Gallery) Dim() int {
	return x.snapshot.Load().dim
}

// Len returns the number of live registered encodings.
func (x *Gallery) Len() int {
	return x.snapshot.Load().live
}

// People returns the number of distinct enrolled people.
func (x *Gallery) People() int {
	return len(x.snapshot.Load().people)
}

// Hydrate loads every stored face sample into the gallery. Samples that no
// longer satisfy the registration rules are skipped with a warning; a
// corrupted sample must not keep the whole service down.
func (x *Gallery) Hydrate(ctx context.Context, repo interfaces.FaceRepository) error {
	samples, err := repo.ListAll(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load face samples")
	}

	logger := logging.From(ctx)
	for _, sample := range samples {
		if err := x.Register(sample.PersonID, sample.Encoding); err != nil {
			logger.Warn("skipping face sample on hydrate",
				"face_id", sample.ID,
				"person_id", sample.PersonID,
				"error", err,
			)
		}
	}

	logger.Info("gallery hydrated",
		"people", x.People(),
		"encodings", x.Len(),
		"dim", x.Dim(),
	)
	return nil
}

// load exposes the current snapshot to the matchers in this package.
func (x *Gallery) load() *gallerySnapshot {
	return x.snapshot.Load()
}
