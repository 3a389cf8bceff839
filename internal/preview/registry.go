// Package preview tracks ownership of page preview references.
//
// Every reference belongs to one owner (a capture session) and the session
// generation that created it. Releasing is explicit and can only happen once.
package preview

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownRef is returned when releasing a reference that is not live
var ErrUnknownRef = errors.New("unknown or already released preview reference")

// Ref identifies a preview held by a session
type Ref string

type entry struct {
	owner      string
	generation uint64
	data       []byte
}

// Registry is the explicit ownership map of live previews
type Registry struct {
	mu       sync.RWMutex
	refs     map[Ref]entry
	acquired int
	released int
}

func NewRegistry() *Registry {
	return &Registry{
		refs: make(map[Ref]entry),
	}
}

// Acquire registers a new preview for owner and returns its reference
func (r *Registry) Acquire(owner string, generation uint64, data []byte) Ref {
	ref := Ref(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[ref] = entry{owner: owner, generation: generation, data: data}
	r.acquired++
	return ref
}

// Open returns the preview bytes for a live reference
func (r *Registry) Open(ref Ref) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.refs[ref]
	return e.data, ok
}

// Owner reports who holds ref and in which generation
func (r *Registry) Owner(ref Ref) (string, uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.refs[ref]
	return e.owner, e.generation, ok
}

// Release drops a single reference
func (r *Registry) Release(ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref]; !ok {
		return ErrUnknownRef
	}
	delete(r.refs, ref)
	r.released++
	return nil
}

// ReleaseOwner drops every reference held by owner and returns how many were released
func (r *Registry) ReleaseOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for ref, e := range r.refs {
		if e.owner == owner {
			delete(r.refs, ref)
			n++
		}
	}
	r.released += n
	return n
}

// ReleaseGeneration drops the references owner acquired in one generation. Earlier
// generations and other owners are untouched.
func (r *Registry) ReleaseGeneration(owner string, generation uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for ref, e := range r.refs {
		if e.owner == owner && e.generation == generation {
			delete(r.refs, ref)
			n++
		}
	}
	r.released += n
	return n
}

// Live is the number of references not yet released
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.refs)
}

// LiveFor is the number of live references held by owner
func (r *Registry) LiveFor(owner string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.refs {
		if e.owner == owner {
			n++
		}
	}
	return n
}

// Acquired is the total number of references ever handed out
func (r *Registry) Acquired() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.acquired
}

// Released is the total number of successful releases
func (r *Registry) Released() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.released
}
