// Package fallback holds the fixed set of placeholder images that are shown
// whenever a place photo cannot be resolved.
package fallback

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// ErrEmptyPool is returned when a Pool is created without any references.
var ErrEmptyPool = errors.New("fallback pool must contain at least one image")

// Pool is an immutable set of fallback image references. Enumeration order is
// the order given at construction; selection is uniformly random.
type Pool struct {
	refs []string
}

// Default is the pool of images bundled with the web front-end.
var Default = MustNew("/fallback-1.jpg", "/fallback-2.jpg", "/fallback-3.jpg")

// New creates a Pool from the given image references. Empty references and
// duplicates are dropped.
func New(refs ...string) (*Pool, error) {
	p := &Pool{
		refs: make([]string, 0, len(refs)),
	}
	for _, ref := range refs {
		if ref == "" || slices.Contains(p.refs, ref) {
			continue
		}
		p.refs = append(p.refs, ref)
	}
	if len(p.refs) == 0 {
		return nil, ErrEmptyPool
	}
	return p, nil
}

// MustNew is like New but panics on error. It is meant for package-level
// pools built from literals.
func MustNew(refs ...string) *Pool {
	p, err := New(refs...)
	if err != nil {
		panic(err)
	}
	return p
}

// Random returns a randomly chosen member of the pool.
func (p *Pool) Random() string {
	if len(p.refs) == 1 {
		return p.refs[0]
	}
	return p.refs[rand.IntN(len(p.refs))]
}

// All returns a copy of the pool members in construction order.
func (p *Pool) All() []string {
	return slices.Clone(p.refs)
}

// Contains reports whether ref is a member of the pool.
func (p *Pool) Contains(ref string) bool {
	return slices.Contains(p.refs, ref)
}

// Len returns the number of images in the pool.
func (p *Pool) Len() int {
	return len(p.refs)
}
