// Package keylock serializes work per key with a fixed set of striped mutexes.
//
// Two keys may share a stripe, so holders of different keys can occasionally
// wait on each other, but the same key always maps to the same stripe.
package keylock

import (
	"context"

	"github.com/cespare/xxhash/v2"
)

const DefaultStripes = 256

// Striped hands out one lock per stripe. Locks are channels so that waiting honours ctx.
type Striped struct {
	stripes []chan struct{}
}

func New(stripes int) *Striped {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	s := &Striped{stripes: make([]chan struct{}, stripes)}
	for i := range s.stripes {
		s.stripes[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *Striped) stripe(key string) chan struct{} {
	return s.stripes[xxhash.Sum64String(key)%uint64(len(s.stripes))]
}

// Lock blocks until key's stripe is free or ctx is done.
// On success the returned func releases the stripe.
func (s *Striped) Lock(ctx context.Context, key string) (func(), error) {
	ch := s.stripe(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
