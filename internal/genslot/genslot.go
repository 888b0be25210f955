// Package genslot implements the generation-counter-gated publish pattern
// used by the album-art and lyrics fetchers: a fetch thread writes its
// result into a temporary slot, then publishes it only if the request's
// generation tag still matches the current global generation. A publish
// with a stale generation is a forbidden no-op.
package genslot

import "sync/atomic"

// Slot holds a generation-tagged value of type T, published atomically.
// The zero value is ready to use.
type Slot[T any] struct {
	generation atomic.Uint64
	value      atomic.Pointer[T]
}

// NextGeneration increments and returns the new current generation. Callers
// invoke this once per new logical request (e.g. a new `(artist, title)`
// pair) before starting the fetch goroutine, and pass the returned value
// along as the request's generation tag.
func (s *Slot[T]) NextGeneration() uint64 {
	return s.generation.Add(1)
}

// CurrentGeneration returns the generation most recently started by
// NextGeneration.
func (s *Slot[T]) CurrentGeneration() uint64 {
	return s.generation.Load()
}

// Publish stores value if and only if generation still equals the current
// generation, returning whether the publish took effect. A fetch thread
// whose generation has been superseded by a newer request gets false and
// must discard its result without touching the slot.
func (s *Slot[T]) Publish(generation uint64, value *T) bool {
	if s.generation.Load() != generation {
		return false
	}

	s.value.Store(value)

	return true
}

// Load returns the most recently published value, or nil if none has been
// published yet.
func (s *Slot[T]) Load() *T {
	return s.value.Load()
}
