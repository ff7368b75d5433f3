package queueing

import (
	"log"
)

// A Ring is a circular log of sized entries with independent read and write
// pointers. The write pointer advances as entries are archived. The read
// pointer advances only when the caller releases entries.
type Ring[T Sized] struct {
	name   string
	slots  []Slot[T]
	used   []bool
	readP  int
	writeP int
}

// NewRing creates a ring with the given number of slots.
func NewRing[T Sized](name string, size int) *Ring[T] {
	if size <= 0 {
		log.Panicf("ring %s must have a positive size", name)
	}

	return &Ring[T]{
		name:  name,
		slots: make([]Slot[T], size),
		used:  make([]bool, size),
	}
}

// Name returns the name of the ring.
func (r *Ring[T]) Name() string {
	return r.name
}

// Capacity returns the number of slots.
func (r *Ring[T]) Capacity() int {
	return len(r.slots)
}

// Size returns the number of occupied slots.
func (r *Ring[T]) Size() int {
	return r.distance(r.readP, r.writeP)
}

// ReadPointer returns the oldest unreleased slot.
func (r *Ring[T]) ReadPointer() int {
	return r.readP
}

// WritePointer returns the slot the next entry is archived at.
func (r *Ring[T]) WritePointer() int {
	return r.writeP
}

// Empty tells if every archived entry has been released.
func (r *Ring[T]) Empty() bool {
	return r.readP == r.writeP
}

func (r *Ring[T]) distance(from, to int) int {
	return (to - from + len(r.slots)) % len(r.slots)
}

// HasSpace tells if an entry of n slots can be archived. The write pointer
// never catches up with the read pointer, so a full ring is never confused
// with an empty one.
func (r *Ring[T]) HasSpace(n int) bool {
	if r.writeP >= r.readP {
		return r.writeP+n-r.readP < len(r.slots)
	}

	return r.readP-(r.writeP+n) > 0
}

// Archive stores the entry at the write pointer and returns the pointer
// value after the entry. Overwriting an occupied slot panics.
func (r *Ring[T]) Archive(item T) int {
	run := expand(item)

	for i := range run {
		pos := (r.writeP + i) % len(r.slots)
		if r.used[pos] {
			log.Panicf("ring %s: slot %d is still occupied", r.name, pos)
		}

		r.slots[pos] = run[i]
		r.used[pos] = true
	}

	r.writeP = (r.writeP + len(run)) % len(r.slots)

	return r.writeP
}

// Release frees the slots from the read pointer up to, but not including,
// the given pointer. Pointers outside the archived range are stale and
// ignored. It returns the number of freed slots.
func (r *Ring[T]) Release(to int) int {
	if to < 0 || to >= len(r.slots) {
		log.Panicf("ring %s: pointer %d out of range", r.name, to)
	}

	n := r.distance(r.readP, to)
	if n == 0 || n > r.Size() {
		return 0
	}

	for i := 0; i < n; i++ {
		pos := (r.readP + i) % len(r.slots)
		r.slots[pos] = Slot[T]{}
		r.used[pos] = false
	}

	r.readP = to

	return n
}

// Rewind takes every unreleased entry out of the ring in archive order and
// moves the write pointer back to the read pointer so that the entries can
// be archived again.
func (r *Ring[T]) Rewind() []T {
	if r.Empty() {
		log.Panicf("ring %s: rewind with nothing archived", r.name)
	}

	if r.slots[r.readP].Tombstone {
		log.Panicf("ring %s: read pointer %d is a tombstone", r.name, r.readP)
	}

	out := []T{}

	for pos := r.readP; pos != r.writeP; pos = (pos + 1) % len(r.slots) {
		if !r.slots[pos].Tombstone {
			out = append(out, r.slots[pos].Item)
		}

		r.slots[pos] = Slot[T]{}
		r.used[pos] = false
	}

	r.writeP = r.readP

	return out
}
