// Package queueing provides the bounded containers that simulator components
// pass packets through.
package queueing

import (
	"log"

	"github.com/sarchlab/hmcsim/sim/hooking"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// Sized is implemented by entries that may take up more than one slot.
type Sized interface {
	Slots() int
}

// A Slot is one position in a buffer. The continuation slots of a multi-slot
// entry are tombstones and never carry an item.
type Slot[T Sized] struct {
	Item      T
	Tombstone bool
}

// A Buffer is a FIFO whose entries occupy a contiguous run of slots. Entries
// can also be inserted and removed in the middle, which schedulers need when
// they look past the head of the queue.
type Buffer[T Sized] struct {
	hooking.HookableBase

	name     string
	capacity int
	slots    []Slot[T]
}

// NewBuffer creates a buffer. A capacity of 0 or less makes the buffer
// unbounded.
func NewBuffer[T Sized](name string, capacity int) *Buffer[T] {
	return &Buffer[T]{
		name:     name,
		capacity: capacity,
	}
}

// Name returns the name of the buffer.
func (b *Buffer[T]) Name() string {
	return b.name
}

// Capacity returns the number of slots the buffer can hold.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// Size returns the number of occupied slots, tombstones included.
func (b *Buffer[T]) Size() int {
	return len(b.slots)
}

// Empty tells if the buffer holds nothing.
func (b *Buffer[T]) Empty() bool {
	return len(b.slots) == 0
}

// CanPush tells if n more slots fit.
func (b *Buffer[T]) CanPush(n int) bool {
	if b.capacity <= 0 {
		return true
	}

	return len(b.slots)+n <= b.capacity
}

func expand[T Sized](item T) []Slot[T] {
	n := item.Slots()
	if n < 1 {
		log.Panicf("entry occupies %d slots", n)
	}

	run := make([]Slot[T], n)
	run[0] = Slot[T]{Item: item}

	for i := 1; i < n; i++ {
		run[i] = Slot[T]{Tombstone: true}
	}

	return run
}

// Push appends an entry. Pushing into a full buffer panics.
func (b *Buffer[T]) Push(item T) {
	b.Insert(len(b.slots), item)
}

// PushFront puts an entry before everything else.
func (b *Buffer[T]) PushFront(item T) {
	b.Insert(0, item)
}

// Insert places an entry so that it starts at slot i. Slot i must be the
// start of an entry or the end of the buffer.
func (b *Buffer[T]) Insert(i int, item T) {
	run := expand(item)

	if !b.CanPush(len(run)) {
		log.Panicf("buffer %s overflow", b.name)
	}

	if i < 0 || i > len(b.slots) {
		log.Panicf("buffer %s: insert position %d out of range", b.name, i)
	}

	if i < len(b.slots) && b.slots[i].Tombstone {
		log.Panicf("buffer %s: insert into the middle of an entry", b.name)
	}

	b.slots = append(b.slots[:i], append(run, b.slots[i:]...)...)

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPush,
			Item:   item,
		})
	}
}

// Head returns the first entry.
func (b *Buffer[T]) Head() (T, bool) {
	if len(b.slots) == 0 {
		var zero T
		return zero, false
	}

	return b.Item(0), true
}

// Pop removes the first entry with its continuation slots.
func (b *Buffer[T]) Pop() T {
	if len(b.slots) == 0 {
		log.Panicf("buffer %s: pop from empty buffer", b.name)
	}

	return b.Remove(0)
}

// At returns the slot at position i.
func (b *Buffer[T]) At(i int) Slot[T] {
	return b.slots[i]
}

// Item returns the entry that starts at slot i. Reading a tombstone as an
// entry panics.
func (b *Buffer[T]) Item(i int) T {
	s := b.slots[i]
	if s.Tombstone {
		log.Panicf("buffer %s: slot %d is a tombstone", b.name, i)
	}

	return s.Item
}

// Remove takes out the entry that starts at slot i.
func (b *Buffer[T]) Remove(i int) T {
	item := b.Item(i)
	n := item.Slots()

	for j := 1; j < n; j++ {
		if i+j >= len(b.slots) || !b.slots[i+j].Tombstone {
			log.Panicf("buffer %s: entry at %d is missing continuation slots",
				b.name, i)
		}
	}

	b.slots = append(b.slots[:i], b.slots[i+n:]...)

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPop,
			Item:   item,
		})
	}

	return item
}

// Entries returns the entries in order, one per entry rather than per slot.
func (b *Buffer[T]) Entries() []T {
	out := make([]T, 0, len(b.slots))

	for _, s := range b.slots {
		if !s.Tombstone {
			out = append(out, s.Item)
		}
	}

	return out
}

// ForEach visits every entry with the slot index it starts at. Returning
// false stops the walk.
func (b *Buffer[T]) ForEach(f func(i int, item T) bool) {
	for i := 0; i < len(b.slots); i++ {
		if b.slots[i].Tombstone {
			continue
		}

		if !f(i, b.slots[i].Item) {
			return
		}
	}
}

// TakeAll empties the buffer and returns its entries in order.
func (b *Buffer[T]) TakeAll() []T {
	out := b.Entries()
	b.slots = nil

	return out
}

// Clear removes everything.
func (b *Buffer[T]) Clear() {
	b.slots = nil
}
