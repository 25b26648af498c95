//go:build go1.23

// Package heap simulates the contiguous, monotonically growing address
// space that a boundary-tag allocator formats into blocks.
//
// Real sbrk (and the CS:APP malloc lab's memlib.c stand-in for it) hands out
// addresses from one contiguous region that only ever grows. A Go slice
// cannot honor that contract directly: append-driven growth is free to move
// the backing array, which would invalidate every address a caller already
// holds. Heap sidesteps this by reserving its full capacity up front, so the
// brk pointer advances inside a buffer that never reallocates.
package heap

import (
	"errors"
	"fmt"

	"github.com/boundarytag/malloc/internal/debug"
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// DefaultCapacity is the size reserved by New when called with capacity <= 0.
const DefaultCapacity = 64 << 20

// ErrOutOfMemory is the sentinel every error Sbrk returns on exhaustion
// wraps, for plain errors.Is checks that don't need the extra detail
// OutOfMemoryError carries.
var ErrOutOfMemory = errors.New("heap: reservation exhausted")

// OutOfMemoryError is returned by Sbrk when growing would exceed the heap's
// reserved capacity. There is no way to recover from it short of
// constructing a new Heap with more room.
type OutOfMemoryError struct {
	Requested int
	Available int
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("heap: out of memory: requested %d bytes, %d available", e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrOutOfMemory) report true for any *OutOfMemoryError.
func (e *OutOfMemoryError) Is(target error) bool {
	return target == ErrOutOfMemory
}

// align is the granularity Sbrk rounds every request up to, matching the
// double-word alignment boundary-tag blocks require of their payloads.
const align = 8

// Heap is a fixed-capacity address space with a single monotonically
// advancing break pointer.
//
// The zero Heap is not usable; construct one with New.
type Heap struct {
	mem []byte
	brk int
}

// New reserves a heap with room for capacity bytes. A non-positive capacity
// is replaced with DefaultCapacity.
func New(capacity int) *Heap {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Heap{mem: make([]byte, capacity)}
}

// Sbrk grows the heap by size bytes (rounded up to the alignment boundary)
// and returns the address of the first byte of the new region.
//
// Addresses returned by Sbrk remain valid for the lifetime of the Heap: the
// backing storage is never moved or reallocated.
func (h *Heap) Sbrk(size int) (xunsafe.Addr[byte], error) {
	if size <= 0 {
		return 0, fmt.Errorf("heap: sbrk: size must be positive, got %d", size)
	}

	size = roundUp(size, align)

	if h.brk+size > len(h.mem) {
		available := len(h.mem) - h.brk
		debug.Log(nil, "sbrk", "requested %d bytes at brk=%d, only %d bytes reserved",
			size, h.brk, available)
		return 0, &OutOfMemoryError{Requested: size, Available: available}
	}

	p := xunsafe.AddrOf(&h.mem[h.brk])
	h.brk += size

	debug.Log(nil, "sbrk", "%v +%d -> brk=%d", p, size, h.brk)

	return p, nil
}

// Lo returns the address of the first byte of the reservation. It never
// changes once the Heap is constructed.
func (h *Heap) Lo() xunsafe.Addr[byte] {
	return xunsafe.AddrOf(&h.mem[0])
}

// Hi returns the address one past the last byte granted by Sbrk so far. It
// advances monotonically as the heap grows.
func (h *Heap) Hi() xunsafe.Addr[byte] {
	return h.Lo().ByteAdd(h.brk)
}

// InRange reports whether p falls within [Lo, Hi) of the region granted so
// far.
func (h *Heap) InRange(p xunsafe.Addr[byte]) bool {
	return p >= h.Lo() && p < h.Hi()
}

// Cap returns the total reserved capacity, regardless of how much has been
// granted by Sbrk.
func (h *Heap) Cap() int {
	return len(h.mem)
}

func roundUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}
