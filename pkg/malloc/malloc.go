//go:build go1.23

package malloc

import (
	"fmt"
	"unsafe"

	"github.com/boundarytag/malloc/internal/debug"
	"github.com/boundarytag/malloc/pkg/heap"
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// Allocator is a boundary-tag, explicit-free-list allocator over a
// [heap.Heap]-provided address space.
//
// It satisfies [arena.Allocator]'s Alloc/Release shape, so it can stand in
// anywhere that interface is accepted, including [arena/slice.Slice].
//
// The zero Allocator is not usable; construct one with New.
type Allocator struct {
	h *heap.Heap

	// root is the head of the free list, or 0 if the list is empty.
	root xunsafe.Addr[byte]

	// arenaStart is the payload address of the very first block ever
	// formatted. It has no physical predecessor, which lets prevBlock tell
	// a real neighbor apart from the one-time alignment pad that precedes
	// it.
	arenaStart xunsafe.Addr[byte]

	// lastGrowthErr records the most recent failure to grow the arena, so
	// callers that only get a nil *byte back from Alloc/Realloc can still
	// inspect why via LastError.
	lastGrowthErr error
}

// LastError returns the most recent error encountered while trying to grow
// the arena, or nil if growth has never failed. Alloc and Realloc report
// failure as a nil pointer per the allocator contract; this is how a caller
// recovers the underlying [heap.OutOfMemoryError] for diagnostics.
func (a *Allocator) LastError() error {
	return a.lastGrowthErr
}

// New formats a fresh arena of one chunk's worth of free space over h.
func New(h *heap.Heap) (*Allocator, error) {
	a := &Allocator{h: h}

	if _, err := a.extendHeap(ChunkSize); err != nil {
		return nil, fmt.Errorf("malloc: initialize: %w", err)
	}

	return a, nil
}

// Alloc reserves a block able to hold size bytes and returns its payload
// pointer, or nil if size is 0 or the arena cannot grow any further.
//
// Alloc satisfies arena.Allocator.
func (a *Allocator) Alloc(size int) *byte {
	if size <= 0 {
		return nil
	}

	asize := adjustedSize(size)

	bp, ok := a.findFit(asize)
	if !ok {
		grown, err := a.extendHeap(max(asize, ChunkSize))
		if err != nil {
			a.lastGrowthErr = err
			debug.Log(nil, "alloc", "out of memory requesting %d bytes (asize=%d): %v", size, asize, err)
			return nil
		}

		bp = grown
	}

	a.place(bp, asize)

	debug.Log(nil, "alloc", "%v size=%d asize=%d", bp, size, asize)

	return bp.AssertValid()
}

// Release frees the block at p. The size argument is accepted only to
// satisfy arena.Allocator and is otherwise ignored: the block's true size
// lives in its own header.
func (a *Allocator) Release(p *byte, _ int) {
	a.Free(p)
}

// Free returns the block at p to the free list, coalescing it with any
// free physical neighbor. Freeing a nil pointer is a no-op.
func (a *Allocator) Free(p *byte) {
	if p == nil {
		return
	}

	bp := xunsafe.AddrOf(p)
	debug.Log(nil, "free", "%v size=%d", bp, blockSize(bp))

	prev, hasPrev := a.prevBlock(bp)
	next, hasNext := a.nextBlock(bp)
	prevFree := hasPrev && !isAllocated(prev)
	nextFree := hasNext && !isAllocated(next)

	// Each case below inserts the freed region into the free list exactly
	// once, rather than freeing bp on its own and then running it through
	// the general coalesce (which would insert and immediately remove it
	// again for every case but the first).
	switch {
	case !prevFree && !nextFree:
		setTags(bp, blockSize(bp), false)
		a.insertHead(bp)

	case !prevFree && nextFree:
		a.remove(next)
		setTags(bp, blockSize(bp)+blockSize(next), false)
		a.insertHead(bp)

	case prevFree && !nextFree:
		a.remove(prev)
		setTags(prev, blockSize(prev)+blockSize(bp), false)
		a.insertHead(prev)

	default:
		a.remove(prev)
		a.remove(next)
		setTags(prev, blockSize(prev)+blockSize(bp)+blockSize(next), false)
		a.insertHead(prev)
	}
}

// Realloc resizes the block at p to hold size bytes, preserving its
// contents up to the smaller of the old and new sizes.
//
// A nil p behaves like Alloc(size). A size of 0 behaves like Free(p) and
// returns nil. Shrinking in place and growing into a free next neighbor are
// both attempted before falling back to allocate+copy+free.
func (a *Allocator) Realloc(p *byte, size int) *byte {
	if p == nil {
		return a.Alloc(size)
	}

	if size <= 0 {
		a.Free(p)
		return nil
	}

	bp := xunsafe.AddrOf(p)
	asize := adjustedSize(size)
	cur := blockSize(bp)

	if asize == cur {
		return p
	}

	if asize < cur {
		if a.shrinkInPlace(bp, asize) {
			return p
		}
	} else if a.growInPlace(bp, asize) {
		return p
	}

	newP := a.Alloc(size)
	if newP == nil {
		return nil
	}

	oldPayload := cur - DWordSize
	n := min(size, oldPayload)
	copy(unsafe.Slice(newP, n), unsafe.Slice(p, n))

	a.Free(p)

	return newP
}

// shrinkInPlace splits off and frees the tail of bp when shrinking it to
// asize leaves enough room for a standalone free block. It reports whether
// the shrink happened.
func (a *Allocator) shrinkInPlace(bp xunsafe.Addr[byte], asize int) bool {
	remainder := blockSize(bp) - asize
	if remainder < MinBlockSize {
		return false
	}

	setTags(bp, asize, true)

	tail := bp.ByteAdd(asize)
	setTags(tail, remainder, false)

	if next, ok := a.nextBlock(tail); ok && !isAllocated(next) {
		a.remove(next)
		setTags(tail, remainder+blockSize(next), false)
	}

	a.insertHead(tail)

	return true
}

// growInPlace extends bp into its free next neighbor when that neighbor has
// enough room to satisfy asize without needing a fresh allocation.
func (a *Allocator) growInPlace(bp xunsafe.Addr[byte], asize int) bool {
	next, ok := a.nextBlock(bp)
	if !ok || isAllocated(next) {
		return false
	}

	combined := blockSize(bp) + blockSize(next)
	if combined < asize {
		return false
	}

	a.remove(next)

	remainder := combined - asize
	if remainder == DWordSize {
		asize += DWordSize
		remainder = 0
	}

	setTags(bp, asize, true)

	if remainder >= MinBlockSize {
		tail := bp.ByteAdd(asize)
		setTags(tail, remainder, false)
		a.insertHead(tail)
	}

	if a.root == 0 {
		if _, err := a.extendHeap(ChunkSize); err != nil {
			a.lastGrowthErr = err
			debug.Log(nil, "realloc", "free list ran dry and could not be replenished: %v", err)
		}
	}

	return true
}
