//go:build go1.23

package malloc

import (
	"github.com/boundarytag/malloc/internal/debug"
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// coalesce merges bp with any free physical neighbor. bp must already be
// present in the free list: unlike Free, which threads each of its four
// cases into the list exactly once, coalesce is only ever called right
// after extendHeap has already inserted the newly formatted block, so the
// "no merge" case is a correct no-op rather than a missing insertion.
func (a *Allocator) coalesce(bp xunsafe.Addr[byte]) xunsafe.Addr[byte] {
	prev, hasPrev := a.prevBlock(bp)
	next, hasNext := a.nextBlock(bp)
	prevFree := hasPrev && !isAllocated(prev)
	nextFree := hasNext && !isAllocated(next)

	switch {
	case !prevFree && !nextFree:
		return bp

	case !prevFree && nextFree:
		a.remove(next)
		a.remove(bp)
		setTags(bp, blockSize(bp)+blockSize(next), false)
		a.insertHead(bp)

		return bp

	case prevFree && !nextFree:
		a.remove(prev)
		a.remove(bp)
		setTags(prev, blockSize(prev)+blockSize(bp), false)
		a.insertHead(prev)

		return prev

	default:
		a.remove(prev)
		a.remove(bp)
		a.remove(next)
		// Summed as three independent reads rather than the nested
		// GET_SIZE(HDRP(bp) + GET_SIZE(HDRP(next))) the original carries:
		// that expression reads the size of the block that starts where
		// bp's free space ends, which is next itself, not a third
		// quantity — an apparent double-count this implementation does
		// not reproduce.
		setTags(prev, blockSize(prev)+blockSize(bp)+blockSize(next), false)
		a.insertHead(prev)

		return prev
	}
}

// extendHeap requests size bytes (rounded up to a double word) from the
// heap provider, formats them as a single free block, and threads that
// block onto the free list — coalescing it with the former tail of the
// arena if that tail was free.
//
// The very first call consumes one extra alignment-pad word so the first
// payload pointer lands on a double-word boundary regardless of what
// alignment the provider itself guarantees; every later call needs no pad,
// since its block's header takes the one word left over at the end of the
// previous extent, so the new block begins exactly where the former tail
// ends. That, in turn, is what lets coalescing find a real physical
// predecessor instead of reading the one-time pad as a bogus footer.
func (a *Allocator) extendHeap(size int) (xunsafe.Addr[byte], error) {
	size = roundUp8(size)

	first := a.arenaStart == 0

	pad := 0
	if first {
		pad = WordSize
	}

	base, err := a.h.Sbrk(pad + size)
	if err != nil {
		return 0, err
	}

	// The first block's header follows the pad. Every later block's header
	// takes the spare word left at the end of the previous extent.
	bp := base
	if first {
		bp = base.ByteAdd(pad + WordSize)
	}
	setTags(bp, size, false)
	a.setNextLink(bp, 0)
	a.setPrevLink(bp, 0)
	a.insertHead(bp)

	debug.Log(nil, "extendHeap", "%v +%d bytes (first=%v)", bp, size, first)

	if first {
		a.arenaStart = bp
		return bp, nil
	}

	return a.coalesce(bp), nil
}
