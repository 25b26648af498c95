//go:build go1.23

package malloc

import (
	"github.com/boundarytag/malloc/internal/debug"
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// inArena reports whether p lies within the region the heap provider has
// granted so far.
func (a *Allocator) inArena(p xunsafe.Addr[byte]) bool {
	return a.h.InRange(p)
}

// prevBlock returns bp's physical predecessor, if any. bp is the arena's
// first block — and so has no predecessor — when it equals arenaStart; that
// explicit marker is needed because the one-time alignment pad preceding
// arenaStart would otherwise be misread as a bogus footer tag.
func (a *Allocator) prevBlock(bp xunsafe.Addr[byte]) (xunsafe.Addr[byte], bool) {
	if bp == a.arenaStart {
		return 0, false
	}

	size, _ := unpackTag(readTag(bp.ByteAdd(-DWordSize)))

	return bp.ByteAdd(-size), true
}

// nextBlock returns bp's physical successor, if any.
func (a *Allocator) nextBlock(bp xunsafe.Addr[byte]) (xunsafe.Addr[byte], bool) {
	next := bp.ByteAdd(blockSize(bp))
	if !a.inArena(next) {
		return 0, false
	}

	return next, true
}

// findFit performs a first-fit linear scan of the free list for a block
// able to hold asize bytes.
func (a *Allocator) findFit(asize int) (xunsafe.Addr[byte], bool) {
	for bp := range a.All() {
		if blockSize(bp) >= asize {
			return bp, true
		}
	}

	return 0, false
}

// place carves an asize-byte allocated block out of the free block at bp,
// splitting off and re-freeing any sufficiently large remainder.
//
// Three cases, ordered exactly like the remainder arithmetic they test:
//
//   - remainder >= MinBlockSize: split into an allocated head and a free
//     tail, which takes over bp's position in the free list.
//   - remainder == DWordSize (8 bytes): too small to stand alone as a block,
//     so it is folded into the allocation instead of becoming a leftover
//     orphan no future request could ever satisfy.
//   - remainder == 0: bp is consumed whole.
func (a *Allocator) place(bp xunsafe.Addr[byte], asize int) {
	remainder := blockSize(bp) - asize

	if remainder >= MinBlockSize {
		tail := bp.ByteAdd(asize)
		setTags(bp, asize, true)
		setTags(tail, remainder, false)
		a.replace(bp, tail)

		return
	}

	if remainder == DWordSize {
		asize += DWordSize
	}

	setTags(bp, asize, true)
	a.remove(bp)

	if a.root == 0 {
		// The free list just emptied out from under us. Spec invariant 6
		// (allocate never leaves the free list empty while growth is
		// still possible) calls for growing the arena immediately rather
		// than waiting for the next miss to discover it.
		if _, err := a.extendHeap(max(asize, ChunkSize)); err != nil {
			// Swallowed deliberately: the allocation that triggered this
			// already succeeded. Failing to replenish the free list right
			// away only means the next allocation might also need to grow
			// the arena, which it will attempt and report on its own.
			a.lastGrowthErr = err
			debug.Log(nil, "place", "could not eagerly replenish free list: %v", err)
		}
	}
}
