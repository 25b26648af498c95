//go:build go1.23

package malloc

import (
	"iter"

	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// BlockInfo is a read-only snapshot of one block's layout, used by
// [Allocator.Blocks] and [Allocator.FreeBlocks] to expose internal state to
// the consistency checker in malloc/check without handing that package the
// ability to mutate the arena.
type BlockInfo struct {
	Addr       xunsafe.Addr[byte]
	Size       int
	Allocated  bool
	HeaderWord uint32
	FooterWord uint32
}

// Blocks walks every block in the arena in physical (address) order.
func (a *Allocator) Blocks() iter.Seq[BlockInfo] {
	return func(yield func(BlockInfo) bool) {
		if a.arenaStart == 0 {
			return
		}

		for bp := a.arenaStart; ; {
			info := BlockInfo{
				Addr:       bp,
				Size:       blockSize(bp),
				Allocated:  isAllocated(bp),
				HeaderWord: readTag(headerAddr(bp)),
				FooterWord: readTag(footerAddr(bp)),
			}

			if !yield(info) {
				return
			}

			next, ok := a.nextBlock(bp)
			if !ok {
				return
			}

			bp = next
		}
	}
}

// FreeBlocks walks every block reachable from the free list, in list
// (insertion) order.
func (a *Allocator) FreeBlocks() iter.Seq[BlockInfo] {
	return func(yield func(BlockInfo) bool) {
		for bp := range a.All() {
			info := BlockInfo{
				Addr:       bp,
				Size:       blockSize(bp),
				Allocated:  isAllocated(bp),
				HeaderWord: readTag(headerAddr(bp)),
				FooterWord: readTag(footerAddr(bp)),
			}

			if !yield(info) {
				return
			}
		}
	}
}

// Links returns the free-list next and prev pointers stored in bp's
// payload, as raw addresses (0 meaning no link).
func (a *Allocator) Links(bp xunsafe.Addr[byte]) (next, prev xunsafe.Addr[byte]) {
	return a.nextLink(bp), a.prevLink(bp)
}

// Bounds returns the current [lo, hi) extent of the heap backing this
// allocator.
func (a *Allocator) Bounds() (lo, hi xunsafe.Addr[byte]) {
	return a.h.Lo(), a.h.Hi()
}

// ArenaStart returns the payload address of the first block ever
// formatted, or 0 if the allocator has not finished initializing.
func (a *Allocator) ArenaStart() xunsafe.Addr[byte] {
	return a.arenaStart
}
