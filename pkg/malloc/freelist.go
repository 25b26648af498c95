//go:build go1.23

package malloc

import (
	"iter"

	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// Free blocks store their list links directly in the first two words of
// their own payload: next at offset 0, prev at offset WordSize. Each link is
// a single 4-byte word, so it is stored as an offset relative to the heap's
// base address rather than as a native pointer-width address — exactly the
// same budget the header and footer tags live inside. Offset 0 doubles as
// the null link: the arena's very first payload pointer always sits at
// least one word past the heap's base, so no real block can ever land on
// offset 0.

func (a *Allocator) toOffset(p xunsafe.Addr[byte]) uint32 {
	if p == 0 {
		return 0
	}

	return uint32(p.Sub(a.h.Lo()))
}

func (a *Allocator) toAddr(o uint32) xunsafe.Addr[byte] {
	if o == 0 {
		return 0
	}

	return a.h.Lo().ByteAdd(int(o))
}

func (a *Allocator) nextLink(bp xunsafe.Addr[byte]) xunsafe.Addr[byte] {
	return a.toAddr(readTag(bp))
}

func (a *Allocator) setNextLink(bp, v xunsafe.Addr[byte]) {
	writeTag(bp, a.toOffset(v))
}

func (a *Allocator) prevLink(bp xunsafe.Addr[byte]) xunsafe.Addr[byte] {
	return a.toAddr(readTag(bp.ByteAdd(WordSize)))
}

func (a *Allocator) setPrevLink(bp, v xunsafe.Addr[byte]) {
	writeTag(bp.ByteAdd(WordSize), a.toOffset(v))
}

// insertHead threads bp onto the front of the free list. Matches the
// teacher's recycle.go free list in spirit (LIFO reuse of the most recently
// freed block), generalized from one list per size class to a single list
// kept in LIFO insertion order, with no address ordering.
func (a *Allocator) insertHead(bp xunsafe.Addr[byte]) {
	a.setNextLink(bp, a.root)
	a.setPrevLink(bp, 0)

	if a.root != 0 {
		a.setPrevLink(a.root, bp)
	}

	a.root = bp
}

// remove unlinks bp from the free list. bp must currently be in the list.
func (a *Allocator) remove(bp xunsafe.Addr[byte]) {
	next := a.nextLink(bp)
	prev := a.prevLink(bp)

	if prev != 0 {
		a.setNextLink(prev, next)
	} else {
		a.root = next
	}

	if next != 0 {
		a.setPrevLink(next, prev)
	}
}

// replace swaps old for next in the free list; next takes over old's position.
// Used by place when splitting a block leaves a free remainder that takes
// over the original block's spot in the list.
func (a *Allocator) replace(old, next xunsafe.Addr[byte]) {
	prev := a.prevLink(old)
	succ := a.nextLink(old)

	a.setPrevLink(next, prev)
	a.setNextLink(next, succ)

	if prev != 0 {
		a.setNextLink(prev, next)
	} else {
		a.root = next
	}

	if succ != 0 {
		a.setPrevLink(succ, next)
	}
}

// All iterates the free list from head to tail.
func (a *Allocator) All() iter.Seq[xunsafe.Addr[byte]] {
	return func(yield func(xunsafe.Addr[byte]) bool) {
		for bp := a.root; bp != 0; bp = a.nextLink(bp) {
			if !yield(bp) {
				return
			}
		}
	}
}
