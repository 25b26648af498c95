//go:build go1.23

// Package check implements a read-only consistency checker for a
// [malloc.Allocator], verifying the invariants the allocator is supposed to
// maintain without ever being able to repair a violation itself: that's the
// point of keeping it a separate, narrowly-scoped external collaborator
// rather than folding its checks into the allocator's own hot paths.
package check

import (
	"fmt"

	"github.com/boundarytag/malloc/pkg/malloc"
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// Violation describes one broken invariant found by Run.
type Violation struct {
	Rule   string
	Addr   xunsafe.Addr[byte]
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at %v: %s", v.Rule, v.Addr, v.Detail)
}

// Run walks a's blocks and free list and reports every invariant violation
// it finds. A nil result means the arena is internally consistent.
//
// The checks mirror spec's universal invariants: every header matches its
// footer, every block is well-formed (minimum size, double-word multiple,
// inside the arena), no two free blocks sit next to each other uncoalesced,
// every block the free list reaches is actually marked free, every free
// block is reachable from the free list, and the free list's links are
// mutually consistent.
func Run(a *malloc.Allocator) []Violation {
	var violations []Violation

	lo, hi := a.Bounds()

	reachable := make(map[xunsafe.Addr[byte]]bool)

	for fb := range a.FreeBlocks() {
		reachable[fb.Addr] = true

		if fb.Allocated {
			violations = append(violations, Violation{
				Rule:   "free-list-entries-are-free",
				Addr:   fb.Addr,
				Detail: "block reachable from the free list is marked allocated",
			})
		}

		if next, _ := a.Links(fb.Addr); next != 0 {
			_, backPrev := a.Links(next)
			if backPrev != fb.Addr {
				violations = append(violations, Violation{
					Rule:   "free-list-doubly-linked",
					Addr:   fb.Addr,
					Detail: "next.prev does not point back to this block",
				})
			}
		}
	}

	var prevWasFree bool

	for b := range a.Blocks() {
		if b.HeaderWord != b.FooterWord {
			violations = append(violations, Violation{
				Rule:   "header-equals-footer",
				Addr:   b.Addr,
				Detail: fmt.Sprintf("header=%#x footer=%#x", b.HeaderWord, b.FooterWord),
			})
		}

		if b.Size < malloc.MinBlockSize || b.Size%8 != 0 {
			violations = append(violations, Violation{
				Rule:   "size-well-formed",
				Addr:   b.Addr,
				Detail: fmt.Sprintf("size=%d", b.Size),
			})
		}

		if b.Addr < lo || b.Addr >= hi {
			violations = append(violations, Violation{
				Rule:   "block-within-arena",
				Addr:   b.Addr,
				Detail: fmt.Sprintf("outside [%v, %v)", lo, hi),
			})
		}

		if !b.Allocated {
			if prevWasFree {
				violations = append(violations, Violation{
					Rule:   "no-adjacent-free-blocks",
					Addr:   b.Addr,
					Detail: "immediately follows another free block; should have been coalesced",
				})
			}

			if !reachable[b.Addr] {
				violations = append(violations, Violation{
					Rule:   "free-blocks-are-reachable",
					Addr:   b.Addr,
					Detail: "free block is not reachable from the free-list root",
				})
			}
		}

		prevWasFree = !b.Allocated
	}

	return violations
}

// OK reports whether Run found no violations.
func OK(a *malloc.Allocator) bool {
	return len(Run(a)) == 0
}
