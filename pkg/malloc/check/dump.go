//go:build go1.23

package check

import (
	"fmt"
	"io"

	"github.com/boundarytag/malloc/pkg/malloc"
)

// Dump writes a tabular, human-readable listing of every block in a's
// arena, in physical order: address, size, allocated/free, and whether it
// is reachable from the free list. Meant for use from cmd/mallocbench and
// from tests diagnosing a failed Run.
func Dump(w io.Writer, a *malloc.Allocator) {
	lo, hi := a.Bounds()
	fmt.Fprintf(w, "arena [%v, %v)\n", lo, hi)
	fmt.Fprintf(w, "%-14s %8s %10s %8s\n", "addr", "size", "state", "in-list")

	free := make(map[string]bool)
	for fb := range a.FreeBlocks() {
		free[fmt.Sprintf("%v", fb.Addr)] = true
	}

	for b := range a.Blocks() {
		state := "alloc"
		if !b.Allocated {
			state = "free"
		}

		inList := ""
		if free[fmt.Sprintf("%v", b.Addr)] {
			inList = "yes"
		}

		fmt.Fprintf(w, "%-14v %8d %10s %8s\n", b.Addr, b.Size, state, inList)
	}
}
