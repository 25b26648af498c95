//go:build go1.23

package malloc

import (
	"github.com/boundarytag/malloc/pkg/xunsafe"
)

// packTag encodes a block size and allocated bit into a single header or
// footer word.
func packTag(size int, allocated bool) uint32 {
	w := uint32(size) & sizeMask
	if allocated {
		w |= allocBit
	}

	return w
}

// unpackTag recovers a block's size and allocated bit from a header or
// footer word.
func unpackTag(w uint32) (size int, allocated bool) {
	return int(w & sizeMask), w&allocBit != 0
}

// headerAddr returns the address of bp's header word, one word before the
// payload.
func headerAddr(bp xunsafe.Addr[byte]) xunsafe.Addr[byte] {
	return bp.ByteAdd(-WordSize)
}

func readTag(p xunsafe.Addr[byte]) uint32 {
	return *xunsafe.Cast[uint32](p.AssertValid())
}

func writeTag(p xunsafe.Addr[byte], w uint32) {
	*xunsafe.Cast[uint32](p.AssertValid()) = w
}

// blockSize returns bp's total size (header + payload + footer) in bytes.
func blockSize(bp xunsafe.Addr[byte]) int {
	size, _ := unpackTag(readTag(headerAddr(bp)))
	return size
}

// isAllocated reports whether bp's header marks it allocated.
func isAllocated(bp xunsafe.Addr[byte]) bool {
	_, allocated := unpackTag(readTag(headerAddr(bp)))
	return allocated
}

// footerAddr returns the address of bp's footer word, derived from its
// current header size.
func footerAddr(bp xunsafe.Addr[byte]) xunsafe.Addr[byte] {
	return bp.ByteAdd(blockSize(bp) - DWordSize)
}

// setTags writes both the header and footer words for bp, establishing a
// new size and allocated bit in one step.
func setTags(bp xunsafe.Addr[byte], size int, allocated bool) {
	w := packTag(size, allocated)
	writeTag(headerAddr(bp), w)
	writeTag(bp.ByteAdd(size-DWordSize), w)
}

// adjustedSize computes the block size needed to satisfy a request for n
// payload bytes: header, footer, and double-word alignment included.
//
// Requests of 8 bytes or fewer still need a full MinBlockSize block, since
// the free-list links alone require that much room once the block is
// freed. Anything over 8 rounds up to the next double word after adding
// room for the header and footer.
func adjustedSize(n int) int {
	if n <= DWordSize {
		return MinBlockSize
	}

	return DWordSize * ((n + DWordSize + (DWordSize - 1)) / DWordSize)
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}
