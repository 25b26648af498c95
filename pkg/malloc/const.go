//go:build go1.23

// Package malloc implements a boundary-tag, explicit-free-list dynamic
// memory allocator over a [heap.Heap]-provided address space: the classic
// CS:APP malloc lab design, generalized into a drop-in [arena.Allocator].
package malloc

// WordSize is the width in bytes of a single header or footer tag.
const WordSize = 4

// DWordSize is the double-word alignment every payload pointer is kept to.
const DWordSize = 2 * WordSize

// MinBlockSize is the smallest size, in bytes, a block can have: one header
// word, one footer word, and two free-list link words in between.
const MinBlockSize = 16

// ChunkSize is the default number of bytes requested from the heap provider
// each time the arena needs to grow.
const ChunkSize = 4096

// allocBit marks a header/footer word as belonging to an allocated block.
const allocBit = uint32(1)

// sizeMask isolates the size portion of a packed header/footer word. Only
// the low 3 bits are reserved for flags, matching the fact that every block
// size is a multiple of 8.
const sizeMask = ^uint32(0x7)
