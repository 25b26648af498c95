//go:build go1.20

package xunsafe

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/boundarytag/malloc/internal/debug"
	"github.com/boundarytag/malloc/pkg/xunsafe/layout"
)

// Addr is a type-safe, re-orderable stand-in for a *T.
//
// Unlike a *T, an Addr[T] is not tracked by the garbage collector and does
// not keep its referent alive; it is meant to be stored alongside the memory
// it points into (such as inside an arena), the same way a raw address would
// be stored in a systems language. The zero value represents a nil address.
type Addr[T any] uintptr

// AddrOf returns the address of p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](uintptr(unsafe.Pointer(p)))
}

// EndOf returns the address immediately after the last element of s.
func EndOf[T any](s []T) Addr[T] {
	return AddrOf(unsafe.SliceData(s)).Add(len(s))
}

// AssertValid converts this address back into a pointer.
//
// Panics in debug builds if the address is nil.
func (a Addr[T]) AssertValid() *T {
	debug.Assert(a != 0, "dereferencing a nil address")

	return (*T)(unsafe.Pointer(uintptr(a))) //nolint:govet
}

// Add returns a + n, scaled by the size of T.
func (a Addr[T]) Add(n int) Addr[T] {
	return a + Addr[T](n*layout.Size[T]())
}

// ByteAdd returns a + n, in raw bytes (not scaled by the size of T).
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return a + Addr[T](n)
}

// Sub returns (a - b), scaled by the size of T.
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(a-b) / layout.Size[T]()
}

// Padding returns the number of bytes of padding required to round a up to
// align.
func (a Addr[T]) Padding(align int) int {
	return layout.Padding(int(a), align)
}

// RoundUpTo rounds a up to the given alignment.
func (a Addr[T]) RoundUpTo(align int) Addr[T] {
	return Addr[T](layout.RoundUp(int(a), align))
}

// SignBit returns whether the topmost bit of this address is set.
func (a Addr[T]) SignBit() bool {
	return uintptr(a)>>(bits.UintSize-1) != 0
}

// SignBitMask returns an all-ones address if SignBit is set, else zero.
func (a Addr[T]) SignBitMask() Addr[T] {
	if a.SignBit() {
		return Addr[T](^uintptr(0))
	}

	return 0
}

// ClearSignBit returns a with its topmost bit cleared.
func (a Addr[T]) ClearSignBit() Addr[T] {
	return Addr[T](uintptr(a) &^ (uintptr(1) << (bits.UintSize - 1)))
}

// Format implements [fmt.Formatter], rendering the address as hexadecimal.
func (a Addr[T]) Format(f fmt.State, verb rune) {
	switch verb {
	case 'x':
		fmt.Fprintf(f, "%x", uintptr(a))
	case 'X':
		fmt.Fprintf(f, "%X", uintptr(a))
	default:
		fmt.Fprintf(f, "0x%x", uintptr(a))
	}
}
