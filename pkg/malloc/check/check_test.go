//go:build go1.23

package check_test

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/boundarytag/malloc/pkg/heap"
	"github.com/boundarytag/malloc/pkg/malloc"
	"github.com/boundarytag/malloc/pkg/malloc/check"
)

func TestRun(t *testing.T) {
	Convey("Given a freshly initialized allocator", t, func() {
		a, err := malloc.New(heap.New(1 << 16))
		So(err, ShouldBeNil)

		Convey("it reports no violations", func() {
			So(check.Run(a), ShouldBeEmpty)
			So(check.OK(a), ShouldBeTrue)
		})

		Convey("it stays clean across a mix of allocations and frees", func() {
			p := a.Alloc(40)
			q := a.Alloc(80)
			So(p, ShouldNotBeNil)
			So(q, ShouldNotBeNil)

			a.Free(p)
			r := a.Alloc(16)
			So(r, ShouldNotBeNil)

			a.Free(q)
			a.Free(r)

			So(check.OK(a), ShouldBeTrue)
		})
	})
}

func TestDump(t *testing.T) {
	Convey("Given an allocator with one live and one free block", t, func() {
		a, err := malloc.New(heap.New(1 << 16))
		So(err, ShouldBeNil)

		p := a.Alloc(32)
		So(p, ShouldNotBeNil)

		var buf bytes.Buffer
		check.Dump(&buf, a)

		Convey("the dump lists both the allocated and free block", func() {
			out := buf.String()
			So(out, ShouldContainSubstring, "alloc")
			So(out, ShouldContainSubstring, "free")
		})
	})
}
