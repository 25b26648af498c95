//go:build go1.23

// Command mallocbench replays a trace of allocate/free/reallocate
// operations against a [malloc.Allocator] and reports heap utilization,
// mirroring the .rep trace format the CS:APP malloc lab grades against.
//
// Each line of the trace is one of:
//
//	a <id> <size>      allocate size bytes, remembering the result as id
//	f <id>             free the block remembered as id
//	r <id> <size>      reallocate the block remembered as id to size bytes
//
// Blank lines and lines starting with '#' are ignored.
//
// The -structure flag selects how the harness itself tracks live trace ids:
// a native Go map (the default) or a swiss.Map backed by its own bump arena,
// exercising that data structure under the same trace.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/boundarytag/malloc/pkg/arena"
	"github.com/boundarytag/malloc/pkg/arena/swiss"
	"github.com/boundarytag/malloc/pkg/heap"
	"github.com/boundarytag/malloc/pkg/malloc"
	"github.com/boundarytag/malloc/pkg/malloc/check"
	"github.com/boundarytag/malloc/pkg/xerrors"
)

var (
	capacity   = flag.Int("capacity", heap.DefaultCapacity, "bytes reserved for the simulated heap")
	runCheck   = flag.Bool("check", false, "run the consistency checker after every operation")
	dumpOnFail = flag.Bool("dump-on-fail", true, "dump the arena layout if a consistency check fails")
	structure  = flag.String("structure", "map", "data structure used to track live trace ids: \"map\" or \"swiss\"")
)

// liveSet tracks the mapping from a trace's block ids to the pointer
// currently backing them. It exists so the harness can swap in a
// swiss.Map-backed implementation without touching the replay loop.
type liveSet interface {
	get(id string) (*byte, bool)
	put(id string, p *byte)
	delete(id string)
	len() int
}

type nativeLiveSet map[string]*byte

func (s nativeLiveSet) get(id string) (*byte, bool) { p, ok := s[id]; return p, ok }
func (s nativeLiveSet) put(id string, p *byte)      { s[id] = p }
func (s nativeLiveSet) delete(id string)            { delete(s, id) }
func (s nativeLiveSet) len() int                    { return len(s) }

// swissLiveSet backs the same tracking with an open-addressing swiss.Map
// over its own bump arena, exercising pkg/arena/swiss (and the
// dolthub/maphash hasher underneath it) alongside the boundary-tag
// allocator under test.
type swissLiveSet struct {
	m *swiss.Map[string, *byte]
}

func newSwissLiveSet() *swissLiveSet {
	return &swissLiveSet{m: swiss.NewMap[string, *byte](new(arena.Arena), 32)}
}

func (s *swissLiveSet) get(id string) (*byte, bool) { return s.m.Get(id) }
func (s *swissLiveSet) put(id string, p *byte)      { s.m.Put(id, p) }
func (s *swissLiveSet) delete(id string)            { s.m.Delete(id) }
func (s *swissLiveSet) len() int                    { return s.m.Count() }

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mallocbench - replay an allocator trace\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [trace-file]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reads from stdin when no trace file is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var r io.Reader = os.Stdin

	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mallocbench: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		r = f
	}

	if err := run(r, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mallocbench: %v\n", err)
		os.Exit(1)
	}
}

func run(r io.Reader, out io.Writer) error {
	h := heap.New(*capacity)

	a, err := malloc.New(h)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var live liveSet
	switch *structure {
	case "swiss":
		live = newSwissLiveSet()
	case "map", "":
		live = make(nativeLiveSet)
	default:
		return fmt.Errorf("unrecognized -structure %q", *structure)
	}

	var (
		ops          int
		peakRequest  int
		totalRequest int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "a":
			id, size, perr := parseIDSize(fields)
			if perr != nil {
				return perr
			}

			p := a.Alloc(size)
			if p == nil {
				reportOOM(out, a, size)
				return fmt.Errorf("allocate(%d) for %q failed: arena exhausted", size, id)
			}

			live.put(id, p)
			totalRequest += size
			peakRequest = max(peakRequest, size)

		case "f":
			if len(fields) != 2 {
				return fmt.Errorf("malformed free line: %q", line)
			}

			id := fields[1]

			p, ok := live.get(id)
			if !ok {
				return fmt.Errorf("free of unknown id %q", id)
			}

			a.Free(p)
			live.delete(id)

		case "r":
			id, size, perr := parseIDSize(fields)
			if perr != nil {
				return perr
			}

			p, ok := live.get(id)
			if !ok {
				return fmt.Errorf("reallocate of unknown id %q", id)
			}

			newP := a.Realloc(p, size)
			if newP == nil && size > 0 {
				reportOOM(out, a, size)
				return fmt.Errorf("reallocate(%q, %d) failed: arena exhausted", id, size)
			}

			if size == 0 {
				live.delete(id)
			} else {
				live.put(id, newP)
			}

		default:
			return fmt.Errorf("unrecognized trace operation %q", fields[0])
		}

		ops++

		if *runCheck {
			if violations := check.Run(a); len(violations) > 0 {
				if *dumpOnFail {
					check.Dump(out, a)
				}

				return fmt.Errorf("consistency check failed after op %d (%q): %v", ops, line, violations[0])
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}

	fmt.Fprintf(out, "ops=%d live=%d peak-request=%d total-request=%d\n",
		ops, live.len(), peakRequest, totalRequest)

	return nil
}

func parseIDSize(fields []string) (id string, size int, err error) {
	if len(fields) != 3 {
		return "", 0, fmt.Errorf("malformed line: %q", strings.Join(fields, " "))
	}

	size, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, fmt.Errorf("bad size %q: %w", fields[2], err)
	}

	return fields[1], size, nil
}

func reportOOM(out io.Writer, a *malloc.Allocator, requested int) {
	lo, hi := a.Bounds()
	fmt.Fprintf(out, "arena exhausted requesting %d bytes; current extent [%v, %v)\n", requested, lo, hi)

	if oom, ok := xerrors.AsA[*heap.OutOfMemoryError](a.LastError()); ok {
		fmt.Fprintf(out, "last growth attempt: requested %d bytes, %d available\n", oom.Requested, oom.Available)
	}
}
