// Package pysource tracks where a value on the analyser's abstract stack
// came from. A Source is an arena handle, never a pointer: per the
// redesign notes, sources form a graph with cycles through merges, so they
// live in a flat arena indexed by integer handle and are reconstituted on
// demand rather than linked with back-pointers.
package pysource

import "fmt"

// Source is an opaque handle into an Arena. Handles count up from 0 in
// allocation order; use None for "no source" (e.g. a synthesized stack push that is never
// observed).
type Source int

// None marks a stack slot with no tracked provenance.
const None Source = -1

// ProducerSentinel values used in place of a real opcode index for sources
// that don't originate at a bytecode offset.
const (
	ProducerConst  = -1 // a LOAD_CONST-style literal
	ProducerFrame  = -2 // an incoming argument / frame-provided local
	ProducerMerge  = -3 // a synthesized merge of multiple sources
	ProducerSynth  = -4 // any other compiler-synthesized value
)

type record struct {
	producer int     // opcode index, or one of the Producer* sentinels
	kind      int     // caller-defined tag (typically a pyvalue.Kind)
	escaped   bool
	consumers map[int]int // consuming opcode index -> stack position
	merged    []Source    // non-nil only for ProducerMerge records
}

// Arena owns every Source created during one compile job. It is never
// shared across compiles and is dropped wholesale when the analyser that
// owns it is dropped.
type Arena struct {
	records []record
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a fresh, non-merge source with the given producer opcode
// index (or sentinel) and kind tag.
func (a *Arena) New(producer, kind int) Source {
	a.records = append(a.records, record{
		producer:  producer,
		kind:      kind,
		consumers: make(map[int]int),
	})
	return Source(len(a.records) - 1)
}

func (a *Arena) rec(s Source) *record {
	if s < 0 || int(s) >= len(a.records) {
		panic(fmt.Sprintf("pysource: invalid source handle %d", s))
	}
	return &a.records[s]
}

// Producer returns the opcode index (or Producer* sentinel) that produced s.
// For a merge source it returns ProducerMerge.
func (a *Arena) Producer(s Source) int { return a.rec(s).producer }

// Kind returns the caller-defined kind tag attached to s.
func (a *Arena) Kind(s Source) int { return a.rec(s).kind }

// Escaped reports whether s has ever been observed by an operation that
// forces a boxed representation.
func (a *Arena) Escaped(s Source) bool { return a.rec(s).escaped }

// MarkEscaped sets s's escape bit. Escaping is monotonic: once set it is
// never cleared.
func (a *Arena) MarkEscaped(s Source) {
	a.rec(s).escaped = true
}

// RecordConsumer notes that the opcode at atPC pops s off the stack at
// position pos.
func (a *Arena) RecordConsumer(s Source, atPC, pos int) {
	a.rec(s).consumers[atPC] = pos
}

// Consumers returns the opcode index -> stack position map of everything
// that has consumed s so far.
func (a *Arena) Consumers(s Source) map[int]int {
	return a.rec(s).consumers
}

// ConsumedPosition returns the stack position at which atPC consumes s,
// and whether atPC is in fact a recorded consumer of s.
func (a *Arena) ConsumedPosition(s Source, atPC int) (int, bool) {
	pos, ok := a.rec(s).consumers[atPC]
	return pos, ok
}

// Constituents returns the sorted list of sources folded into a merge
// source, or nil if s is not a merge.
func (a *Arena) Constituents(s Source) []Source {
	return a.rec(s).merged
}

// IsMerge reports whether s was produced by Merge.
func (a *Arena) IsMerge(s Source) bool {
	return a.rec(s).producer == ProducerMerge
}

// Merge folds a and b into one source representing "value may have come
// from either a or b" at a control-flow join. The merged source's
// consumer set is always empty at creation time (it inherits new
// consumers as the merged join point is itself consumed); its kind tag is
// supplied by the caller, which has already computed the joined
// pyvalue.Kind.
func (a *Arena) Merge(kind int, a1, b1 Source) Source {
	all := a.flattenMerge(a1)
	all = append(all, a.flattenMerge(b1)...)
	all = dedupSorted(all)

	a.records = append(a.records, record{
		producer:  ProducerMerge,
		kind:      kind,
		consumers: make(map[int]int),
		merged:    all,
	})
	return Source(len(a.records) - 1)
}

func (a *Arena) flattenMerge(s Source) []Source {
	if s == None {
		return nil
	}
	if a.IsMerge(s) {
		return append([]Source(nil), a.Constituents(s)...)
	}
	return []Source{s}
}

func dedupSorted(ss []Source) []Source {
	if len(ss) == 0 {
		return ss
	}
	seen := make(map[Source]bool, len(ss))
	out := ss[:0:0]
	// insertion sort; merge lists are tiny in practice
	sorted := append([]Source(nil), ss...)
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	for _, s := range sorted {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
