package pysource

import "testing"

func TestNewAndConsumer(t *testing.T) {
	a := NewArena()
	s := a.New(ProducerConst, 1)

	if a.Producer(s) != ProducerConst {
		t.Fatalf("Producer = %d, want %d", a.Producer(s), ProducerConst)
	}
	if a.Escaped(s) {
		t.Fatalf("new source must not start escaped")
	}

	a.RecordConsumer(s, 7, 0)
	pos, ok := a.ConsumedPosition(s, 7)
	if !ok || pos != 0 {
		t.Fatalf("ConsumedPosition(s,7) = (%d,%v), want (0,true)", pos, ok)
	}

	a.MarkEscaped(s)
	if !a.Escaped(s) {
		t.Fatalf("MarkEscaped must stick")
	}
}

func TestMergeFlattensAndDedups(t *testing.T) {
	a := NewArena()
	s1 := a.New(1, 0)
	s2 := a.New(2, 0)
	s3 := a.New(3, 0)

	m1 := a.Merge(0, s1, s2)
	m2 := a.Merge(0, m1, s3)

	if !a.IsMerge(m2) {
		t.Fatalf("m2 must be a merge source")
	}
	cs := a.Constituents(m2)
	if len(cs) != 3 {
		t.Fatalf("Constituents(m2) = %v, want 3 elements", cs)
	}

	// merging a source with itself must not duplicate it
	m3 := a.Merge(0, s1, s1)
	if len(a.Constituents(m3)) != 1 {
		t.Fatalf("self-merge must dedup to 1 constituent, got %v", a.Constituents(m3))
	}
}

func TestMergeWithNoneSource(t *testing.T) {
	a := NewArena()
	s1 := a.New(1, 0)
	m := a.Merge(0, s1, None)
	if len(a.Constituents(m)) != 1 {
		t.Fatalf("merging with None should yield a single constituent")
	}
}
