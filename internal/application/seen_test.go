package application

import "testing"

type pair struct{ A, B int }

func TestSeenSetIsIdentityBased(t *testing.T) {
	s := NewSeenSet()
	a := &pair{A: 1, B: 2}
	b := &pair{A: 1, B: 2}

	s.Add(a)
	if !s.Contains(a) {
		t.Fatalf("expected a to be seen")
	}
	if s.Contains(b) {
		t.Fatalf("equal value at another address must not be seen")
	}

	m := map[string]int{"x": 1}
	s.Add(m)
	if !s.Contains(m) {
		t.Fatalf("expected map to be seen")
	}

	items := []int{1, 2, 3}
	s.Add(items)
	if !s.Contains(items) || s.Contains(items[:2]) {
		t.Fatalf("slice identity should include its length")
	}

	s.Add(*a)
	if s.Contains(*a) {
		t.Fatalf("plain values have no identity")
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 tracked nodes, got %d", s.Len())
	}
}
