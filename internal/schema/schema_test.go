package schema

import (
	"math/rand"
	"sort"
	"testing"
)

func buildTestSchema(n int) *Schema {
	attrs := make([]*Attribute, n)
	for i := 0; i < n; i++ {
		attrs[i] = &Attribute{
			Index:       i,
			NativeName:  "native" + string(rune('A'+i)),
			RecodedName: "r" + string(rune('A'+i)),
		}
	}
	return Build(attrs)
}

func TestLookupsByName(t *testing.T) {
	s := buildTestSchema(5)
	a, ok := s.ByNativeName("nativeC")
	if !ok || a.Index != 2 {
		t.Fatalf("expected attribute index 2 for nativeC, got %+v ok=%v", a, ok)
	}
	if _, ok := s.ByRecodedName("rE"); !ok {
		t.Fatalf("expected rE to resolve")
	}
	if _, ok := s.ByNativeName("missing"); ok {
		t.Fatalf("expected missing name to not resolve")
	}
}

func TestBandOfCoversAllIndexesExactlyOnce(t *testing.T) {
	total, bands := 17, 5
	seen := make([]int, total)
	for i := 0; i < total; i++ {
		b := bandOf(i, total, bands)
		if b < 0 || b >= bands {
			t.Fatalf("band out of range: %d", b)
		}
		seen[i] = b
	}
	counts := make([]int, bands)
	for _, b := range seen {
		counts[b]++
	}
	// first (total % bands) bands get one extra element
	base := total / bands
	rem := total % bands
	for b, c := range counts {
		expected := base
		if b < rem {
			expected = base + 1
		}
		if c != expected {
			t.Errorf("band %d: expected %d elements, got %d", b, expected, c)
		}
	}
}

func TestShuffleRestoreRoundTrip(t *testing.T) {
	s := buildTestSchema(20)
	it := NewShuffleIterator(s, 4)
	stable := append([]int(nil), it.Order()...)

	rng := rand.New(rand.NewSource(42))
	it.Shuffle(rng)
	shuffled := append([]int(nil), it.Order()...)

	sortedShuffled := append([]int(nil), shuffled...)
	sort.Ints(sortedShuffled)
	sortedStable := append([]int(nil), stable...)
	sort.Ints(sortedStable)
	for i := range sortedShuffled {
		if sortedShuffled[i] != sortedStable[i] {
			t.Fatalf("shuffle must be a permutation of the same attribute set")
		}
	}

	it.Restore()
	for i, v := range it.Order() {
		if v != stable[i] {
			t.Fatalf("restore did not return to stable order at %d: got %d want %d", i, v, stable[i])
		}
	}
}
