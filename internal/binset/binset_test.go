package binset

import (
	"testing"

	"github.com/launix-de/snbayes/internal/trainerr"
)

type mapSource struct {
	cols map[[2]int]Column
}

func (m mapSource) Column(chunk, attr int) (Column, error) {
	return m.cols[[2]int{chunk, attr}], nil
}

func TestChunkFileRoundTripAndSizeInvariant(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalFileStore(dir)
	layout := NewLayout(10, 2, 4, 2) // 2 chunks, 4 attrs over 2 slices -> forces on-disk chunk files

	src := mapSource{cols: make(map[[2]int]Column)}
	for chunk := 0; chunk < layout.C; chunk++ {
		n := layout.InstanceCount(chunk)
		for attr := 0; attr < layout.A; attr++ {
			if attr%2 == 0 {
				vals := make([]int32, n)
				for i := range vals {
					vals[i] = int32(i%3 - 1) // mix of -1 (missing) and part indexes
				}
				src.cols[[2]int{chunk, attr}] = &DenseColumn{Values: vals}
			} else {
				pairs := []int32{}
				for i := 0; i < n; i += 2 {
					pairs = append(pairs, int32(i), int32(attr))
				}
				src.cols[[2]int{chunk, attr}] = NewSparseColumn(pairs, n)
			}
		}
	}

	bss, err := Build(layout, src, store, "t-")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer bss.Close(true)

	for chunk := 0; chunk < layout.C; chunk++ {
		cs := bss.Chunks[chunk]
		size, err := store.Size(cs.path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if err := VerifyChunkFileSize(cs.path, size, cs.phys); err != nil {
			t.Fatalf("size invariant violated: %v", err)
		}
		for attr := 0; attr < layout.A; attr++ {
			col, err := cs.GetColumn(attr)
			if err != nil {
				t.Fatalf("GetColumn(%d) failed: %v", attr, err)
			}
			want := src.cols[[2]int{chunk, attr}]
			if col.IsSparse() != want.IsSparse() {
				t.Fatalf("attr %d: sparse flag mismatch", attr)
			}
			for i := 0; i < col.Len(); i++ {
				if col.Get(i) != want.Get(i) {
					t.Errorf("chunk %d attr %d idx %d: got %d want %d", chunk, attr, i, col.Get(i), want.Get(i))
				}
			}
		}
	}
}

func TestSparseIngestionFidelity(t *testing.T) {
	block := PreparedSparseBlock{
		LocalAttributeIndex: []int{2, 5},
		Entries: [][3]int32{
			{0, 0, 3}, // instance 0, local slot 0 -> attr 2, part 1-based 3
			{4, 1, 1}, // instance 4, local slot 1 -> attr 5, part 1-based 1
			{7, 0, 2}, // instance 7, local slot 0 -> attr 2, part 1-based 2
		},
	}
	out, err := TranslateSparseBlock(block, 0)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	attr2 := out[2]
	if len(attr2) != 2 || attr2[0] != [2]int32{0, 2} || attr2[1] != [2]int32{7, 1} {
		t.Fatalf("unexpected attr2 pairs: %v", attr2)
	}
	attr5 := out[5]
	if len(attr5) != 1 || attr5[0] != [2]int32{4, 0} {
		t.Fatalf("unexpected attr5 pairs: %v", attr5)
	}
}

func TestSparseIngestionOverflowGuard(t *testing.T) {
	block := PreparedSparseBlock{
		LocalAttributeIndex: []int{0},
		Entries: [][3]int32{
			{0, 0, 1}, {1, 0, 1}, {2, 0, 1},
		},
	}
	_, err := TranslateSparseBlock(block, 2)
	if err == nil {
		t.Fatalf("expected overflow error")
	}
	if _, ok := err.(trainerr.MemoryExhaustedError); !ok {
		t.Fatalf("expected MemoryExhaustedError, got %T: %v", err, err)
	}
}

func TestForceDenseModeEquivalentToSparseZero(t *testing.T) {
	n := 8
	sparsePairs := []int32{1, 5, 3, 5, 6, 5}
	sparse := NewSparseColumn(sparsePairs, n)

	dense := make([]int32, n)
	for i := range dense {
		dense[i] = -1
	}
	for i := 0; i < len(sparsePairs); i += 2 {
		dense[sparsePairs[i]] = sparsePairs[i+1]
	}
	denseCol := &DenseColumn{Values: dense}

	for i := 0; i < n; i++ {
		if sparse.Get(i) != denseCol.Get(i) {
			t.Errorf("idx %d: sparse=%d dense=%d", i, sparse.Get(i), denseCol.Get(i))
		}
	}
}

