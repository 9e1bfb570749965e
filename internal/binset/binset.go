/*
Copyright (C) 2023  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package binset implements the binary slice set (C2): a compact,
// chunk/slice partitioned matrix of recoded part indexes, spill-to-disk
// aware when the attribute count is split across more than one slice.
package binset

import (
	"fmt"

	"github.com/launix-de/snbayes/internal/trainerr"
)

// ChunkSource supplies the already-ingested column for one (chunk,
// attribute) pair; the sparse-block translation in sparse_ingest.go is the
// usual way a caller builds these from the upstream prepared table.
type ChunkSource interface {
	Column(chunkIndex, attribute int) (Column, error)
}

// ChunkSliceSet is one worker's local view of the binary slice set: a
// single chunk, resident one slice at a time when S > 1. Workers own one chunk each and never touch another worker's
// chunk file.
type ChunkSliceSet struct {
	Layout     *Layout
	ChunkIndex int

	store ChunkFileStore
	path  string
	phys  *PhysicalLayout
	reader ReaderAtCloser

	columns       map[int]Column // resident columns: all of them when S==1, one slice's worth otherwise
	residentSlice int            // -1 until a slice has been loaded, meaningless when S==1
}

func (c *ChunkSliceSet) InstanceCount() int  { return c.Layout.InstanceCount(c.ChunkIndex) }
func (c *ChunkSliceSet) InstanceOffset() int { return c.Layout.InstanceOffset(c.ChunkIndex) }

// BuildChunk ingests one chunk's columns (already produced by the caller,
// e.g. via TranslateSparseBlock) and either keeps them resident in memory
// (S == 1) or writes them once to a chunk file (S > 1).
func BuildChunk(layout *Layout, chunkIndex int, columns map[int]Column, store ChunkFileStore, path string) (*ChunkSliceSet, error) {
	c := &ChunkSliceSet{Layout: layout, ChunkIndex: chunkIndex, residentSlice: -1}
	if layout.S == 1 {
		c.columns = columns
		return c, nil
	}
	c.store = store
	c.path = path
	w, err := store.Create(path)
	if err != nil {
		return nil, err
	}
	phys, writeErr := WriteChunkFile(w, layout, columns)
	closeErr := w.Close()
	if writeErr != nil {
		store.Remove(path)
		return nil, writeErr
	}
	if closeErr != nil {
		store.Remove(path)
		return nil, trainerr.IOTransientError{Path: path, Op: "close", Err: closeErr}
	}
	size, err := store.Size(path)
	if err != nil {
		return nil, err
	}
	if err := VerifyChunkFileSize(path, size, phys); err != nil {
		return nil, err
	}
	c.phys = phys
	return c, nil
}

// GetColumn returns a view into attribute's column for this chunk,
// transparently loading the owning slice if it is not resident
//. Within a slice columns are laid out by attribute;
// between slices the worker evicts the current slice before loading the
// next.
func (c *ChunkSliceSet) GetColumn(attribute int) (Column, error) {
	if c.Layout.S == 1 {
		col, ok := c.columns[attribute]
		if !ok {
			return nil, trainerr.NewInvariantViolation("binset.GetColumn", fmt.Sprintf("attribute %d has no column", attribute))
		}
		return col, nil
	}
	slice := c.Layout.SliceOf(attribute)
	if slice != c.residentSlice {
		if err := c.loadSlice(slice); err != nil {
			return nil, err
		}
	}
	col, ok := c.columns[attribute]
	if !ok {
		return nil, trainerr.NewInvariantViolation("binset.GetColumn", fmt.Sprintf("attribute %d missing from resident slice", attribute))
	}
	return col, nil
}

func (c *ChunkSliceSet) loadSlice(slice int) error {
	// evict current slice before loading the next
	c.columns = nil
	if c.reader == nil {
		r, err := c.store.OpenReader(c.path)
		if err != nil {
			return err
		}
		c.reader = r
	}
	cols, err := LoadSlice(c.reader, c.Layout, c.phys, slice, c.InstanceCount())
	if err != nil {
		// any read error is terminal for the worker
		return err
	}
	c.columns = cols
	c.residentSlice = slice
	return nil
}

// Close releases the chunk file handle and, if remove is true, deletes the
// underlying chunk file (used on abort and at shutdown).
func (c *ChunkSliceSet) Close(remove bool) error {
	if c.reader != nil {
		c.reader.Close()
		c.reader = nil
	}
	if remove && c.store != nil && c.path != "" {
		return c.store.Remove(c.path)
	}
	return nil
}

// BinarySliceSet is the whole-dataset view: one ChunkSliceSet per chunk.
// In the distributed training driver each worker only ever holds its own
// ChunkSliceSet; BinarySliceSet is primarily useful to single-process
// callers (tests, small datasets) and to the driver during construction
// before chunk ownership is handed off to workers.
type BinarySliceSet struct {
	Layout *Layout
	Chunks []*ChunkSliceSet
}

// Build constructs every chunk's slice set from source.
func Build(layout *Layout, source ChunkSource, store ChunkFileStore, pathPrefix string) (*BinarySliceSet, error) {
	bss := &BinarySliceSet{Layout: layout, Chunks: make([]*ChunkSliceSet, layout.C)}
	for chunkIdx := 0; chunkIdx < layout.C; chunkIdx++ {
		columns := make(map[int]Column, layout.A)
		for attr := 0; attr < layout.A; attr++ {
			col, err := source.Column(chunkIdx, attr)
			if err != nil {
				return nil, err
			}
			columns[attr] = col
		}
		path := fmt.Sprintf("%schunk-%d.bin", pathPrefix, chunkIdx)
		chunk, err := BuildChunk(layout, chunkIdx, columns, store, path)
		if err != nil {
			// fail fast: remove any chunk files already written
			for _, c := range bss.Chunks {
				if c != nil {
					c.Close(true)
				}
			}
			return nil, err
		}
		bss.Chunks[chunkIdx] = chunk
	}
	return bss, nil
}

func (b *BinarySliceSet) Close(remove bool) {
	for _, c := range b.Chunks {
		if c != nil {
			c.Close(remove)
		}
	}
}
