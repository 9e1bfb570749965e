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

package binset

import (
	"encoding/binary"
	"io"

	"github.com/launix-de/snbayes/internal/trainerr"
)

const intSize = 4 // int32, little-endian on disk

// PhysicalLayout records, per slice, the byte offset and size within the
// chunk file, and per attribute, the column's data size in int units.
type PhysicalLayout struct {
	SliceByteOffset []int64
	SliceByteSize   []int64
	AttrDataSize    []int  // element count: instance_count for dense, 2*#present for sparse
	AttrIsSparse    []bool
}

func (p *PhysicalLayout) totalBytes() int64 {
	var total int64
	for _, sz := range p.SliceByteSize {
		total += sz
	}
	return total
}

// WriteChunkFile serialises one chunk's columns to w, slice by slice,
// attribute by attribute within each slice in schema order.
func WriteChunkFile(w io.Writer, layout *Layout, columns map[int]Column) (*PhysicalLayout, error) {
	phys := &PhysicalLayout{
		SliceByteOffset: make([]int64, layout.S),
		SliceByteSize:   make([]int64, layout.S),
		AttrDataSize:    make([]int, layout.A),
		AttrIsSparse:    make([]bool, layout.A),
	}
	var offset int64
	buf := make([]byte, intSize)
	for slice := 0; slice < layout.S; slice++ {
		phys.SliceByteOffset[slice] = offset
		var sliceBytes int64
		for _, attr := range layout.AttributesInSlice(slice) {
			col, ok := columns[attr]
			if !ok {
				return nil, trainerr.NewInvariantViolation("binset.WriteChunkFile", "missing column for attribute in slice")
			}
			phys.AttrIsSparse[attr] = col.IsSparse()
			var values []int32
			if d, ok := col.(*DenseColumn); ok {
				values = d.Values
			} else if s, ok := col.(*SparseColumn); ok {
				values = s.Pairs
			} else {
				return nil, trainerr.NewInvariantViolation("binset.WriteChunkFile", "unknown column type")
			}
			phys.AttrDataSize[attr] = len(values)
			for _, v := range values {
				binary.LittleEndian.PutUint32(buf, uint32(v))
				if _, err := w.Write(buf); err != nil {
					return nil, trainerr.IOTransientError{Op: "write", Err: err}
				}
			}
			sliceBytes += int64(len(values) * intSize)
		}
		phys.SliceByteSize[slice] = sliceBytes
		offset += sliceBytes
	}
	return phys, nil
}

// VerifyChunkFileSize checks that the file size in bytes equals
// sizeof(int) * sum over slices of block_size(s).
func VerifyChunkFileSize(path string, actualSize int64, phys *PhysicalLayout) error {
	expected := phys.totalBytes()
	if actualSize != expected {
		return trainerr.IOCorruptionError{
			Path:   path,
			Detail: "chunk file size does not match sum of per-slice block sizes",
		}
	}
	return nil
}

// LoadSlice reads one slice's worth of columns from r (positioned via
// ReaderAt semantics at the chunk file's start) and decodes them into
// Column values using the physical layout, returning the columns keyed by
// attribute index.
func LoadSlice(r io.ReaderAt, layout *Layout, phys *PhysicalLayout, slice int, instanceCount int) (map[int]Column, error) {
	offset := phys.SliceByteOffset[slice]
	size := phys.SliceByteSize[slice]
	raw := make([]byte, size)
	if _, err := r.ReadAt(raw, offset); err != nil && err != io.EOF {
		return nil, trainerr.IOTransientError{Op: "read", Err: err}
	}
	out := make(map[int]Column)
	var cursor int
	for _, attr := range layout.AttributesInSlice(slice) {
		n := phys.AttrDataSize[attr]
		if cursor+n*intSize > len(raw) {
			return nil, trainerr.IOCorruptionError{Detail: "short read while decoding slice"}
		}
		values := make([]int32, n)
		for i := 0; i < n; i++ {
			values[i] = int32(binary.LittleEndian.Uint32(raw[cursor+i*intSize : cursor+(i+1)*intSize]))
		}
		cursor += n * intSize
		if phys.AttrIsSparse[attr] {
			out[attr] = NewSparseColumn(values, instanceCount)
		} else {
			out[attr] = &DenseColumn{Values: values}
		}
	}
	return out, nil
}
