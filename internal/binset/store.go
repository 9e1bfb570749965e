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
	"io"
	"os"

	"github.com/launix-de/snbayes/internal/trainerr"
)

// ChunkFileStore owns chunk files for slice > 1. A chunk's file
// lives entirely under one worker; no cross-worker file access happens.
type ChunkFileStore interface {
	// Create opens a fresh chunk file for writing.
	Create(path string) (io.WriteCloser, error)
	// OpenReader opens a chunk file for random-access reads (slice loads).
	OpenReader(path string) (ReaderAtCloser, error)
	// Size returns the current size in bytes of path.
	Size(path string) (int64, error)
	// Remove deletes a chunk file; used on abort and at
	// shutdown.
	Remove(path string) error
}

// ReaderAtCloser is the random-access handle LoadSlice needs to pull one
// slice's bytes without loading the whole chunk file.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// LocalFileStore is the default ChunkFileStore, one raw file per chunk on
// local disk.
type LocalFileStore struct {
	Dir string
}

func NewLocalFileStore(dir string) *LocalFileStore {
	os.MkdirAll(dir, 0750)
	return &LocalFileStore{Dir: dir}
}

func (l *LocalFileStore) path(name string) string { return l.Dir + "/" + name }

func (l *LocalFileStore) Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(l.path(path))
	if err != nil {
		return nil, trainerr.IOTransientError{Path: path, Op: "create", Err: err}
	}
	return f, nil
}

func (l *LocalFileStore) OpenReader(path string) (ReaderAtCloser, error) {
	f, err := os.Open(l.path(path))
	if err != nil {
		return nil, trainerr.IOTransientError{Path: path, Op: "open", Err: err}
	}
	return f, nil
}

func (l *LocalFileStore) Size(path string) (int64, error) {
	fi, err := os.Stat(l.path(path))
	if err != nil {
		return 0, trainerr.IOTransientError{Path: path, Op: "stat", Err: err}
	}
	return fi.Size(), nil
}

func (l *LocalFileStore) Remove(path string) error {
	err := os.Remove(l.path(path))
	if err != nil && !os.IsNotExist(err) {
		return trainerr.IOTransientError{Path: path, Op: "remove", Err: err}
	}
	return nil
}
