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

// Package trainerr carries the typed error kinds a training run can fail
// with, so a master can decide how to report a worker's failure without
// string-matching messages.
package trainerr

import (
	"fmt"
	"runtime/debug"
)

// MemoryExhaustedError is returned when a fixed resource budget (a sparse
// block, a column allocation, a calculator pool) is exceeded. OverflowBytes
// is the exact amount the caller needs to add to the budget to succeed.
type MemoryExhaustedError struct {
	Resource      string
	OverflowBytes int64
}

func (e MemoryExhaustedError) Error() string {
	return fmt.Sprintf("not enough memory for %s: over budget by %d bytes", e.Resource, e.OverflowBytes)
}

// IOCorruptionError marks a chunk file (or other on-disk artefact) whose
// contents do not match their expected structure, e.g. a size mismatch.
type IOCorruptionError struct {
	Path    string
	Detail  string
}

func (e IOCorruptionError) Error() string {
	return fmt.Sprintf("corrupted file %s: %s", e.Path, e.Detail)
}

// IOTransientError wraps a failed read/write syscall on a chunk file.
type IOTransientError struct {
	Path string
	Op   string
	Err  error
}

func (e IOTransientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e IOTransientError) Unwrap() error { return e.Err }

// InvariantViolationError is raised when an internal consistency check
// fails (e.g. two target parts sharing a signature). It is always promoted
// to a fatal training error; it is never expected to be recovered from.
type InvariantViolationError struct {
	Component string
	Detail    string
	Stack     string
}

func (e InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s\n%s", e.Component, e.Detail, e.Stack)
}

// NewInvariantViolation captures the current stack at the point of
// detection.
func NewInvariantViolation(component, detail string) InvariantViolationError {
	return InvariantViolationError{Component: component, Detail: detail, Stack: string(debug.Stack())}
}

// InterruptedError marks a cooperative user interruption of a training run.
type InterruptedError struct {
	ElapsedSeconds float64
}

func (e InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by user after %.1fs", e.ElapsedSeconds)
}

// WorkerPanic wraps a recovered panic from a worker goroutine together with
// the chunk it was processing and a stack trace.
type WorkerPanic struct {
	ChunkIndex int
	Recovered  interface{}
	Stack      string
}

func (e WorkerPanic) Error() string {
	return fmt.Sprintf("worker for chunk %d panicked: %v\n%s", e.ChunkIndex, e.Recovered, e.Stack)
}

func NewWorkerPanic(chunkIndex int, r interface{}) WorkerPanic {
	return WorkerPanic{ChunkIndex: chunkIndex, Recovered: r, Stack: string(debug.Stack())}
}
