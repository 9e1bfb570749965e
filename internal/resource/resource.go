/*
Copyright (C) 2024  Carl-Philip Hänsch

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

// Package resource plans the memory and disk budget a training run needs
// before any chunk file gets written: how many slices the attribute grid
// must be cut into to fit the shared and per-worker memory ceilings, and
// whether the working directory has enough free space for every worker's
// chunk file.
package resource

import (
	"fmt"

	units "github.com/docker/go-units"
	"golang.org/x/sys/unix"
)

// Plan is the outcome of sizing a run against a memory and disk budget.
type Plan struct {
	Chunks            int
	Slices            int
	SharedMemoryBytes int64
	PerWorkerBytes    int64
	DiskNeededBytes   int64
}

// Budget is the resource ceiling a run must fit inside.
type Budget struct {
	MaxSharedMemoryBytes    int64
	MaxPerWorkerMemoryBytes int64
	WorkingDir              string
}

// Estimate captures the raw sizing inputs derived from the prepared
// attribute grid: total instance count, attribute count, and the average
// per-instance-per-attribute footprint in bytes (4 for a dense int32
// column, less for sparse).
type Estimate struct {
	Instances         int
	Attributes        int
	Chunks            int
	BytesPerCell      int64
	SharedOverheadPct float64
}

// PlanFor derives the smallest slice count S that keeps one resident slice,
// across every worker, under the per-worker budget, and reports the
// resulting shared and per-worker memory footprint plus the disk space
// needed for every chunk file combined.
func PlanFor(est Estimate, budget Budget) (Plan, error) {
	if est.Chunks < 1 {
		return Plan{}, fmt.Errorf("resource: chunk count must be >= 1, got %d", est.Chunks)
	}
	totalBytes := int64(est.Instances) * int64(est.Attributes) * est.BytesPerCell
	sharedBytes := int64(float64(totalBytes) * est.SharedOverheadPct)
	if budget.MaxSharedMemoryBytes > 0 && sharedBytes > budget.MaxSharedMemoryBytes {
		return Plan{}, fmt.Errorf("resource: shared memory need of %s exceeds budget of %s",
			units.BytesSize(float64(sharedBytes)), units.BytesSize(float64(budget.MaxSharedMemoryBytes)))
	}

	slices := 1
	for {
		perWorker := bytesPerWorker(est, slices)
		if perWorker <= budget.MaxPerWorkerMemoryBytes || budget.MaxPerWorkerMemoryBytes == 0 {
			return Plan{
				Chunks:            est.Chunks,
				Slices:            slices,
				SharedMemoryBytes: sharedBytes,
				PerWorkerBytes:    perWorker,
				DiskNeededBytes:   diskNeeded(totalBytes, slices),
			}, nil
		}
		slices++
		if slices > est.Attributes {
			return Plan{}, fmt.Errorf("resource: no slice count fits per-worker budget of %s (attribute grid needs at least %s resident)",
				units.BytesSize(float64(budget.MaxPerWorkerMemoryBytes)), units.BytesSize(float64(bytesPerWorker(est, est.Attributes))))
		}
	}
}

func bytesPerWorker(est Estimate, slices int) int64 {
	instancesPerChunk := est.Instances / est.Chunks
	if est.Instances%est.Chunks != 0 {
		instancesPerChunk++
	}
	attrsPerSlice := est.Attributes / slices
	if est.Attributes%slices != 0 {
		attrsPerSlice++
	}
	return int64(instancesPerChunk) * int64(attrsPerSlice) * est.BytesPerCell
}

func diskNeeded(totalBytes int64, slices int) int64 {
	if slices <= 1 {
		return 0 // a single-slice run never spills to a chunk file
	}
	return totalBytes
}

// CheckDiskSpace reports an error narrating the shortfall, using
// unix.Statfs to read the filesystem's free space at dir, if fewer than
// needed bytes are free.
func CheckDiskSpace(dir string, needed int64) error {
	if needed == 0 {
		return nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("resource: statfs %s: %w", dir, err)
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	if free < needed {
		return fmt.Errorf("resource: %s needs %s free in %s, only %s available",
			"chunk file storage", units.BytesSize(float64(needed)), dir, units.BytesSize(float64(free)))
	}
	return nil
}

// Describe renders a Plan as a one-line human-readable summary.
func Describe(p Plan) string {
	return fmt.Sprintf("plan: %d chunks x %d slices, shared %s, per-worker %s, disk %s",
		p.Chunks, p.Slices,
		units.BytesSize(float64(p.SharedMemoryBytes)),
		units.BytesSize(float64(p.PerWorkerBytes)),
		units.BytesSize(float64(p.DiskNeededBytes)))
}
