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

// Command sbtrain is a thin reference harness around pkg/snbayes: it reads
// a prepared attribute grid assembled by loadDataset and runs one
// training pass, printing the resulting predictor specification. Parsing
// a caller's raw tabular data into that prepared grid is a separate
// concern this command does not cover.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/launix-de/snbayes/internal/binset"
	"github.com/launix-de/snbayes/pkg/snbayes"
)

func main() {
	dir := flag.String("dir", "", "directory holding <name>.col attribute files, target.col and classfreq.col")
	maxSelected := flag.Int("max-selected", 0, "cap on the number of selected attributes (0 = unlimited)")
	flag.Parse()

	if *dir == "" {
		log.Fatal("sbtrain: -dir is required")
	}

	ds, err := loadDataset(*dir)
	if err != nil {
		log.Fatalf("sbtrain: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report, err := snbayes.Train(ctx, ds, snbayes.Config{MaxSelectedAttributes: *maxSelected})
	if err != nil {
		log.Printf("sbtrain: %v", err)
	}
	fmt.Println(report.Summary())
	for _, a := range report.Selected {
		fmt.Printf("  %-32s weight=%.4f importance=%.4f\n", a.NativeName, a.Weight, a.Importance)
	}
}

// loadDataset reads the minimal raw-int32-file layout this harness
// accepts: target.col and classfreq.col carry the target, and every other
// <name>.col file is one dense attribute column of part indexes, its
// own part count taken to be one plus the largest value present.
func loadDataset(dir string) (snbayes.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return snbayes.Dataset{}, err
	}

	target, err := readInt32File(filepath.Join(dir, "target.col"))
	if err != nil {
		return snbayes.Dataset{}, fmt.Errorf("reading target.col: %w", err)
	}
	classFreq, err := readInt32File(filepath.Join(dir, "classfreq.col"))
	if err != nil {
		return snbayes.Dataset{}, fmt.Errorf("reading classfreq.col: %w", err)
	}

	ds := snbayes.Dataset{
		Instances:   len(target),
		TargetClass: toIntSlice(target),
		ClassFreq:   toIntSlice(classFreq),
		Columns:     make(map[int]binset.Column),
	}

	idx := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == "target.col" || name == "classfreq.col" || !strings.HasSuffix(name, ".col") {
			continue
		}
		values, err := readInt32File(filepath.Join(dir, name))
		if err != nil {
			return snbayes.Dataset{}, fmt.Errorf("reading %s: %w", name, err)
		}
		numParts := 0
		for _, v := range values {
			if int(v)+1 > numParts {
				numParts = int(v) + 1
			}
		}
		ds.Attributes = append(ds.Attributes, snbayes.PreparedAttribute{
			Index:      idx,
			NativeName: strings.TrimSuffix(name, ".col"),
			NumParts:   numParts,
			LogProb:    make([]float64, numParts*len(ds.ClassFreq)),
		})
		ds.Columns[idx] = &binset.DenseColumn{Values: values}
		idx++
	}
	return ds, nil
}

func readInt32File(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	out := make([]int32, info.Size()/4)
	if err := binary.Read(f, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func toIntSlice(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
