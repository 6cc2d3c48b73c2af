// Copyright © 2020 Evmcover Authors <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package coverage

import (
	"fmt"

	"github.com/deckarep/golang-set"

	"github.com/evmcover/evmcover/trace"
)

// CoverageMap routes executed program counters to source positions:
// contract name -> source file -> function name. A map is built fresh for
// every test-file evaluation, mutated in place while that file's traces
// are replayed, then handed to the evaluator.
type CoverageMap map[string]SourceMap

// SourceMap holds the functions of every source file of one contract.
type SourceMap map[string]FunctionMap

// FunctionMap holds the per-function coverage records of one source file.
type FunctionMap map[string]*FunctionCoverage

// FunctionCoverage is the coverage state of a single function.
type FunctionCoverage struct {
	// PCs is the set of program counters belonging to this function.
	// Trace steps are routed here by membership test.
	PCs mapset.Set

	// HitRuns collects every run that executed any pc of the function,
	// even pcs that map to no line. The evaluator uses it for its
	// never-hit early exit.
	HitRuns mapset.Set

	// Lines in source order. Result sets refer to lines by index into
	// this slice.
	Lines []*LineRecord

	// TotalWeight is the percentage denominator: the sum over all lines
	// of 2 for a branch and 1 otherwise. Fixed at construction.
	TotalWeight int
}

// LineRecord is the coverage state of one source line.
type LineRecord struct {
	// PCs mapped to this line. Disjoint across the lines of a function.
	PCs mapset.Set

	// JumpPC is the conditional-jump pc associated with this line.
	// Only meaningful when Branch is true.
	JumpPC uint64

	// Branch marks lines guarded by a conditional jump. Such lines
	// weigh 2 units, one per observed outcome.
	Branch bool

	HitRuns   mapset.Set
	TrueRuns  mapset.Set
	FalseRuns mapset.Set
}

// Weight is the number of coverage units this line contributes to the
// function total.
func (ln *LineRecord) Weight() int {
	if ln.Branch {
		return 2
	}
	return 1
}

// Hit records that run executed this line.
func (ln *LineRecord) Hit(run trace.RunID) {
	ln.HitRuns.Add(run)
}

// LineSpec is the static description of one line, as supplied by the
// build-artifact loader.
type LineSpec struct {
	PCs  []uint64
	Jump *uint64
}

// NewFunctionCoverage builds the mutable coverage skeleton of one
// function and checks the structural invariants the recorder and
// evaluator rely on. Violations are programming/build defects, never
// runtime conditions, so they are returned as errors for the loader to
// fail fast on.
func NewFunctionCoverage(pcs []uint64, lines []LineSpec, total int) (*FunctionCoverage, error) {
	fn := &FunctionCoverage{
		PCs:     mapset.NewSet(),
		HitRuns: mapset.NewSet(),
	}
	for _, pc := range pcs {
		fn.PCs.Add(pc)
	}

	seen := mapset.NewSet()
	weight := 0
	for i, spec := range lines {
		ln := &LineRecord{
			PCs:       mapset.NewSet(),
			HitRuns:   mapset.NewSet(),
			TrueRuns:  mapset.NewSet(),
			FalseRuns: mapset.NewSet(),
		}
		for _, pc := range spec.PCs {
			if seen.Contains(pc) {
				return nil, fmt.Errorf("line %d: pc %d mapped to more than one line", i, pc)
			}
			if !fn.PCs.Contains(pc) {
				return nil, fmt.Errorf("line %d: pc %d outside the function pc set", i, pc)
			}
			seen.Add(pc)
			ln.PCs.Add(pc)
		}
		if spec.Jump != nil {
			ln.JumpPC = *spec.Jump
			ln.Branch = true
		}
		weight += ln.Weight()
		fn.Lines = append(fn.Lines, ln)
	}
	if weight != total {
		return nil, fmt.Errorf("total weight mismatch: artifact says %d, lines sum to %d", total, weight)
	}
	fn.TotalWeight = total
	return fn, nil
}

// FindByPC returns the function owning pc, or nil when pc belongs to
// code outside the tracked map (library or metadata bytes).
func (fns FunctionMap) FindByPC(pc uint64) *FunctionCoverage {
	for _, fn := range fns {
		if fn.PCs.Contains(pc) {
			return fn
		}
	}
	return nil
}

// lineByPC returns the line whose pc set contains pc, or nil.
func (fn *FunctionCoverage) lineByPC(pc uint64) *LineRecord {
	for _, ln := range fn.Lines {
		if ln.PCs.Contains(pc) {
			return ln
		}
	}
	return nil
}

// lineByJumpPC returns the branch line whose conditional jump sits at
// pc, or nil.
func (fn *FunctionCoverage) lineByJumpPC(pc uint64) *LineRecord {
	for _, ln := range fn.Lines {
		if ln.Branch && ln.JumpPC == pc {
			return ln
		}
	}
	return nil
}
