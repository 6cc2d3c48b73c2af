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
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/evmcover/evmcover/trace"
	"github.com/evmcover/evmcover/vm/instruction"
)

// MapSource supplies the coverage-map skeleton of a contract, keyed by
// contract name. Implemented by the build-artifact loader.
type MapSource interface {
	CoverageMap(contract string) (SourceMap, error)
}

// Recorder replays execution traces onto a coverage map. It owns the map
// exclusively while recording; hand the map to Evaluate only after every
// trace of the test file has been recorded.
//
// Steps of one trace must be processed in order: a conditional jump is
// classified from the pc of the step that follows it.
type Recorder struct {
	source MapSource
	maps   CoverageMap

	// contracts whose artifact could not be loaded. Their steps are
	// unattributable and silently skipped.
	missing map[string]bool
}

func NewRecorder(source MapSource) *Recorder {
	return &Recorder{
		source:  source,
		maps:    make(CoverageMap),
		missing: make(map[string]bool),
	}
}

// Maps exposes the coverage map populated so far.
func (r *Recorder) Maps() CoverageMap {
	return r.maps
}

// Contracts lists the contract names touched by the recorded traces, in
// stable order. Used for report hashing.
func (r *Recorder) Contracts() []string {
	names := make([]string, 0, len(r.maps))
	for name := range r.maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordAll replays a batch of traces.
func (r *Recorder) RecordAll(traces []*trace.Trace) {
	for _, tr := range traces {
		r.Record(tr)
	}
}

// Record attributes every executed instruction of tr to exactly one line
// record, or skips it when it cannot be matched. A trace without a
// receiver (contract creation only) contributes nothing.
func (r *Recorder) Record(tr *trace.Trace) {
	if !tr.HasReceiver() {
		return
	}
	for i := range tr.Steps {
		step := &tr.Steps[i]
		if step.Contract == "" || step.Source == "" {
			continue
		}
		sources := r.sourceMap(step.Contract)
		if sources == nil {
			continue
		}
		fns, ok := sources[step.Source]
		if !ok {
			continue
		}
		fn := fns.FindByPC(step.PC)
		if fn == nil {
			// code outside the tracked map, e.g. library or
			// metadata bytes
			continue
		}
		fn.HitRuns.Add(tr.Run)

		if step.Op != instruction.JUMPI {
			if ln := fn.lineByPC(step.PC); ln != nil {
				ln.Hit(tr.Run)
			}
			continue
		}

		ln := fn.lineByJumpPC(step.PC)
		if ln == nil {
			// optimizer-inserted jump with no line record
			continue
		}
		// The jump outcome only means something once the guarded line
		// itself was hit by this run. Otherwise the jump was reached
		// by control flow not yet classified; skip this occurrence.
		if !ln.HitRuns.Contains(tr.Run) {
			continue
		}
		if i+1 >= len(tr.Steps) {
			// trace ends on the jump, outcome unknowable
			continue
		}
		if tr.Steps[i+1].PC == step.PC+1 {
			ln.FalseRuns.Add(tr.Run)
		} else {
			ln.TrueRuns.Add(tr.Run)
		}
	}
}

// sourceMap lazily fetches the coverage map of a contract the first time
// one of its steps shows up. Contracts without a loadable artifact are
// remembered and skipped from then on; partial coverage data is still
// useful, so this is never an error.
func (r *Recorder) sourceMap(contract string) SourceMap {
	if sources, ok := r.maps[contract]; ok {
		return sources
	}
	if r.missing[contract] {
		return nil
	}
	sources, err := r.source.CoverageMap(contract)
	if err != nil {
		logrus.WithError(err).WithField("contract", contract).
			Debug("no coverage map, steps of this contract will not be attributed")
		r.missing[contract] = true
		return nil
	}
	r.maps[contract] = sources
	return sources
}
