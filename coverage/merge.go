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
	"errors"

	"github.com/sirupsen/logrus"
)

var (
	errNoWeights    = errors.New("no weight source")
	errStaleIndices = errors.New("line indices exceed current artifact")
)

// WeightSource resolves the static weights of a function so a merged
// percentage can be recomputed from unioned index sets. Implemented by
// the build-artifact loader.
type WeightSource interface {
	// FunctionWeights returns, per line index, whether the line is a
	// branch, plus the function's total weight.
	FunctionWeights(contract, source, fn string) (branch []bool, total int, err error)
}

// mergedFn accumulates the evidence of one function across reports.
type mergedFn struct {
	full      bool
	maxPct    float64
	line      map[int]bool
	trueOnly  map[int]bool
	falseOnly map[int]bool
}

// Merge combines per-test-file reports into one aggregate report.
// Covered sets are unioned — coverage only ever grows with additional
// evidence — and the merged percentage is recomputed from the union
// rather than averaged, since different files may exercise disjoint
// lines. When weights cannot resolve a function (its artifact is gone),
// the merge falls back to the highest input percentage, which preserves
// monotonicity.
func Merge(reports []*Report, weights WeightSource) *Report {
	merged := NewReport()
	fns := make(map[string]map[string]map[string]*mergedFn)

	for _, report := range reports {
		if report == nil {
			continue
		}
		for path, digest := range report.Hashes {
			merged.Hashes[path] = digest
		}
		for contract, sources := range report.Contracts {
			if _, ok := fns[contract]; !ok {
				fns[contract] = make(map[string]map[string]*mergedFn)
			}
			for source, functions := range sources {
				if _, ok := fns[contract][source]; !ok {
					fns[contract][source] = make(map[string]*mergedFn)
				}
				for name, res := range functions {
					m, ok := fns[contract][source][name]
					if !ok {
						m = &mergedFn{
							line:      make(map[int]bool),
							trueOnly:  make(map[int]bool),
							falseOnly: make(map[int]bool),
						}
						fns[contract][source][name] = m
					}
					m.absorb(res)
				}
			}
		}
	}

	for contract, sources := range fns {
		for source, functions := range sources {
			for name, m := range functions {
				merged.setFunction(contract, source, name, m.finalize(weights, contract, source, name))
			}
		}
	}
	return merged
}

func (m *mergedFn) absorb(res *FunctionResult) {
	if res == nil {
		return
	}
	if res.Pct >= 1 {
		m.full = true
	}
	if res.Pct > m.maxPct {
		m.maxPct = res.Pct
	}
	for _, idx := range res.Line {
		m.line[idx] = true
	}
	for _, idx := range res.True {
		m.trueOnly[idx] = true
	}
	for _, idx := range res.False {
		m.falseOnly[idx] = true
	}
}

func (m *mergedFn) finalize(weights WeightSource, contract, source, name string) *FunctionResult {
	if m.full {
		return &FunctionResult{Pct: 1}
	}

	// one file saw the true outcome, another the false one: the branch
	// is fully covered in the union
	for idx := range m.trueOnly {
		if m.falseOnly[idx] {
			m.line[idx] = true
		}
	}
	for idx := range m.line {
		delete(m.trueOnly, idx)
		delete(m.falseOnly, idx)
	}

	if len(m.line) == 0 && len(m.trueOnly) == 0 && len(m.falseOnly) == 0 {
		return &FunctionResult{Pct: 0}
	}

	partial := &FunctionResult{
		Line:  sortedInts(m.line),
		True:  sortedInts(m.trueOnly),
		False: sortedInts(m.falseOnly),
	}

	branch, total, err := m.resolveWeights(weights, contract, source, name)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"contract": contract,
			"function": name,
		}).Debug("weights unavailable, keeping highest observed percentage")
		partial.Pct = m.maxPct
		return partial
	}

	score := 0
	for idx := range m.line {
		if branch[idx] {
			score += 2
		} else {
			score++
		}
	}
	score += len(m.trueOnly) + len(m.falseOnly)

	if score == total {
		return &FunctionResult{Pct: 1}
	}
	partial.Pct = round2(float64(score) / float64(total))
	return partial
}

func (m *mergedFn) resolveWeights(weights WeightSource, contract, source, name string) ([]bool, int, error) {
	if weights == nil {
		return nil, 0, errNoWeights
	}
	branch, total, err := weights.FunctionWeights(contract, source, name)
	if err != nil {
		return nil, 0, err
	}
	// reports written against a different build may carry indices the
	// current artifact does not know
	for idx := range m.line {
		if idx >= len(branch) {
			return nil, 0, errStaleIndices
		}
	}
	for idx := range m.trueOnly {
		if idx >= len(branch) {
			return nil, 0, errStaleIndices
		}
	}
	for idx := range m.falseOnly {
		if idx >= len(branch) {
			return nil, 0, errStaleIndices
		}
	}
	return branch, total, nil
}
