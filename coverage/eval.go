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
	"math"
)

// Evaluate converts a populated coverage map into per-function results.
// The outcome depends only on the accumulated run sets, never on the
// order the traces were recorded in.
func Evaluate(maps CoverageMap) Results {
	results := make(Results)
	for contract, sources := range maps {
		results[contract] = make(map[string]map[string]*FunctionResult)
		for source, fns := range sources {
			results[contract][source] = make(map[string]*FunctionResult)
			for name, fn := range fns {
				results[contract][source][name] = evaluateFunction(fn)
			}
		}
	}
	return results
}

func evaluateFunction(fn *FunctionCoverage) *FunctionResult {
	if fn.HitRuns.Cardinality() == 0 {
		return &FunctionResult{Pct: 0}
	}

	score := 0
	hitAny := false
	line := make(map[int]bool)
	trueOnly := make(map[int]bool)
	falseOnly := make(map[int]bool)

	for idx, ln := range fn.Lines {
		if ln.HitRuns.Cardinality() == 0 {
			continue
		}
		hitAny = true
		if !ln.Branch {
			score++
			line[idx] = true
			continue
		}
		trueN := ln.TrueRuns.Cardinality()
		falseN := ln.FalseRuns.Cardinality()
		switch {
		case trueN > 0 && falseN > 0:
			score += 2
			line[idx] = true
		case trueN > 0:
			score++
			trueOnly[idx] = true
		case falseN > 0:
			score++
			falseOnly[idx] = true
		}
		// a branch line hit but never classified contributes nothing
	}
	if !hitAny {
		return &FunctionResult{Pct: 0}
	}
	if score == fn.TotalWeight {
		return &FunctionResult{Pct: 1}
	}
	return &FunctionResult{
		Pct:   round2(float64(score) / float64(fn.TotalWeight)),
		Line:  sortedInts(line),
		True:  sortedInts(trueOnly),
		False: sortedInts(falseOnly),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
