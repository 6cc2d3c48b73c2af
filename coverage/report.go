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
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/evmcover/evmcover/common/io"
)

// FunctionResult is the evaluated coverage of one function. A fully
// covered function is just {pct: 1} and a never-hit one {pct: 0}; the
// index sets are only carried while coverage is incomplete.
type FunctionResult struct {
	Pct float64 `json:"pct"`

	// Line holds the indices of fully covered lines; True and False
	// the indices of branch lines where only that outcome was seen.
	Line  []int `json:"line,omitempty"`
	True  []int `json:"true,omitempty"`
	False []int `json:"false,omitempty"`
}

// Results is the evaluated form of a coverage map: contract -> source
// file -> function name.
type Results map[string]map[string]map[string]*FunctionResult

// Report is the externally observable coverage artifact, one per test
// file until merged.
type Report struct {
	Contracts Results `json:"contracts"`

	// Hashes maps artifact paths to sha1 hex digests (bytecode hashed
	// with its metadata suffix stripped) for downstream staleness
	// comparison.
	Hashes map[string]string `json:"sha1"`
}

func NewReport() *Report {
	return &Report{
		Contracts: make(Results),
		Hashes:    make(map[string]string),
	}
}

// Function returns the result slot for the given function, allocating
// intermediate maps as needed.
func (r *Report) Function(contract, source, fn string) *FunctionResult {
	sources, ok := r.Contracts[contract]
	if !ok {
		return nil
	}
	fns, ok := sources[source]
	if !ok {
		return nil
	}
	return fns[fn]
}

func (r *Report) setFunction(contract, source, fn string, res *FunctionResult) {
	if _, ok := r.Contracts[contract]; !ok {
		r.Contracts[contract] = make(map[string]map[string]*FunctionResult)
	}
	if _, ok := r.Contracts[contract][source]; !ok {
		r.Contracts[contract][source] = make(map[string]*FunctionResult)
	}
	r.Contracts[contract][source][fn] = res
}

// WriteFile persists the report as indented JSON, creating parent
// folders as needed.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode coverage report")
	}
	if err := io.MkDirIfNotExists(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "create report folder for %s", path)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write coverage report %s", path)
	}
	return nil
}

// LoadReport reads a report previously written by WriteFile.
func LoadReport(path string) (*Report, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read coverage report %s", path)
	}
	report := NewReport()
	if err := json.Unmarshal(data, report); err != nil {
		return nil, errors.Wrapf(err, "decode coverage report %s", path)
	}
	return report, nil
}

// sortedInts turns a set of line indices into the sorted slice form used
// in reports. Empty sets become nil so they are omitted from the JSON.
func sortedInts(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
