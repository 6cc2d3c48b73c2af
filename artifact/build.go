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
package artifact

import (
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/deckarep/golang-set"
	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/evmcover/evmcover/coverage"
	"github.com/evmcover/evmcover/vm/code"
	vmcommon "github.com/evmcover/evmcover/vm/common"
)

const buildCacheSize = 64

// Build is a parsed compiler artifact, as written by the build pipeline
// under <builddir>/contracts/<Name>.json.
type Build struct {
	ContractName string                            `json:"contractName"`
	Bytecode     string                            `json:"bytecode"`
	CoverageMap  map[string]map[string]RawFunction `json:"coverageMap"`
}

// RawFunction mirrors one function block of an artifact's coverageMap.
type RawFunction struct {
	Fn    RawPCSet  `json:"fn"`
	Line  []RawLine `json:"line"`
	Total int       `json:"total"`
}

type RawPCSet struct {
	PC []uint64 `json:"pc"`
}

type RawLine struct {
	PC   []uint64 `json:"pc"`
	Jump *uint64  `json:"jump"`
}

// Loader reads build artifacts by contract name. Parsed artifacts are
// immutable and LRU-cached; the mutable coverage skeletons handed out by
// CoverageMap are built fresh on every call, so concurrent evaluations
// never alias each other's state.
type Loader struct {
	dir   string
	cache *lru.Cache
}

func NewLoader(buildDir string) (*Loader, error) {
	cache, err := lru.New(buildCacheSize)
	if err != nil {
		return nil, err
	}
	return &Loader{dir: buildDir, cache: cache}, nil
}

// Path returns the artifact location for a contract name.
func (l *Loader) Path(name string) string {
	return filepath.Join(l.dir, "contracts", name+".json")
}

// Build returns the parsed artifact of a contract.
func (l *Loader) Build(name string) (*Build, error) {
	if v, ok := l.cache.Get(name); ok {
		return v.(*Build), nil
	}
	path := l.Path(name)
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read build artifact %s", path)
	}
	build := &Build{}
	if err := json.Unmarshal(data, build); err != nil {
		return nil, errors.Wrapf(err, "decode build artifact %s", path)
	}
	if build.ContractName == "" {
		build.ContractName = name
	}
	l.cache.Add(name, build)
	return build, nil
}

// CoverageMap builds a fresh mutable coverage skeleton for a contract.
// Structural invariants are checked here, at construction time: pc sets
// must be disjoint across the functions of a source file and every pc
// must land on an instruction start of the compiled bytecode.
func (l *Loader) CoverageMap(name string) (coverage.SourceMap, error) {
	build, err := l.Build(name)
	if err != nil {
		return nil, err
	}
	checker := newPCChecker(build.Bytecode)
	sources := make(coverage.SourceMap, len(build.CoverageMap))
	for source, fns := range build.CoverageMap {
		functions := make(coverage.FunctionMap, len(fns))
		claimed := mapset.NewSet()
		for fnName, raw := range fns {
			for _, pc := range raw.Fn.PC {
				if claimed.Contains(pc) {
					return nil, errors.Errorf("%s: %s: pc %d claimed by more than one function of %s",
						name, fnName, pc, source)
				}
				claimed.Add(pc)
				if !checker.instructionStart(pc) {
					return nil, errors.Errorf("%s: %s: pc %d is not an instruction start",
						name, fnName, pc)
				}
			}
			lines := make([]coverage.LineSpec, len(raw.Line))
			for i, rl := range raw.Line {
				lines[i] = coverage.LineSpec{PCs: rl.PC, Jump: rl.Jump}
			}
			fn, err := coverage.NewFunctionCoverage(raw.Fn.PC, lines, raw.Total)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: function %s", name, fnName)
			}
			functions[fnName] = fn
		}
		sources[source] = functions
	}
	return sources, nil
}

// FunctionWeights implements coverage.WeightSource.
func (l *Loader) FunctionWeights(contract, source, fn string) ([]bool, int, error) {
	build, err := l.Build(contract)
	if err != nil {
		return nil, 0, err
	}
	fns, ok := build.CoverageMap[source]
	if !ok {
		return nil, 0, errors.Errorf("%s: no coverage map for source %s", contract, source)
	}
	raw, ok := fns[fn]
	if !ok {
		return nil, 0, errors.Errorf("%s: no coverage map for function %s", contract, fn)
	}
	branch := make([]bool, len(raw.Line))
	for i, ln := range raw.Line {
		branch[i] = ln.Jump != nil
	}
	return branch, raw.Total, nil
}

// pcChecker validates that map pcs point at opcodes rather than PUSH
// data. Artifacts with unlinked library placeholders are not valid hex;
// for those the check degrades to a no-op.
type pcChecker struct {
	bits    vmcommon.Bitvec
	codeLen uint64
	ok      bool
}

func newPCChecker(bytecode string) *pcChecker {
	raw, err := hex.DecodeString(strings.TrimPrefix(bytecode, "0x"))
	if err != nil {
		logrus.WithError(err).Debug("bytecode not hex-decodable, skipping instruction-start checks")
		return &pcChecker{}
	}
	return &pcChecker{
		bits:    code.CodeBitmap(raw),
		codeLen: uint64(len(raw)),
		ok:      true,
	}
}

func (c *pcChecker) instructionStart(pc uint64) bool {
	if !c.ok {
		return true
	}
	return code.InstructionStart(c.bits, c.codeLen, pc)
}
