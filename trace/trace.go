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
package trace

import (
	"github.com/google/uuid"

	"github.com/evmcover/evmcover/vm/instruction"
)

// RunID identifies one test-run execution. In practice it is the hash of
// the originating transaction; it only ever acts as a set element, so any
// unique string will do.
type RunID string

// NewRunID generates a run identifier for executors that cannot supply a
// transaction hash.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// Step is one executed instruction, tagged with its source attribution.
// Contract or Source may be empty for synthetic steps that cannot be
// attributed to any source position.
type Step struct {
	PC       uint64             `json:"pc"`
	Op       instruction.OpCode `json:"op"`
	Contract string             `json:"contract"`
	Source   string             `json:"source"`
}

// Trace is the ordered instruction record of one run. Step order matters:
// conditional-jump outcomes are classified from the pc of the following
// step in the same trace.
type Trace struct {
	Run      RunID  `json:"run"`
	Receiver string `json:"receiver"`
	Steps    []Step `json:"steps"`
}

// HasReceiver reports whether the trace had a destination contract.
// Contract-creation-only transactions have none and are excluded from
// line attribution.
func (t *Trace) HasReceiver() bool {
	return t.Receiver != ""
}

// Options configures the trace producer. Threaded explicitly to keep the
// always-transact switch out of process-wide state.
type Options struct {
	// AlwaysTransact forces every contract call to be performed as a
	// transaction, so view calls also show up in the trace set.
	AlwaysTransact bool
}

// Provider supplies the traces recorded while running one test file.
type Provider interface {
	Traces(testFile string) ([]*Trace, error)
}
