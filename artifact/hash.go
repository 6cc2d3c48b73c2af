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
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/evmcover/evmcover/common/io"
	"github.com/evmcover/evmcover/coverage"
)

// MetadataSuffixLen is the length, in hex characters, of the swarm-hash
// metadata the compiler appends to bytecode. The suffix differs between
// otherwise identical builds and must not affect change detection.
const MetadataSuffixLen = 68

// BytecodeHash is the sha1 hex digest of a bytecode string with its
// trailing metadata suffix stripped.
func BytecodeHash(bytecode string) string {
	if len(bytecode) > MetadataSuffixLen {
		bytecode = bytecode[:len(bytecode)-MetadataSuffixLen]
	}
	sum := sha1.Sum([]byte(bytecode))
	return hex.EncodeToString(sum[:])
}

// FileHash is the sha1 hex digest of a file's raw bytes.
func FileHash(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Rehash recomputes the digest recorded for path in a report's sha1
// dict: build artifacts hash their metadata-stripped bytecode, anything
// else hashes raw.
func Rehash(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	var build Build
	if json.Unmarshal(data, &build) == nil && build.Bytecode != "" {
		return BytecodeHash(build.Bytecode), nil
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChangeGate decides whether a previously written coverage report is
// still valid, so the whole record-and-evaluate pass for its test file
// can be skipped in update mode.
type ChangeGate struct {
	// VerifyHashes requires every digest stored in the cached report to
	// match a freshly computed one before skipping. With it disabled the
	// mere presence of a prior report is enough — faster, but silently
	// reuses stale coverage when contracts or tests changed.
	VerifyHashes bool
}

// ShouldSkip reports whether the cached report at reportPath makes
// recomputation unnecessary.
func (g ChangeGate) ShouldSkip(reportPath string) bool {
	if !io.FileExists(reportPath) {
		return false
	}
	if !g.VerifyHashes {
		return true
	}
	report, err := coverage.LoadReport(reportPath)
	if err != nil {
		logrus.WithError(err).Warn("cached report unreadable, recomputing")
		return false
	}
	if len(report.Hashes) == 0 {
		return false
	}
	for path, digest := range report.Hashes {
		current, err := Rehash(path)
		if err != nil || current != digest {
			return false
		}
	}
	return true
}
