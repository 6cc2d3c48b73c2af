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
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/evmcover/evmcover/common/io"
)

// SnappySuffix marks snappy-compressed dump files. Trace dumps of larger
// test suites easily reach tens of megabytes of JSON, so the harness may
// compress them.
const SnappySuffix = ".snappy"

// DumpReader reads trace dumps written by the test harness, one dump file
// per test file. It implements Provider.
type DumpReader struct {
	dir  string
	opts Options
}

func NewDumpReader(dir string, opts Options) *DumpReader {
	if opts.AlwaysTransact {
		logrus.Debug("always-transact requested; dumps are expected to contain view call traces")
	}
	return &DumpReader{dir: dir, opts: opts}
}

// Traces loads the dump recorded for testFile. Both plain and
// snappy-compressed dumps are accepted; the compressed form wins when
// both exist.
func (r *DumpReader) Traces(testFile string) ([]*Trace, error) {
	path := r.DumpPath(testFile)
	if !io.FileExists(path) {
		plain := strings.TrimSuffix(path, SnappySuffix)
		if path == plain || !io.FileExists(plain) {
			return nil, errors.Errorf("no trace dump for %s", testFile)
		}
		path = plain
	}
	return ReadDump(path)
}

// DumpPath returns the location where the dump for testFile is expected.
func (r *DumpReader) DumpPath(testFile string) string {
	name := testFile
	if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, SnappySuffix) {
		name += ".json"
	}
	path := filepath.Join(r.dir, name)
	if io.FileExists(path + SnappySuffix) {
		return path + SnappySuffix
	}
	return path
}

// ReadDump decodes a single trace dump file.
func ReadDump(path string) ([]*Trace, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read trace dump %s", path)
	}
	if strings.HasSuffix(path, SnappySuffix) {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.Wrapf(err, "decompress trace dump %s", path)
		}
	}
	var traces []*Trace
	if err := json.Unmarshal(data, &traces); err != nil {
		return nil, errors.Wrapf(err, "decode trace dump %s", path)
	}
	logrus.WithFields(logrus.Fields{
		"path":   path,
		"traces": len(traces),
	}).Debug("trace dump loaded")
	return traces, nil
}

// WriteDump encodes traces to path, compressing when path carries the
// snappy suffix. Used by harnesses feeding the cover command.
func WriteDump(path string, traces []*Trace) error {
	data, err := json.Marshal(traces)
	if err != nil {
		return errors.Wrap(err, "encode trace dump")
	}
	if strings.HasSuffix(path, SnappySuffix) {
		data = snappy.Encode(nil, data)
	}
	if err := io.MkDirIfNotExists(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "create dump folder for %s", path)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write trace dump %s", path)
	}
	return nil
}
