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

package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evmcover/evmcover/artifact"
	"github.com/evmcover/evmcover/common/io"
	"github.com/evmcover/evmcover/common/utilfuncs"
	"github.com/evmcover/evmcover/coverage"
	"github.com/evmcover/evmcover/mylog"
	"github.com/evmcover/evmcover/trace"
)

// coverCmd represents the cover command
var coverCmd = &cobra.Command{
	Use:   "cover [testfile...]",
	Short: "Replay recorded traces and evaluate test coverage",
	Long: `Replays the trace dumps recorded while running unit tests against the
static coverage maps of the compiled contracts, evaluates per-function
coverage and saves the results under <builddir>/coverage`,
	Run: func(cmd *cobra.Command, args []string) {
		readConfig()
		mylog.InitLogger()
		runCover(args)
	},
}

func init() {
	coverCmd.Flags().Bool("update", false, "Only evaluate coverage for changed contracts/tests")
	coverCmd.Flags().Bool("verify-hashes", true, "Verify artifact hashes before reusing cached coverage")
	coverCmd.Flags().Bool("always-transact", false, "Expect all contract calls to have been performed as transactions")
	coverCmd.Flags().String("range", "", "Number or range of traces to replay from a single dump (eg. 4 or 1:4)")

	_ = viper.BindPFlag("coverage.update", coverCmd.Flags().Lookup("update"))
	_ = viper.BindPFlag("coverage.verify_hashes", coverCmd.Flags().Lookup("verify-hashes"))
	_ = viper.BindPFlag("coverage.always_transact", coverCmd.Flags().Lookup("always-transact"))
	_ = viper.BindPFlag("coverage.range", coverCmd.Flags().Lookup("range"))

	rootCmd.AddCommand(coverCmd)
}

func runCover(args []string) {
	buildDir := viper.GetString("builddir")
	traceDir := viper.GetString("tracedir")

	loader, err := artifact.NewLoader(buildDir)
	utilfuncs.PanicIfError(err, "Error on creating artifact loader")

	opts := trace.Options{AlwaysTransact: viper.GetBool("coverage.always_transact")}
	provider := trace.NewDumpReader(traceDir, opts)
	mode := "calls"
	if opts.AlwaysTransact {
		mode = "transactions"
	}
	fmt.Printf("Contract calls were handled as: %s\n", mode)

	testFiles := args
	if len(testFiles) == 0 {
		testFiles, err = listDumps(traceDir)
		utilfuncs.PanicIfError(err, fmt.Sprintf("Error on listing trace dumps in %s", traceDir))
	}

	rangeSpec := viper.GetString("coverage.range")
	if rangeSpec != "" && len(testFiles) != 1 {
		fmt.Println("ERROR: Cannot specify a range when running multiple test files.")
		os.Exit(1)
	}

	gate := artifact.ChangeGate{VerifyHashes: viper.GetBool("coverage.verify_hashes")}
	update := viper.GetBool("coverage.update")

	var reports []*coverage.Report
	for _, testFile := range testFiles {
		name := dumpName(testFile)
		reportPath := filepath.Join(buildDir, "coverage", name+".json")

		if update && gate.ShouldSkip(reportPath) {
			cached, err := coverage.LoadReport(reportPath)
			if err == nil {
				logrus.WithField("test", name).Info("coverage unchanged, reusing cached report")
				reports = append(reports, cached)
				continue
			}
			logrus.WithError(err).WithField("test", name).Warn("cached report unreadable, recomputing")
		}

		traces, err := provider.Traces(testFile)
		if err != nil {
			logrus.WithError(err).WithField("test", name).Warn("no traces, skipping test file")
			continue
		}
		if rangeSpec != "" {
			lo, hi, rerr := parseRange(rangeSpec, len(traces))
			if rerr != nil {
				fmt.Println("ERROR: Invalid range. Must be an integer or slice (eg. 1:4)")
				os.Exit(1)
			}
			traces = traces[lo:hi]
		}

		recorder := coverage.NewRecorder(loader)
		recorder.RecordAll(traces)

		report := coverage.NewReport()
		report.Contracts = coverage.Evaluate(recorder.Maps())
		hashArtifacts(report, loader, recorder.Contracts(), provider.DumpPath(testFile))
		reports = append(reports, report)

		if rangeSpec != "" {
			// partial replay, keep whatever full report is on disk
			continue
		}
		err = report.WriteFile(reportPath)
		utilfuncs.PanicIfError(err, fmt.Sprintf("Error on writing coverage report for %s", name))
		logrus.WithFields(logrus.Fields{
			"test":   name,
			"report": reportPath,
		}).Info("coverage evaluated")
	}

	fmt.Println("\nCoverage analysis complete!")
	merged := coverage.Merge(reports, loader)
	if rangeSpec == "" {
		err = merged.WriteFile(filepath.Join(buildDir, "coverage.json"))
		utilfuncs.PanicIfError(err, "Error on writing merged coverage report")
	}
	printSummary(merged)
	fmt.Printf("\nDetailed reports saved in %s\n", filepath.Join(buildDir, "coverage"))
}

// hashArtifacts records the metadata-stripped bytecode hash of every
// implicated contract plus the dump file hash, for downstream staleness
// comparison.
func hashArtifacts(report *coverage.Report, loader *artifact.Loader, contracts []string, dumpPath string) {
	for _, name := range contracts {
		build, err := loader.Build(name)
		if err != nil {
			continue
		}
		report.Hashes[loader.Path(name)] = artifact.BytecodeHash(build.Bytecode)
	}
	if io.FileExists(dumpPath) {
		if digest, err := artifact.FileHash(dumpPath); err == nil {
			report.Hashes[dumpPath] = digest
		}
	}
}

// dumpName strips folder and dump suffixes from a test file argument.
func dumpName(testFile string) string {
	base := filepath.Base(testFile)
	base = strings.TrimSuffix(base, trace.SnappySuffix)
	return strings.TrimSuffix(base, ".json")
}

// listDumps enumerates the dump files of a trace folder, deduplicating
// plain/compressed pairs.
func listDumps(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, trace.SnappySuffix) {
			continue
		}
		base := dumpName(name)
		if seen[base] {
			continue
		}
		seen[base] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// parseRange turns the 1-based "N" form into [N-1,N) and "A:B" into
// [A-1,B), clamped to n.
func parseRange(spec string, n int) (int, int, error) {
	var lo, hi int
	if strings.Contains(spec, ":") {
		parts := strings.SplitN(spec, ":", 2)
		a, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, 0, err
		}
		b, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, err
		}
		lo, hi = a-1, b
	} else {
		a, err := strconv.Atoi(spec)
		if err != nil {
			return 0, 0, err
		}
		lo, hi = a-1, a
	}
	if lo < 0 || hi < lo {
		return 0, 0, fmt.Errorf("invalid range %q", spec)
	}
	if hi > n {
		hi = n
	}
	if lo > n {
		lo = n
	}
	return lo, hi, nil
}
