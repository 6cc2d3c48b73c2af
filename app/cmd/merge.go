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
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evmcover/evmcover/artifact"
	"github.com/evmcover/evmcover/common/utilfuncs"
	"github.com/evmcover/evmcover/coverage"
	"github.com/evmcover/evmcover/mylog"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge [reportfile...]",
	Short: "Merge previously written per-test coverage reports",
	Long: `Merges per-test coverage reports into a single aggregate report without
replaying any traces. Without arguments all reports under
<builddir>/coverage are merged`,
	Run: func(cmd *cobra.Command, args []string) {
		readConfig()
		mylog.InitLogger()
		runMerge(args)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(args []string) {
	buildDir := viper.GetString("builddir")

	loader, err := artifact.NewLoader(buildDir)
	utilfuncs.PanicIfError(err, "Error on creating artifact loader")

	paths := args
	if len(paths) == 0 {
		paths, err = filepath.Glob(filepath.Join(buildDir, "coverage", "*.json"))
		utilfuncs.PanicIfError(err, "Error on listing coverage reports")
	}

	var reports []*coverage.Report
	for _, path := range paths {
		report, err := coverage.LoadReport(path)
		if err != nil {
			logrus.WithError(err).Warn("skipping unreadable report")
			continue
		}
		reports = append(reports, report)
	}

	merged := coverage.Merge(reports, loader)
	err = merged.WriteFile(filepath.Join(buildDir, "coverage.json"))
	utilfuncs.PanicIfError(err, "Error on writing merged coverage report")

	fmt.Printf("Merged %d reports\n", len(reports))
	printSummary(merged)
}
