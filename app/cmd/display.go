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
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/evmcover/evmcover/coverage"
)

// threshold bands for the coverage display, lowest first
var coverageColors = []struct {
	threshold float64
	color     *color.Color
}{
	{0.5, color.New(color.FgRed, color.Bold)},
	{0.85, color.New(color.FgYellow, color.Bold)},
	{1, color.New(color.FgGreen, color.Bold)},
}

func pctColor(pct float64) *color.Color {
	for _, band := range coverageColors {
		if pct <= band.threshold {
			return band.color
		}
	}
	return coverageColors[len(coverageColors)-1].color
}

func printSummary(report *coverage.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Contract", "Source", "Function", "Coverage"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, contract := range sortedKeysOfContracts(report.Contracts) {
		sources := report.Contracts[contract]
		sourceNames := make([]string, 0, len(sources))
		for name := range sources {
			sourceNames = append(sourceNames, name)
		}
		sort.Strings(sourceNames)
		for _, source := range sourceNames {
			fns := sources[source]
			fnNames := make([]string, 0, len(fns))
			for name := range fns {
				fnNames = append(fnNames, name)
			}
			sort.Strings(fnNames)
			for _, fn := range fnNames {
				pct := fns[fn].Pct
				table.Append([]string{
					contract,
					source,
					fn,
					pctColor(pct).Sprintf("%.1f%%", pct*100),
				})
			}
		}
	}
	fmt.Println()
	table.Render()
}

func sortedKeysOfContracts(contracts coverage.Results) []string {
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
