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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evmcover",
	Short: "evmcover: test coverage analysis for compiled contracts",
	Long:  `Correlates recorded execution traces against static coverage maps to estimate test coverage`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatalf("Fatal error occurred. Program will exit")
		os.Exit(1)
	}
}

func init() {
	// folders
	rootCmd.PersistentFlags().StringP("builddir", "b", "build", "Folder holding compiler artifacts and coverage output")
	rootCmd.PersistentFlags().StringP("tracedir", "t", "build/traces", "Folder holding recorded trace dumps")
	rootCmd.PersistentFlags().StringP("configdir", "c", "", "Folder for config")
	rootCmd.PersistentFlags().StringP("logdir", "l", "", "Folder for log, empty logs to stdout only")

	// log
	rootCmd.PersistentFlags().BoolP("log_stdout", "s", true, "Whether the log will be printed to stdout")
	rootCmd.PersistentFlags().StringP("log_level", "v", "info", "Logging verbosity, possible values:[panic, fatal, error, warn, info, debug]")
	rootCmd.PersistentFlags().BoolP("log_line_number", "n", false, "Whether the log will contain line number")

	_ = viper.BindPFlag("builddir", rootCmd.PersistentFlags().Lookup("builddir"))
	_ = viper.BindPFlag("tracedir", rootCmd.PersistentFlags().Lookup("tracedir"))
	_ = viper.BindPFlag("configdir", rootCmd.PersistentFlags().Lookup("configdir"))
	_ = viper.BindPFlag("logdir", rootCmd.PersistentFlags().Lookup("logdir"))

	_ = viper.BindPFlag("log.stdout", rootCmd.PersistentFlags().Lookup("log_stdout"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log_level"))
	_ = viper.BindPFlag("log.line_number", rootCmd.PersistentFlags().Lookup("log_line_number"))
}
