package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/evmcover/evmcover/common/io"
	"github.com/evmcover/evmcover/common/utilfuncs"
)

// readConfig merges an optional local config file, then environment
// overrides. Flags stay authoritative because they were bound first.
func readConfig() {
	configPath := io.FixPrefixPath(viper.GetString("configdir"), "config.toml")

	if io.FileExists(configPath) {
		mergeLocalConfig(configPath)
	}

	mergeEnvConfig()
}

func mergeEnvConfig() {
	// env override
	viper.SetEnvPrefix("evmcover")
	viper.AutomaticEnv()
}

func mergeLocalConfig(configPath string) {
	absPath, err := filepath.Abs(configPath)
	utilfuncs.PanicIfError(err, fmt.Sprintf("Error on parsing config file path: %s", configPath))

	file, err := os.Open(absPath)
	utilfuncs.PanicIfError(err, fmt.Sprintf("Error on opening config file: %s", absPath))
	defer file.Close()

	viper.SetConfigType("toml")
	err = viper.MergeConfig(file)
	utilfuncs.PanicIfError(err, fmt.Sprintf("Error on reading config file: %s", absPath))
}
