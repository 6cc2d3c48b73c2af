package main

import (
	"github.com/evmcover/evmcover/app/cmd"
)

func main() {
	cmd.Execute()
}
