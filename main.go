package main

import (
	"os"

	"github.com/codetesla51/kvstore/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
