package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/adoptsync/internal/cli"
	_ "github.com/JonMunkholm/adoptsync/internal/core/kinds" // Register all sheet kinds
)

var version = "dev"

func main() {
	if err := cli.RootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
