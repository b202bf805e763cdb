// Package main is the entry point for the gitgate CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gitgate: %v\n", err)
		os.Exit(1)
	}
}
