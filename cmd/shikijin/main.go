// Package main is the entry point for the shikijin CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shikijin:", err)
		os.Exit(1)
	}
}
